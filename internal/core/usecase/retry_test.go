package usecase

import (
	"context"
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

type queueFake struct {
	published []ports.ExtractionRequest
	err       error
}

func (f *queueFake) PublishExtractionRequested(_ context.Context, req ports.ExtractionRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *queueFake) SubscribeExtractionRequested(context.Context, func(context.Context, ports.ExtractionRequest) error) error {
	return nil
}

func TestRetryCleanDocumentRejected(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{
		ID:                 "doc-1",
		ExtractionComplete: true,
	}}
	queue := &queueFake{}
	uc := NewRetryDocumentUseCase(repo, queue, discardLogger())

	err := uc.Retry(context.Background(), "doc-1", false)
	if !domain.IsKind(err, domain.ErrAlreadyExtracted) {
		t.Fatalf("expected ErrAlreadyExtracted, got %v", err)
	}
	if repo.resetCalled {
		t.Fatal("expected no state mutation on rejected retry")
	}
	if len(queue.published) != 0 {
		t.Fatal("expected nothing queued on rejected retry")
	}
}

func TestRetryForceAllowsCleanDocument(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{
		ID:                 "doc-1",
		ExtractionComplete: true,
	}}
	queue := &queueFake{}
	uc := NewRetryDocumentUseCase(repo, queue, discardLogger())

	if err := uc.Retry(context.Background(), "doc-1", true); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if !repo.resetCalled || !repo.resetMatches {
		t.Fatalf("expected full reset, got called=%v matches=%v", repo.resetCalled, repo.resetMatches)
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected 1 queued request, got %d", len(queue.published))
	}
	if queue.published[0].SkipClassification {
		t.Fatal("force retry without override must not skip classification")
	}
}

func TestRetryNotInvoiceOverrideSkipsClassification(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{
		ID:                 "doc-1",
		ExtractionComplete: true,
		IsNotInvoice:       true,
	}}
	queue := &queueFake{}
	uc := NewRetryDocumentUseCase(repo, queue, discardLogger())

	if err := uc.Retry(context.Background(), "doc-1", false); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(queue.published) != 1 || !queue.published[0].SkipClassification {
		t.Fatalf("expected skip-classification request, got %+v", queue.published)
	}
}

func TestRetryFailedDocumentAllowed(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{
		ID:                 "doc-1",
		ExtractionComplete: true,
		ExtractionError:    "gateway exploded",
	}}
	queue := &queueFake{}
	uc := NewRetryDocumentUseCase(repo, queue, discardLogger())

	if err := uc.Retry(context.Background(), "doc-1", false); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected 1 queued request, got %d", len(queue.published))
	}
}

func TestRetryPreservesManualMatches(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{
		ID:                 "doc-1",
		ExtractionComplete: true,
		ExtractionError:    "transient",
		PartnerMatchManual: true,
	}}
	queue := &queueFake{}
	uc := NewRetryDocumentUseCase(repo, queue, discardLogger())

	if err := uc.Retry(context.Background(), "doc-1", false); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if !repo.resetCalled {
		t.Fatal("expected reset")
	}
	if repo.resetMatches {
		t.Fatal("manual matches must survive retry")
	}
}
