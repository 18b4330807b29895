package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

func TestUploadCreatesDocumentAndQueuesExtraction(t *testing.T) {
	repo := &repoFake{}
	queue := &queueFake{}
	uc := NewUploadDocumentUseCase(repo, &storageFake{}, queue)

	doc, err := uc.Upload(context.Background(), "owner-1", "invoice.pdf", "application/pdf", strings.NewReader("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected generated document id")
	}
	if doc.StoragePath != "owner-1/"+doc.ID {
		t.Fatalf("StoragePath = %q", doc.StoragePath)
	}
	if doc.ByteSize != int64(len("%PDF-1.4 test")) {
		t.Fatalf("ByteSize = %d", doc.ByteSize)
	}
	if len(doc.ContentHash) != 64 {
		t.Fatalf("ContentHash = %q, want hex sha-256", doc.ContentHash)
	}
	if len(queue.published) != 1 || queue.published[0].DocumentID != doc.ID {
		t.Fatalf("queue = %+v", queue.published)
	}
	if queue.published[0].SkipClassification {
		t.Fatal("fresh uploads must not skip classification")
	}
}

func TestUploadSameContentYieldsSameHash(t *testing.T) {
	repo := &repoFake{}
	queue := &queueFake{}
	uc := NewUploadDocumentUseCase(repo, &storageFake{}, queue)

	first, err := uc.Upload(context.Background(), "owner-1", "a.pdf", "application/pdf", strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	second, err := uc.Upload(context.Background(), "owner-1", "b.pdf", "application/pdf", strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("duplicate content must still get a fresh document id")
	}
	if first.ContentHash != second.ContentHash {
		t.Fatalf("hashes differ: %q vs %q", first.ContentHash, second.ContentHash)
	}
}

func TestUploadRejectsEmptyBody(t *testing.T) {
	uc := NewUploadDocumentUseCase(&repoFake{}, &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), "owner-1", "empty.pdf", "application/pdf", strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
