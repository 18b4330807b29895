package ports

import (
	"context"
	"io"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

// ExtractionOptions tune a single orchestrator run.
type ExtractionOptions struct {
	// SkipClassification forces the invoice verdict without a model call.
	// Set when the user explicitly overrode a prior not-invoice result.
	SkipClassification bool
}

// DocumentUploader is the inbound contract for the upload flow.
type DocumentUploader interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// ExtractionRunner drives one document through the full pipeline.
type ExtractionRunner interface {
	RunExtraction(ctx context.Context, documentID string, opts ExtractionOptions) error
}

// RetryService validates retry preconditions, resets state and re-queues
// the document.
type RetryService interface {
	Retry(ctx context.Context, documentID string, force bool) error
}

// PartnerLocalizer converts global partner assignments into owner-private
// partners. Idempotent per owner.
type PartnerLocalizer interface {
	Localize(ctx context.Context, ownerID string) (domain.LocalizeReport, error)
}

// TransactionCategorizer produces ranked no-receipt category suggestions
// for one transaction.
type TransactionCategorizer interface {
	SuggestCategories(ctx context.Context, transactionID string) ([]domain.CategorySuggestion, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Document, error)
}
