package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

// RetryDocumentUseCase validates retry preconditions, resets pipeline
// state and re-queues the document for extraction.
type RetryDocumentUseCase struct {
	docs   ports.DocumentRepository
	queue  ports.MessageQueue
	logger *slog.Logger
}

func NewRetryDocumentUseCase(docs ports.DocumentRepository, queue ports.MessageQueue, logger *slog.Logger) *RetryDocumentUseCase {
	return &RetryDocumentUseCase{docs: docs, queue: queue, logger: logger}
}

// Retry re-runs extraction for a document. Allowed when the prior run
// errored, the document was classified not-invoice (the user is overriding
// that verdict), or force is set (re-processing under a newer pipeline).
// A cleanly extracted document without any of those conditions is rejected
// with ErrAlreadyExtracted and nothing is mutated.
func (uc *RetryDocumentUseCase) Retry(ctx context.Context, documentID string, force bool) error {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}

	userOverride := doc.IsNotInvoice
	allowed := force || userOverride || doc.ExtractionError != "" || !doc.ExtractionComplete
	if !allowed {
		return domain.WrapError(domain.ErrAlreadyExtracted, "retry",
			fmt.Errorf("document %s extracted cleanly and no override applies", documentID))
	}

	// Manual partner/transaction matches survive a retry; automatic ones
	// are reset together with the extraction state.
	resetMatches := !doc.PartnerMatchManual && !doc.TransactionMatchManual
	if err := uc.docs.ResetForRetry(ctx, documentID, resetMatches); err != nil {
		return fmt.Errorf("reset document state: %w", err)
	}

	req := ports.ExtractionRequest{
		DocumentID: documentID,
		// The user just asserted this is an invoice, so the new run skips
		// the classification call.
		SkipClassification: userOverride,
	}
	if err := uc.queue.PublishExtractionRequested(ctx, req); err != nil {
		return fmt.Errorf("queue extraction: %w", err)
	}

	uc.logger.Info("retry accepted",
		"document_id", documentID,
		"force", force,
		"user_override", userOverride,
		"reset_matches", resetMatches,
	)
	return nil
}
