package ports

import (
	"context"
	"io"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

// ClassificationUpdate is the classification-phase field group. It is
// persisted before extraction runs so consumers can observe the phases
// independently.
type ClassificationUpdate struct {
	IsNotInvoice     bool
	NotInvoiceReason string
}

// ExtractionUpdate is the consolidated extraction-phase field group,
// written atomically after counterparty resolution.
type ExtractionUpdate struct {
	InvoiceDate  *string
	AmountMinor  *int64
	Currency     *string
	VATPercent   *int
	OCRText      *string
	Confidence   *int
	Provider     string
	Issuer       *domain.ExtractedEntity
	Recipient    *domain.ExtractedEntity
	ExtractedRaw map[string]string

	InvoiceDirection   domain.InvoiceDirection
	MatchedUserAccount domain.MatchedAccount

	ExtractedPartner *string
	ExtractedVATID   *string
	ExtractedIBAN    *string
	ExtractedAddress *string
	ExtractedWebsite *string

	FieldLocations []domain.FieldLocation
}

// DocumentRepository persists document pipeline state. Every write is a
// partial field-group update, never a full-record overwrite.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Document, error)

	// SaveClassification sets classification_complete=true together with
	// the verdict fields.
	SaveClassification(ctx context.Context, id string, update ClassificationUpdate) error
	// ClearExtraction nulls every extracted scalar/entity field and sets
	// extraction_complete=true. Used for not-invoice verdicts.
	ClearExtraction(ctx context.Context, id string) error
	// SaveExtraction writes the consolidated extraction field group and
	// sets extraction_complete=true in the same statement.
	SaveExtraction(ctx context.Context, id string, update ExtractionUpdate) error
	// MarkExtractionFailed sets extraction_complete=true with an error
	// message so the document never looks permanently in progress.
	MarkExtractionFailed(ctx context.Context, id string, message string) error
	// ResetForRetry clears extraction state ahead of a re-run. Match state
	// is reset only when resetMatches is true (manual matches survive).
	ResetForRetry(ctx context.Context, id string, resetMatches bool) error

	SavePartnerMatch(ctx context.Context, id string, suggestion domain.PartnerSuggestion) error
	SaveTransactionSuggestions(ctx context.Context, id string, suggestions []domain.TransactionSuggestion) error
}

// ObjectStorage stores and serves source document bytes. Download is an
// atomic whole-file fetch; documents are small enough not to stream.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// IdentityStore reads the owner's declared business identity.
// A (nil, nil) return means no identity data is configured.
type IdentityStore interface {
	GetByOwner(ctx context.Context, ownerID string) (*domain.UserIdentity, error)
}

// BankAccountStore reads IBANs of the owner's connected bank accounts.
// Fetched fresh per extraction run, never persisted on the document.
type BankAccountStore interface {
	ActiveIBANs(ctx context.Context, ownerID string) ([]string, error)
}

// PartnerRepository persists global and owner-private partners.
type PartnerRepository interface {
	GetGlobal(ctx context.Context, id string) (*domain.GlobalPartner, error)
	FindLocalByGlobalID(ctx context.Context, ownerID, globalID string) (*domain.LocalPartner, error)
	CreateLocal(ctx context.Context, partner *domain.LocalPartner) error
	ListLocalByOwner(ctx context.Context, ownerID string) ([]domain.LocalPartner, error)
}

// TransactionRepository reads and retargets transactions during matching
// and reconciliation.
type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	// ListByGlobalPartner returns the owner's transactions whose hard
	// partner assignment points at any global partner.
	ListByGlobalPartner(ctx context.Context, ownerID string) ([]domain.Transaction, error)
	// RetargetPartner points the given transactions at a local partner and
	// flips their partner-type marker to owner-private.
	RetargetPartner(ctx context.Context, ids []string, localPartnerID string) (int, error)
	// ListRecentlyUpdated returns the owner's most recently updated
	// transactions, bounded by limit.
	ListRecentlyUpdated(ctx context.Context, ownerID string, limit int) ([]domain.Transaction, error)
	// ListOpenByOwner returns the owner's transactions without an attached
	// receipt (file_count = 0), newest first, bounded by limit.
	ListOpenByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Transaction, error)
	SavePartnerSuggestions(ctx context.Context, id string, suggestions []domain.PartnerSuggestion) error
}

// CategoryRepository reads no-receipt categories for matching.
type CategoryRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Category, error)
	// ManualRemovals returns transaction ids explicitly removed from the
	// category by the user; those are never suggested again.
	ManualRemovals(ctx context.Context, categoryID string) ([]string, error)
}

// UsageLedger records AI token consumption. Append-only, fire-and-forget:
// callers log failures and continue.
type UsageLedger interface {
	Record(ctx context.Context, record domain.UsageRecord) error
}

// PipelineObserver receives extraction pipeline signals for monitoring.
// Implementations must be cheap and non-blocking; callers treat the
// observer as optional.
type PipelineObserver interface {
	// PrescanSkip counts a paid classification call avoided by a trusted
	// text pre-scan verdict.
	PrescanSkip()
	// TokensConsumed records provider token consumption for one call.
	TokensConsumed(model, phase string, input, output int)
}

// ExtractionProvider is the AI boundary. Two interchangeable back ends
// (OCR-then-parse, vision-and-parse) implement it; selection happens once
// at bootstrap.
type ExtractionProvider interface {
	Name() string
	Classify(ctx context.Context, data []byte, mimeType string) (domain.ClassifyResult, error)
	Extract(ctx context.Context, data []byte, mimeType string) (domain.ExtractionResult, error)
}

// TextPreClassifier is the zero-cost invoice heuristic applied before any
// paid provider call.
type TextPreClassifier interface {
	ClassifyText(data []byte, mimeType string) domain.TextVerdict
}

// ExtractionRequest is the queue payload triggering one orchestrator run.
type ExtractionRequest struct {
	DocumentID         string `json:"document_id"`
	SkipClassification bool   `json:"skip_classification"`
}

// MessageQueue publishes/consumes extraction triggers.
type MessageQueue interface {
	PublishExtractionRequested(ctx context.Context, req ExtractionRequest) error
	SubscribeExtractionRequested(ctx context.Context, handler func(context.Context, ExtractionRequest) error) error
}
