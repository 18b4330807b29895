package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

// ExtractDocumentUseCase drives a single document through
// classification, extraction and counterparty resolution. One invocation
// touches exactly one document; runs for different documents are
// independent and may execute concurrently.
type ExtractDocumentUseCase struct {
	docs       ports.DocumentRepository
	storage    ports.ObjectStorage
	identities ports.IdentityStore
	accounts   ports.BankAccountStore
	provider   ports.ExtractionProvider
	prescan    ports.TextPreClassifier
	usage      ports.UsageLedger
	observer   ports.PipelineObserver
	logger     *slog.Logger

	// trustPrescan lets a high-confidence negative text verdict skip the
	// paid classification call entirely.
	trustPrescan bool
}

func NewExtractDocumentUseCase(
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	identities ports.IdentityStore,
	accounts ports.BankAccountStore,
	provider ports.ExtractionProvider,
	prescan ports.TextPreClassifier,
	usage ports.UsageLedger,
	trustPrescan bool,
	logger *slog.Logger,
) *ExtractDocumentUseCase {
	return &ExtractDocumentUseCase{
		docs:         docs,
		storage:      storage,
		identities:   identities,
		accounts:     accounts,
		provider:     provider,
		prescan:      prescan,
		usage:        usage,
		trustPrescan: trustPrescan,
		logger:       logger,
	}
}

// SetObserver attaches a pipeline observer. Without one the use case runs
// unobserved; only the worker binary wires its metrics in.
func (uc *ExtractDocumentUseCase) SetObserver(observer ports.PipelineObserver) {
	uc.observer = observer
}

// RunExtraction executes the full pipeline for one document. The caller
// gates idempotence (see RetryDocumentUseCase); invoked, this always
// re-executes every phase.
func (uc *ExtractDocumentUseCase) RunExtraction(ctx context.Context, documentID string, opts ports.ExtractionOptions) error {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	if strings.TrimSpace(doc.StoragePath) == "" {
		return domain.WrapError(domain.ErrMissingStoragePath, "run extraction", fmt.Errorf("document %s has no storage path", documentID))
	}

	data, err := uc.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		return fmt.Errorf("download document bytes: %w", err)
	}

	notInvoice, err := uc.classificationPhase(ctx, doc, data, opts)
	if err != nil {
		return uc.failExtraction(ctx, doc.ID, err)
	}
	if notInvoice {
		// Not an invoice is a successful terminal outcome: no extracted
		// data is retained and no extraction call is paid for.
		if err := uc.docs.ClearExtraction(ctx, doc.ID); err != nil {
			return fmt.Errorf("clear extraction fields: %w", err)
		}
		uc.logger.Info("document classified as not-invoice",
			"document_id", doc.ID, "owner_id", doc.OwnerID)
		return nil
	}

	result, err := uc.extractionPhase(ctx, doc, data)
	if err != nil {
		return uc.failExtraction(ctx, doc.ID, err)
	}

	resolution := uc.resolveCounterparty(ctx, doc, result.Fields)

	update := buildExtractionUpdate(uc.provider.Name(), result, resolution)
	if err := uc.docs.SaveExtraction(ctx, doc.ID, update); err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}

	uc.logger.Info("extraction complete",
		"document_id", doc.ID,
		"owner_id", doc.OwnerID,
		"direction", string(resolution.Direction),
		"provider", uc.provider.Name(),
	)
	return nil
}

// classificationPhase persists the invoice verdict before extraction runs,
// so consumers can observe "classifying" and "extracting" independently.
// It returns true when the document is not an invoice.
func (uc *ExtractDocumentUseCase) classificationPhase(ctx context.Context, doc *domain.Document, data []byte, opts ports.ExtractionOptions) (bool, error) {
	if opts.SkipClassification {
		// The user already asserted this is an invoice; force the verdict
		// without a model call.
		if err := uc.docs.SaveClassification(ctx, doc.ID, ports.ClassificationUpdate{}); err != nil {
			return false, fmt.Errorf("force classification: %w", err)
		}
		return false, nil
	}

	if verdict, decided := uc.prescanVerdict(doc, data); decided {
		if uc.observer != nil {
			uc.observer.PrescanSkip()
		}
		update := ports.ClassificationUpdate{
			IsNotInvoice:     !verdict.IsLikelyInvoice,
			NotInvoiceReason: notInvoiceReasonFromSignals(verdict),
		}
		if err := uc.docs.SaveClassification(ctx, doc.ID, update); err != nil {
			return false, fmt.Errorf("save classification: %w", err)
		}
		return update.IsNotInvoice, nil
	}

	result, err := uc.provider.Classify(ctx, data, doc.MimeType)
	if err != nil {
		return false, fmt.Errorf("classify document: %w", err)
	}
	uc.recordUsage(ctx, doc, "classification", result.Usage)

	update := ports.ClassificationUpdate{
		IsNotInvoice:     !result.IsInvoice,
		NotInvoiceReason: result.Reason,
	}
	if result.IsInvoice {
		update.NotInvoiceReason = ""
	}
	if err := uc.docs.SaveClassification(ctx, doc.ID, update); err != nil {
		return false, fmt.Errorf("save classification: %w", err)
	}
	return update.IsNotInvoice, nil
}

// prescanVerdict runs the zero-cost text heuristic. It only decides the
// outcome (second return true) for a trusted high-confidence negative;
// everything else falls through to the paid classification call.
func (uc *ExtractDocumentUseCase) prescanVerdict(doc *domain.Document, data []byte) (domain.TextVerdict, bool) {
	if uc.prescan == nil || !uc.trustPrescan {
		return domain.TextVerdict{}, false
	}
	verdict := uc.prescan.ClassifyText(data, doc.MimeType)
	if !verdict.IsLikelyInvoice && verdict.Confidence == domain.TextConfidenceHigh {
		uc.logger.Info("text pre-classifier rejected document, skipping paid classification",
			"document_id", doc.ID, "signals", strings.Join(verdict.Signals, ","))
		return verdict, true
	}
	return verdict, false
}

func (uc *ExtractDocumentUseCase) extractionPhase(ctx context.Context, doc *domain.Document, data []byte) (domain.ExtractionResult, error) {
	result, err := uc.provider.Extract(ctx, data, doc.MimeType)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("provider extraction: %w", err)
	}
	uc.recordUsage(ctx, doc, "extraction", result.Usage)

	if len(result.FieldBoxes) == 0 && len(result.LayoutBlocks) > 0 {
		result.FieldBoxes = locateFields(result.Fields, result.LayoutBlocks)
	}
	return result, nil
}

func (uc *ExtractDocumentUseCase) resolveCounterparty(ctx context.Context, doc *domain.Document, fields domain.ExtractedFields) Resolution {
	identity, err := uc.identities.GetByOwner(ctx, doc.OwnerID)
	if err != nil {
		uc.logger.Warn("fetch identity data failed, falling back to no-identity resolution",
			"document_id", doc.ID, "error", err)
		identity = nil
	}

	var sourceIBANs []string
	if uc.accounts != nil {
		sourceIBANs, err = uc.accounts.ActiveIBANs(ctx, doc.OwnerID)
		if err != nil {
			uc.logger.Warn("fetch source ibans failed, resolving without them",
				"document_id", doc.ID, "error", err)
			sourceIBANs = nil
		}
	}

	return ResolveCounterparty(fields.Issuer, fields.Recipient, identity, sourceIBANs)
}

// failExtraction records the failure on the document so it is never left
// permanently in progress, then returns the original error.
func (uc *ExtractDocumentUseCase) failExtraction(ctx context.Context, documentID string, cause error) error {
	if err := uc.docs.MarkExtractionFailed(ctx, documentID, cause.Error()); err != nil {
		return fmt.Errorf("%w; mark extraction failed: %v", cause, err)
	}
	return cause
}

// recordUsage appends a cost-accounting entry and reports the tokens to
// the observer. Ledger failures must not fail the run; they are logged
// and swallowed.
func (uc *ExtractDocumentUseCase) recordUsage(ctx context.Context, doc *domain.Document, phase string, usage domain.TokenUsage) {
	if uc.observer != nil {
		uc.observer.TokensConsumed(usage.Model, phase, usage.InputTokens, usage.OutputTokens)
	}
	if uc.usage == nil {
		return
	}
	record := domain.UsageRecord{
		OwnerID:      doc.OwnerID,
		DocumentID:   doc.ID,
		Phase:        phase,
		Model:        usage.Model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}
	if err := uc.usage.Record(ctx, record); err != nil {
		uc.logger.Warn("usage ledger write failed", "document_id", doc.ID, "phase", phase, "error", err)
	}
}

func notInvoiceReasonFromSignals(verdict domain.TextVerdict) string {
	if verdict.IsLikelyInvoice {
		return ""
	}
	if len(verdict.Signals) == 0 {
		return "text heuristic: no invoice signals"
	}
	return "text heuristic: " + strings.Join(verdict.Signals, ", ")
}

// locateFields best-effort maps extracted field values to OCR text blocks
// by case-insensitive substring match. Used only when the provider did not
// supply its own field boxes.
func locateFields(fields domain.ExtractedFields, blocks []domain.LayoutBlock) map[string]domain.FieldLocation {
	values := map[string]string{}
	for field, raw := range fields.Raw {
		if strings.TrimSpace(raw) != "" {
			values[field] = raw
		}
	}
	if _, ok := values["invoice_date"]; !ok && fields.InvoiceDate != "" {
		values["invoice_date"] = fields.InvoiceDate
	}
	if _, ok := values["issuer_name"]; !ok && fields.Issuer.Name != "" {
		values["issuer_name"] = fields.Issuer.Name
	}
	if _, ok := values["recipient_name"]; !ok && fields.Recipient.Name != "" {
		values["recipient_name"] = fields.Recipient.Name
	}

	located := map[string]domain.FieldLocation{}
	for field, value := range values {
		needle := strings.ToLower(strings.TrimSpace(value))
		if needle == "" {
			continue
		}
		for _, block := range blocks {
			if strings.Contains(strings.ToLower(block.Text), needle) {
				located[field] = domain.FieldLocation{
					Field: field,
					Page:  block.Page,
					X:     block.X,
					Y:     block.Y,
					W:     block.W,
					H:     block.H,
				}
				break
			}
		}
	}
	return located
}

func buildExtractionUpdate(providerName string, result domain.ExtractionResult, resolution Resolution) ports.ExtractionUpdate {
	fields := result.Fields
	update := ports.ExtractionUpdate{
		Provider:           providerName,
		ExtractedRaw:       fields.Raw,
		InvoiceDirection:   resolution.Direction,
		MatchedUserAccount: resolution.MatchedUserAccount,
	}

	if fields.InvoiceDate != "" {
		update.InvoiceDate = &fields.InvoiceDate
	}
	if fields.AmountMinor != 0 {
		amount := fields.AmountMinor
		update.AmountMinor = &amount
	}
	if fields.Currency != "" {
		update.Currency = &fields.Currency
	}
	if fields.VATPercent != 0 {
		vat := fields.VATPercent
		update.VATPercent = &vat
	}
	if result.Text != "" {
		text := result.Text
		update.OCRText = &text
	}
	confidence := RoundConfidence(fields.Confidence)
	update.Confidence = &confidence

	if !fields.Issuer.Empty() {
		issuer := fields.Issuer
		update.Issuer = &issuer
	}
	if !fields.Recipient.Empty() {
		recipient := fields.Recipient
		update.Recipient = &recipient
	}

	counterparty := resolution.Counterparty
	if counterparty.Name != "" {
		update.ExtractedPartner = &counterparty.Name
	}
	if counterparty.VATID != "" {
		update.ExtractedVATID = &counterparty.VATID
	}
	if counterparty.IBAN != "" {
		update.ExtractedIBAN = &counterparty.IBAN
	}
	if counterparty.Address != "" {
		update.ExtractedAddress = &counterparty.Address
	}
	if counterparty.Website != "" {
		update.ExtractedWebsite = &counterparty.Website
	}

	for _, location := range result.FieldBoxes {
		update.FieldLocations = append(update.FieldLocations, location)
	}
	return update
}

// RoundConfidence converts the provider's 0.0-1.0 confidence to the
// persisted 0-100 integer scale, clamping out-of-range values.
func RoundConfidence(confidence float64) int {
	if confidence <= 0 {
		return 0
	}
	if confidence >= 1 {
		return 100
	}
	return int(confidence*100 + 0.5)
}
