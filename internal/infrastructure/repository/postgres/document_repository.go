package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `
	id, owner_id, filename, storage_path, mime_type, byte_size, content_hash,
	classification_complete, classified_at, extraction_complete, extracted_at,
	partner_match_complete, partner_matched_at, transaction_match_complete, transaction_matched_at,
	is_not_invoice, not_invoice_reason,
	invoice_date, amount_minor, currency, vat_percent, ocr_text, confidence, provider,
	extraction_error, issuer, recipient, extracted_raw,
	invoice_direction, matched_user_account,
	extracted_partner, extracted_vat_id, extracted_iban, extracted_address, extracted_website,
	field_locations,
	partner_id, partner_type, partner_matched_by, partner_match_confidence, partner_match_manual,
	transaction_suggestions, transaction_match_manual,
	created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, owner_id, filename, storage_path, mime_type, byte_size, content_hash, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.OwnerID, doc.Filename, doc.StoragePath, doc.MimeType,
		doc.ByteSize, doc.ContentHash, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) SaveClassification(ctx context.Context, id string, update ports.ClassificationUpdate) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET classification_complete = TRUE,
    classified_at = $2,
    is_not_invoice = $3,
    not_invoice_reason = $4,
    updated_at = $2
WHERE id = $1
`, id, time.Now().UTC(), update.IsNotInvoice, update.NotInvoiceReason)
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ClearExtraction(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extraction_complete = TRUE,
    extracted_at = $2,
    extraction_error = '',
    invoice_date = NULL, amount_minor = NULL, currency = NULL, vat_percent = NULL,
    ocr_text = NULL, confidence = NULL, provider = '',
    issuer = NULL, recipient = NULL, extracted_raw = NULL,
    invoice_direction = '', matched_user_account = '',
    extracted_partner = NULL, extracted_vat_id = NULL, extracted_iban = NULL,
    extracted_address = NULL, extracted_website = NULL,
    field_locations = NULL,
    updated_at = $2
WHERE id = $1
`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear extraction: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SaveExtraction(ctx context.Context, id string, update ports.ExtractionUpdate) error {
	issuerJSON, err := marshalNullable(update.Issuer)
	if err != nil {
		return fmt.Errorf("marshal issuer: %w", err)
	}
	recipientJSON, err := marshalNullable(update.Recipient)
	if err != nil {
		return fmt.Errorf("marshal recipient: %w", err)
	}
	var rawJSON []byte
	if len(update.ExtractedRaw) > 0 {
		if rawJSON, err = json.Marshal(update.ExtractedRaw); err != nil {
			return fmt.Errorf("marshal extracted raw: %w", err)
		}
	}
	var locationsJSON []byte
	if len(update.FieldLocations) > 0 {
		if locationsJSON, err = json.Marshal(update.FieldLocations); err != nil {
			return fmt.Errorf("marshal field locations: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
UPDATE documents
SET extraction_complete = TRUE,
    extracted_at = $2,
    extraction_error = '',
    invoice_date = $3, amount_minor = $4, currency = $5, vat_percent = $6,
    ocr_text = $7, confidence = $8, provider = $9,
    issuer = $10, recipient = $11, extracted_raw = $12,
    invoice_direction = $13, matched_user_account = $14,
    extracted_partner = $15, extracted_vat_id = $16, extracted_iban = $17,
    extracted_address = $18, extracted_website = $19,
    field_locations = $20,
    updated_at = $2
WHERE id = $1
`,
		id, time.Now().UTC(),
		update.InvoiceDate, update.AmountMinor, update.Currency, update.VATPercent,
		update.OCRText, update.Confidence, update.Provider,
		issuerJSON, recipientJSON, rawJSON,
		string(update.InvoiceDirection), string(update.MatchedUserAccount),
		update.ExtractedPartner, update.ExtractedVATID, update.ExtractedIBAN,
		update.ExtractedAddress, update.ExtractedWebsite,
		locationsJSON,
	)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkExtractionFailed(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extraction_complete = TRUE,
    extracted_at = $2,
    extraction_error = $3,
    updated_at = $2
WHERE id = $1
`, id, time.Now().UTC(), message)
	if err != nil {
		return fmt.Errorf("mark extraction failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ResetForRetry(ctx context.Context, id string, resetMatches bool) error {
	const resetExtraction = `
    classification_complete = FALSE, classified_at = NULL,
    is_not_invoice = FALSE, not_invoice_reason = '',
    extraction_complete = FALSE, extracted_at = NULL, extraction_error = '',
    invoice_date = NULL, amount_minor = NULL, currency = NULL, vat_percent = NULL,
    ocr_text = NULL, confidence = NULL, provider = '',
    issuer = NULL, recipient = NULL, extracted_raw = NULL,
    invoice_direction = '', matched_user_account = '',
    extracted_partner = NULL, extracted_vat_id = NULL, extracted_iban = NULL,
    extracted_address = NULL, extracted_website = NULL,
    field_locations = NULL`

	query := `UPDATE documents SET` + resetExtraction + `, updated_at = $2 WHERE id = $1`
	if resetMatches {
		query = `UPDATE documents SET` + resetExtraction + `,
    partner_match_complete = FALSE, partner_matched_at = NULL,
    partner_id = '', partner_type = '', partner_matched_by = '', partner_match_confidence = 0,
    transaction_match_complete = FALSE, transaction_matched_at = NULL,
    transaction_suggestions = NULL,
    updated_at = $2 WHERE id = $1`
	}

	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset document for retry: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SavePartnerMatch(ctx context.Context, id string, suggestion domain.PartnerSuggestion) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET partner_match_complete = TRUE,
    partner_matched_at = $2,
    partner_id = $3,
    partner_type = $4,
    partner_matched_by = $5,
    partner_match_confidence = $6,
    updated_at = $2
WHERE id = $1
`, id, time.Now().UTC(), suggestion.PartnerID, suggestion.PartnerType, suggestion.MatchedBy, suggestion.Confidence)
	if err != nil {
		return fmt.Errorf("save partner match: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SaveTransactionSuggestions(ctx context.Context, id string, suggestions []domain.TransactionSuggestion) error {
	var suggestionsJSON []byte
	if len(suggestions) > 0 {
		var err error
		if suggestionsJSON, err = json.Marshal(suggestions); err != nil {
			return fmt.Errorf("marshal transaction suggestions: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET transaction_match_complete = TRUE,
    transaction_matched_at = $2,
    transaction_suggestions = $3,
    updated_at = $2
WHERE id = $1
`, id, time.Now().UTC(), suggestionsJSON)
	if err != nil {
		return fmt.Errorf("save transaction suggestions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var direction, matchedAccount string
	var issuerRaw, recipientRaw, extractedRaw, locationsRaw, suggestionsRaw []byte

	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.StoragePath, &doc.MimeType, &doc.ByteSize, &doc.ContentHash,
		&doc.ClassificationComplete, &doc.ClassifiedAt, &doc.ExtractionComplete, &doc.ExtractedAt,
		&doc.PartnerMatchComplete, &doc.PartnerMatchedAt, &doc.TransactionMatchComplete, &doc.TransactionMatchedAt,
		&doc.IsNotInvoice, &doc.NotInvoiceReason,
		&doc.InvoiceDate, &doc.AmountMinor, &doc.Currency, &doc.VATPercent, &doc.OCRText, &doc.Confidence, &doc.Provider,
		&doc.ExtractionError, &issuerRaw, &recipientRaw, &extractedRaw,
		&direction, &matchedAccount,
		&doc.ExtractedPartner, &doc.ExtractedVATID, &doc.ExtractedIBAN, &doc.ExtractedAddress, &doc.ExtractedWebsite,
		&locationsRaw,
		&doc.PartnerID, &doc.PartnerType, &doc.PartnerMatchedBy, &doc.PartnerMatchConfidence, &doc.PartnerMatchManual,
		&suggestionsRaw, &doc.TransactionMatchManual,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.InvoiceDirection = domain.InvoiceDirection(direction)
	doc.MatchedUserAccount = domain.MatchedAccount(matchedAccount)

	if len(issuerRaw) > 0 {
		doc.Issuer = &domain.ExtractedEntity{}
		if err := json.Unmarshal(issuerRaw, doc.Issuer); err != nil {
			return nil, fmt.Errorf("unmarshal issuer: %w", err)
		}
	}
	if len(recipientRaw) > 0 {
		doc.Recipient = &domain.ExtractedEntity{}
		if err := json.Unmarshal(recipientRaw, doc.Recipient); err != nil {
			return nil, fmt.Errorf("unmarshal recipient: %w", err)
		}
	}
	if len(extractedRaw) > 0 {
		if err := json.Unmarshal(extractedRaw, &doc.ExtractedRaw); err != nil {
			return nil, fmt.Errorf("unmarshal extracted raw: %w", err)
		}
	}
	if len(locationsRaw) > 0 {
		if err := json.Unmarshal(locationsRaw, &doc.FieldLocations); err != nil {
			return nil, fmt.Errorf("unmarshal field locations: %w", err)
		}
	}
	if len(suggestionsRaw) > 0 {
		if err := json.Unmarshal(suggestionsRaw, &doc.TransactionSuggestions); err != nil {
			return nil, fmt.Errorf("unmarshal transaction suggestions: %w", err)
		}
	}
	return &doc, nil
}

func marshalNullable(entity *domain.ExtractedEntity) ([]byte, error) {
	if entity == nil {
		return nil, nil
	}
	return json.Marshal(entity)
}
