package domain

import "time"

// InvoiceDirection states whether the document represents money owed by the
// owner (outgoing) or to the owner (incoming), relative to the counterparty.
type InvoiceDirection string

const (
	DirectionIncoming InvoiceDirection = "incoming"
	DirectionOutgoing InvoiceDirection = "outgoing"
	DirectionUnknown  InvoiceDirection = "unknown"
)

// MatchedAccount names which extracted entity was judged to be the owner's
// own business. Empty means no entity matched.
type MatchedAccount string

const (
	MatchedIssuer    MatchedAccount = "issuer"
	MatchedRecipient MatchedAccount = "recipient"
	MatchedNone      MatchedAccount = ""
)

// ExtractedEntity is one party printed on the document. Empty strings mean
// the field was not present on the document.
type ExtractedEntity struct {
	Name    string `json:"name,omitempty"`
	VATID   string `json:"vat_id,omitempty"`
	Address string `json:"address,omitempty"`
	IBAN    string `json:"iban,omitempty"`
	Website string `json:"website,omitempty"`
}

// Empty reports whether no field of the entity carries a value.
func (e ExtractedEntity) Empty() bool {
	return e.Name == "" && e.VATID == "" && e.Address == "" && e.IBAN == "" && e.Website == ""
}

// FieldLocation ties an extracted field to a bounding box on a page.
// Coordinates are normalized to [0,1] relative to the page.
type FieldLocation struct {
	Field string  `json:"field"`
	Page  int     `json:"page"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// PartnerSuggestion is one ranked partner candidate for a document.
type PartnerSuggestion struct {
	PartnerID   string `json:"partner_id"`
	PartnerType string `json:"partner_type"`
	MatchedBy   string `json:"matched_by"`
	Confidence  int    `json:"confidence"`
}

// TransactionSuggestion is one ranked bank-transaction candidate for a document.
type TransactionSuggestion struct {
	TransactionID string `json:"transaction_id"`
	Confidence    int    `json:"confidence"`
}

// Document is one uploaded file and the full persisted pipeline state for it.
//
// The phase flags are independent boolean+timestamp pairs on purpose:
// consumers poll them separately to render "classifying" vs "extracting",
// so they must never be collapsed into a single status enum.
type Document struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	MimeType    string `json:"mime_type"`
	ByteSize    int64  `json:"byte_size"`
	ContentHash string `json:"content_hash"`

	ClassificationComplete   bool       `json:"classification_complete"`
	ClassifiedAt             *time.Time `json:"classified_at,omitempty"`
	ExtractionComplete       bool       `json:"extraction_complete"`
	ExtractedAt              *time.Time `json:"extracted_at,omitempty"`
	PartnerMatchComplete     bool       `json:"partner_match_complete"`
	PartnerMatchedAt         *time.Time `json:"partner_matched_at,omitempty"`
	TransactionMatchComplete bool       `json:"transaction_match_complete"`
	TransactionMatchedAt     *time.Time `json:"transaction_matched_at,omitempty"`

	IsNotInvoice     bool   `json:"is_not_invoice"`
	NotInvoiceReason string `json:"not_invoice_reason,omitempty"`

	// Extracted scalar fields. Nil means "not extracted"; a not-invoice
	// document must have all of these nil.
	InvoiceDate *string `json:"invoice_date,omitempty"`
	AmountMinor *int64  `json:"amount_minor,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	VATPercent  *int    `json:"vat_percent,omitempty"`
	OCRText     *string `json:"ocr_text,omitempty"`
	Confidence  *int    `json:"confidence,omitempty"`
	Provider    string  `json:"provider,omitempty"`

	ExtractionError string `json:"extraction_error,omitempty"`

	Issuer       *ExtractedEntity  `json:"issuer,omitempty"`
	Recipient    *ExtractedEntity  `json:"recipient,omitempty"`
	ExtractedRaw map[string]string `json:"extracted_raw,omitempty"`

	InvoiceDirection   InvoiceDirection `json:"invoice_direction,omitempty"`
	MatchedUserAccount MatchedAccount   `json:"matched_user_account,omitempty"`

	// Denormalized counterparty fields, written after counterparty
	// resolution. Always the entity that is NOT the owner.
	ExtractedPartner *string `json:"extracted_partner,omitempty"`
	ExtractedVATID   *string `json:"extracted_vat_id,omitempty"`
	ExtractedIBAN    *string `json:"extracted_iban,omitempty"`
	ExtractedAddress *string `json:"extracted_address,omitempty"`
	ExtractedWebsite *string `json:"extracted_website,omitempty"`

	FieldLocations []FieldLocation `json:"field_locations,omitempty"`

	PartnerID              string `json:"partner_id,omitempty"`
	PartnerType            string `json:"partner_type,omitempty"`
	PartnerMatchedBy       string `json:"partner_matched_by,omitempty"`
	PartnerMatchConfidence int    `json:"partner_match_confidence,omitempty"`
	PartnerMatchManual     bool   `json:"partner_match_manual"`

	TransactionSuggestions []TransactionSuggestion `json:"transaction_suggestions,omitempty"`
	TransactionMatchManual bool                    `json:"transaction_match_manual"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
