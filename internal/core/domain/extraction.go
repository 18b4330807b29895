package domain

// TokenUsage is the per-call token consumption reported by a provider.
type TokenUsage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// LayoutBlock is one detected text block with a normalized bounding box.
type LayoutBlock struct {
	Page int     `json:"page"`
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// ExtractedFields is the structured result of a full extraction call.
// Confidence is 0.0-1.0 at this boundary; persistence rounds it to 0-100.
type ExtractedFields struct {
	InvoiceDate string            `json:"invoice_date,omitempty"`
	AmountMinor int64             `json:"amount_minor,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	VATPercent  int               `json:"vat_percent,omitempty"`
	Confidence  float64           `json:"confidence"`
	Issuer      ExtractedEntity   `json:"issuer"`
	Recipient   ExtractedEntity   `json:"recipient"`
	Raw         map[string]string `json:"raw,omitempty"`
}

// ClassifyResult is the outcome of the is-this-an-invoice provider call.
type ClassifyResult struct {
	IsInvoice bool       `json:"is_invoice"`
	Reason    string     `json:"reason,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

// ExtractionResult is the full provider extraction output.
type ExtractionResult struct {
	Text         string                   `json:"text"`
	LayoutBlocks []LayoutBlock            `json:"layout_blocks,omitempty"`
	Fields       ExtractedFields          `json:"fields"`
	FieldBoxes   map[string]FieldLocation `json:"field_boxes,omitempty"`
	Usage        TokenUsage               `json:"usage"`
}

// TextConfidence grades the zero-cost text pre-classifier verdict.
type TextConfidence string

const (
	TextConfidenceHigh      TextConfidence = "high"
	TextConfidenceMedium    TextConfidence = "medium"
	TextConfidenceLow       TextConfidence = "low"
	TextConfidenceUncertain TextConfidence = "uncertain"
)

// TextVerdict is the pre-classifier result. Signals lists the pattern
// families that fired, for diagnostics.
type TextVerdict struct {
	IsLikelyInvoice bool           `json:"is_likely_invoice"`
	Confidence      TextConfidence `json:"confidence"`
	Signals         []string       `json:"signals,omitempty"`
}

// UsageRecord is one append-only cost-accounting entry.
type UsageRecord struct {
	OwnerID      string `json:"owner_id"`
	DocumentID   string `json:"document_id"`
	Phase        string `json:"phase"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}
