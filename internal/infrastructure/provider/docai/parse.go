package docai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

// envelopeEntity mirrors the party object the model returns.
type envelopeEntity struct {
	Name    string `json:"name"`
	VATID   string `json:"vat_id"`
	Address string `json:"address"`
	IBAN    string `json:"iban"`
	Website string `json:"website"`
}

type envelopeBox struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// extractionEnvelope is the structured-output contract both prompts pin
// the model to. Amounts arrive as display strings and are normalized to
// integer minor units here.
type extractionEnvelope struct {
	InvoiceDate string                 `json:"invoice_date"`
	Amount      string                 `json:"amount"`
	Currency    string                 `json:"currency"`
	VATPercent  *float64               `json:"vat_percent"`
	Confidence  *float64               `json:"confidence"`
	Issuer      envelopeEntity         `json:"issuer"`
	Recipient   envelopeEntity         `json:"recipient"`
	Raw         map[string]string      `json:"raw"`
	Boxes       map[string]envelopeBox `json:"boxes"`
}

type classifyEnvelope struct {
	IsInvoice *bool  `json:"is_invoice"`
	Reason    string `json:"reason"`
}

// parseClassifyEnvelope decodes the classification verdict. Malformed
// output is a hard failure, never coerced into a default verdict.
func parseClassifyEnvelope(content string) (domain.ClassifyResult, error) {
	raw := extractJSONObject(content)

	var envelope classifyEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return domain.ClassifyResult{}, domain.WrapError(domain.ErrProviderOutput, "parse classify envelope", err)
	}
	if envelope.IsInvoice == nil {
		return domain.ClassifyResult{}, domain.WrapError(domain.ErrProviderOutput, "parse classify envelope",
			fmt.Errorf("missing is_invoice field"))
	}
	return domain.ClassifyResult{
		IsInvoice: *envelope.IsInvoice,
		Reason:    strings.TrimSpace(envelope.Reason),
	}, nil
}

// parseExtractionEnvelope decodes and normalizes the full extraction
// output. The envelope is validated against a JSON schema before any
// field is trusted.
func parseExtractionEnvelope(content string) (domain.ExtractedFields, map[string]domain.FieldLocation, error) {
	raw := extractJSONObject(content)

	if err := validateExtractionEnvelope([]byte(raw)); err != nil {
		return domain.ExtractedFields{}, nil, domain.WrapError(domain.ErrProviderOutput, "validate extraction envelope", err)
	}

	var envelope extractionEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return domain.ExtractedFields{}, nil, domain.WrapError(domain.ErrProviderOutput, "parse extraction envelope", err)
	}

	fields := domain.ExtractedFields{
		Currency:  strings.ToUpper(strings.TrimSpace(envelope.Currency)),
		Issuer:    entityFromEnvelope(envelope.Issuer),
		Recipient: entityFromEnvelope(envelope.Recipient),
		Raw:       envelope.Raw,
	}

	if envelope.InvoiceDate != "" {
		date, err := NormalizeDate(envelope.InvoiceDate)
		if err != nil {
			return domain.ExtractedFields{}, nil, domain.WrapError(domain.ErrProviderOutput, "normalize invoice date", err)
		}
		fields.InvoiceDate = date
	}

	if strings.TrimSpace(envelope.Amount) != "" {
		amount, err := ParseAmountMinor(envelope.Amount)
		if err != nil {
			return domain.ExtractedFields{}, nil, domain.WrapError(domain.ErrProviderOutput, "parse amount", err)
		}
		fields.AmountMinor = amount
	}

	if envelope.VATPercent != nil {
		vat := int(*envelope.VATPercent + 0.5)
		if vat < 0 || vat > 100 {
			return domain.ExtractedFields{}, nil, domain.WrapError(domain.ErrProviderOutput, "vat percent",
				fmt.Errorf("out of range: %v", *envelope.VATPercent))
		}
		fields.VATPercent = vat
	}

	if envelope.Confidence != nil {
		fields.Confidence = *envelope.Confidence
	}

	var boxes map[string]domain.FieldLocation
	if len(envelope.Boxes) > 0 {
		boxes = make(map[string]domain.FieldLocation, len(envelope.Boxes))
		for field, box := range envelope.Boxes {
			boxes[field] = domain.FieldLocation{
				Field: field,
				Page:  box.Page,
				X:     box.X,
				Y:     box.Y,
				W:     box.W,
				H:     box.H,
			}
		}
	}
	return fields, boxes, nil
}

func entityFromEnvelope(e envelopeEntity) domain.ExtractedEntity {
	return domain.ExtractedEntity{
		Name:    strings.TrimSpace(e.Name),
		VATID:   strings.TrimSpace(e.VATID),
		Address: strings.TrimSpace(e.Address),
		IBAN:    strings.TrimSpace(e.IBAN),
		Website: strings.TrimSpace(e.Website),
	}
}

var datePatterns = []struct {
	re     *regexp.Regexp
	layout func(m []string) string
}{
	// Already normalized: 2024-03-01.
	{regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`), func(m []string) string {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}},
	// European: 01.03.2024 or 1.3.2024.
	{regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`), func(m []string) string {
		return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
	}},
	// Slash form: 01/03/2024 (day first, matching the document locales).
	{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), func(m []string) string {
		return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
	}},
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeDate converts the model's date string to YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, p := range datePatterns {
		if m := p.re.FindStringSubmatch(trimmed); m != nil {
			return p.layout(m), nil
		}
	}
	return "", fmt.Errorf("unrecognized date format %q", raw)
}

var centsSuffix = regexp.MustCompile(`[.,]\d{2}$`)

// ParseAmountMinor normalizes a display amount to integer minor currency
// units: "123,45" -> 12345, "1.234,56" -> 123456, "99" -> 9900.
func ParseAmountMinor(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := strings.HasPrefix(trimmed, "-")

	var integerDigits, centDigits string
	if centsSuffix.MatchString(trimmed) {
		split := len(trimmed) - 3
		integerDigits = onlyDigits(trimmed[:split])
		centDigits = trimmed[split+1:]
	} else {
		integerDigits = onlyDigits(trimmed)
		centDigits = "00"
	}
	if integerDigits == "" {
		integerDigits = "0"
	}

	units, err := strconv.ParseInt(integerDigits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	cents, err := strconv.ParseInt(centDigits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount cents %q: %w", raw, err)
	}

	minor := units*100 + cents
	if negative {
		minor = -minor
	}
	return minor, nil
}

// FormatAmountMinor renders minor units back in the comma-decimal
// convention the documents use: 12345 -> "123,45".
func FormatAmountMinor(minor int64) string {
	negative := minor < 0
	if negative {
		minor = -minor
	}
	formatted := fmt.Sprintf("%d,%02d", minor/100, minor%100)
	if negative {
		return "-" + formatted
	}
	return formatted
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
