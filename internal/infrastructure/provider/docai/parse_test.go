package docai

import (
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

func TestParseAmountMinor(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"123,45", 12345},
		{"123.45", 12345},
		{"1.234,56", 123456},
		{"1,234.56", 123456},
		{"99", 9900},
		{"0,09", 9},
		{"-12,50", -1250},
		{"1.500", 150000},
		{" 141,61 ", 14161},
	}
	for _, tc := range tests {
		got, err := ParseAmountMinor(tc.raw)
		if err != nil {
			t.Fatalf("ParseAmountMinor(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAmountMinor(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}

	if _, err := ParseAmountMinor(""); err == nil {
		t.Fatal("expected error for empty amount")
	}
	if _, err := ParseAmountMinor("   "); err == nil {
		t.Fatal("expected error for blank amount")
	}
}

func TestFormatAmountMinorRoundTrip(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{12345, "123,45"},
		{9, "0,09"},
		{9900, "99,00"},
		{-1250, "-12,50"},
	}
	for _, tc := range tests {
		got := FormatAmountMinor(tc.minor)
		if got != tc.want {
			t.Fatalf("FormatAmountMinor(%d) = %q, want %q", tc.minor, got, tc.want)
		}
		back, err := ParseAmountMinor(got)
		if err != nil || back != tc.minor {
			t.Fatalf("round trip of %d via %q = %d, %v", tc.minor, got, back, err)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2024-03-01", "2024-03-01"},
		{"01.03.2024", "2024-03-01"},
		{"1.3.2024", "2024-03-01"},
		{"01/03/2024", "2024-03-01"},
		{"1/3/2024", "2024-03-01"},
		{" 15.11.2023 ", "2023-11-15"},
	}
	for _, tc := range tests {
		got, err := NormalizeDate(tc.raw)
		if err != nil {
			t.Fatalf("NormalizeDate(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"March 1, 2024", "2024/03/01", "32.13.2024x", ""} {
		if _, err := NormalizeDate(raw); err == nil {
			t.Fatalf("NormalizeDate(%q) expected error", raw)
		}
	}
}

func TestParseClassifyEnvelope(t *testing.T) {
	got, err := parseClassifyEnvelope(`{"is_invoice": true, "reason": " looks like a receipt "}`)
	if err != nil {
		t.Fatalf("parseClassifyEnvelope() error = %v", err)
	}
	if !got.IsInvoice || got.Reason != "looks like a receipt" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseClassifyEnvelopeProseWrapped(t *testing.T) {
	content := "Sure, here is the verdict:\n```json\n{\"is_invoice\": false, \"reason\": \"bank statement\"}\n```"
	got, err := parseClassifyEnvelope(content)
	if err != nil {
		t.Fatalf("parseClassifyEnvelope() error = %v", err)
	}
	if got.IsInvoice {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseClassifyEnvelopeMissingVerdict(t *testing.T) {
	_, err := parseClassifyEnvelope(`{"reason": "no verdict"}`)
	if !domain.IsKind(err, domain.ErrProviderOutput) {
		t.Fatalf("expected ErrProviderOutput, got %v", err)
	}

	_, err = parseClassifyEnvelope("no json here at all")
	if !domain.IsKind(err, domain.ErrProviderOutput) {
		t.Fatalf("expected ErrProviderOutput, got %v", err)
	}
}

func TestParseExtractionEnvelope(t *testing.T) {
	content := `{
		"invoice_date": "15.11.2023",
		"amount": "1.234,56",
		"currency": "eur",
		"vat_percent": 19,
		"confidence": 0.92,
		"issuer": {"name": " Cloud Hosting Ltd ", "vat_id": "GB999912345", "iban": "GB33BUKB20201555555555"},
		"recipient": {"name": "Max Mustermann GmbH"},
		"raw": {"invoice_number": "2023-0815"},
		"boxes": {"amount": {"page": 1, "x": 0.7, "y": 0.8, "w": 0.1, "h": 0.05}}
	}`

	fields, boxes, err := parseExtractionEnvelope(content)
	if err != nil {
		t.Fatalf("parseExtractionEnvelope() error = %v", err)
	}
	if fields.InvoiceDate != "2023-11-15" {
		t.Fatalf("InvoiceDate = %q", fields.InvoiceDate)
	}
	if fields.AmountMinor != 123456 {
		t.Fatalf("AmountMinor = %d", fields.AmountMinor)
	}
	if fields.Currency != "EUR" {
		t.Fatalf("Currency = %q", fields.Currency)
	}
	if fields.VATPercent != 19 {
		t.Fatalf("VATPercent = %d", fields.VATPercent)
	}
	if fields.Confidence != 0.92 {
		t.Fatalf("Confidence = %v", fields.Confidence)
	}
	if fields.Issuer.Name != "Cloud Hosting Ltd" {
		t.Fatalf("Issuer.Name = %q, want trimmed value", fields.Issuer.Name)
	}
	if fields.Raw["invoice_number"] != "2023-0815" {
		t.Fatalf("Raw = %v", fields.Raw)
	}
	box, ok := boxes["amount"]
	if !ok || box.Page != 1 || box.X != 0.7 {
		t.Fatalf("boxes = %+v", boxes)
	}
}

func TestParseExtractionEnvelopeOptionalFieldsAbsent(t *testing.T) {
	fields, boxes, err := parseExtractionEnvelope(`{"issuer": {"name": "ACME"}}`)
	if err != nil {
		t.Fatalf("parseExtractionEnvelope() error = %v", err)
	}
	if fields.AmountMinor != 0 || fields.InvoiceDate != "" || fields.VATPercent != 0 {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if boxes != nil {
		t.Fatalf("expected no boxes, got %+v", boxes)
	}
}

func TestParseExtractionEnvelopeRejectsBadOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"vat out of range", `{"vat_percent": 250}`},
		{"confidence above one", `{"confidence": 1.5}`},
		{"amount as number", `{"amount": 123.45}`},
		{"unparseable date", `{"invoice_date": "sometime in March"}`},
		{"prose only", "the document appears to be an invoice"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseExtractionEnvelope(tc.content)
			if !domain.IsKind(err, domain.ErrProviderOutput) {
				t.Fatalf("expected ErrProviderOutput, got %v", err)
			}
		})
	}
}
