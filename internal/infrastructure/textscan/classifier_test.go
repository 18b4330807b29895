package textscan

import (
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

func TestScoreText(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantInvoice    bool
		wantConfidence domain.TextConfidence
	}{
		{
			name: "german invoice with vat amount and iban",
			text: `Rechnung Nr. 2024-0815
Umsatzsteuer 19%: 22,61 €
Gesamtbetrag: 141,61 €
IBAN: DE89370400440532013000`,
			wantInvoice:    true,
			wantConfidence: domain.TextConfidenceHigh,
		},
		{
			name:           "invoice keyword plus amounts only",
			text:           "Invoice #42, total due $1,299.00",
			wantInvoice:    true,
			wantConfidence: domain.TextConfidenceHigh,
		},
		{
			name:           "vat keyword alone is medium",
			text:           "MwSt wird gesondert ausgewiesen",
			wantInvoice:    true,
			wantConfidence: domain.TextConfidenceMedium,
		},
		{
			name:           "two negative keywords",
			text:           "Jahresabschluss 2023 mit Bilanz der Gesellschaft",
			wantInvoice:    false,
			wantConfidence: domain.TextConfidenceHigh,
		},
		{
			name:           "single negative keyword",
			text:           "Anlage zum Vertrag vom 1. Januar",
			wantInvoice:    false,
			wantConfidence: domain.TextConfidenceMedium,
		},
		{
			name:           "negatives outweighed by invoice signals",
			text:           "Rechnung zum Vertrag, MwSt 19%, Betrag 99,00 EUR",
			wantInvoice:    true,
			wantConfidence: domain.TextConfidenceHigh,
		},
		{
			name:           "ambiguous text assumes invoice",
			text:           "Sehr geehrte Damen und Herren, anbei die Unterlagen.",
			wantInvoice:    true,
			wantConfidence: domain.TextConfidenceUncertain,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreText(tc.text)
			if got.IsLikelyInvoice != tc.wantInvoice {
				t.Fatalf("IsLikelyInvoice = %v, want %v (signals %v)", got.IsLikelyInvoice, tc.wantInvoice, got.Signals)
			}
			if got.Confidence != tc.wantConfidence {
				t.Fatalf("Confidence = %q, want %q (signals %v)", got.Confidence, tc.wantConfidence, got.Signals)
			}
		})
	}
}

func TestScoreTextRecordsSignals(t *testing.T) {
	got := ScoreText("Invoice, VAT 19%, 141,61 EUR, IBAN DE89370400440532013000")
	want := map[string]bool{
		"invoice_keyword": true,
		"vat_keyword":     true,
		"currency_amount": true,
		"iban":            true,
	}
	if len(got.Signals) != len(want) {
		t.Fatalf("signals = %v, want all four families", got.Signals)
	}
	for _, s := range got.Signals {
		if !want[s] {
			t.Fatalf("unexpected signal %q in %v", s, got.Signals)
		}
	}
}

func TestClassifyTextNonPDFIsUncertain(t *testing.T) {
	c := New()
	got := c.ClassifyText([]byte("Rechnung MwSt 99,00 EUR"), "image/png")
	if !got.IsLikelyInvoice || got.Confidence != domain.TextConfidenceUncertain {
		t.Fatalf("non-PDF input must come back uncertain, got %+v", got)
	}
}

func TestClassifyTextGarbagePDFIsUncertain(t *testing.T) {
	c := New()
	got := c.ClassifyText([]byte("not a pdf at all"), "application/pdf")
	if !got.IsLikelyInvoice || got.Confidence != domain.TextConfidenceUncertain {
		t.Fatalf("unreadable PDF must come back uncertain, got %+v", got)
	}
}
