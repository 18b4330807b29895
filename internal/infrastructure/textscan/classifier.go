// Package textscan implements the zero-cost invoice pre-classifier: a
// keyword/regex heuristic over the embedded text of PDF uploads, applied
// before any paid AI call.
package textscan

import (
	"regexp"
	"strings"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

const (
	invoiceKeywordWeight  = 3
	vatKeywordWeight      = 2
	currencyAmountWeight  = 2
	ibanWeight            = 1
	negativeSinglePenalty = 2
	negativeMultiPenalty  = 4

	likelyInvoiceThreshold = 4
	notInvoiceThreshold    = -2
)

var (
	currencyPattern = regexp.MustCompile(`(?i)[€$£]|\b(EUR|USD|GBP|CHF)\b`)
	amountPattern   = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})*[.,]\d{2}\b`)
	ibanPattern     = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)

	vatKeywords = []string{
		"vat", "mwst", "mwst.", "ust", "umsatzsteuer", "mehrwertsteuer",
		"tva", "iva", "btw", "sales tax",
	}
	invoiceKeywords = []string{
		"invoice", "rechnung", "receipt", "quittung", "beleg",
		"facture", "fattura", "factura", "faktura", "honorarnote",
	}
	negativeKeywords = []string{
		"steuererklärung", "tax return", "jahresabschluss", "annual report",
		"vertrag", "contract", "kontoauszug", "bank statement",
		"bilanz", "mahnbescheid",
	}
)

// Classifier is a stateless heuristic; the zero value is usable.
type Classifier struct {
	// MaxPages bounds how many PDF pages of text are inspected.
	MaxPages int
}

func New() *Classifier {
	return &Classifier{MaxPages: 3}
}

// ClassifyText scores extractable document text against the pattern
// families. Non-PDF inputs and PDFs without embedded text come back
// uncertain, which callers treat as "assume invoice".
func (c *Classifier) ClassifyText(data []byte, mimeType string) domain.TextVerdict {
	if !strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return uncertainVerdict()
	}

	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}
	text, err := extractPDFText(data, maxPages)
	if err != nil || strings.TrimSpace(text) == "" {
		return uncertainVerdict()
	}
	return ScoreText(text)
}

// ScoreText applies the weighted pattern families to already-extracted
// text. Split out from ClassifyText so it is testable without PDF bytes.
func ScoreText(text string) domain.TextVerdict {
	lower := strings.ToLower(text)

	score := 0
	var signals []string

	if containsAny(lower, invoiceKeywords) {
		score += invoiceKeywordWeight
		signals = append(signals, "invoice_keyword")
	}
	if containsAny(lower, vatKeywords) {
		score += vatKeywordWeight
		signals = append(signals, "vat_keyword")
	}
	hasCurrency := currencyPattern.MatchString(text)
	hasAmount := amountPattern.MatchString(text)
	if hasCurrency && hasAmount {
		score += currencyAmountWeight
		signals = append(signals, "currency_amount")
	}
	if ibanPattern.MatchString(text) {
		score += ibanWeight
		signals = append(signals, "iban")
	}

	negatives := countMatches(lower, negativeKeywords)
	switch {
	case negatives >= 2:
		score -= negativeMultiPenalty
		signals = append(signals, "negative_keywords")
	case negatives == 1:
		score -= negativeSinglePenalty
		signals = append(signals, "negative_keyword")
	}

	switch {
	case score >= likelyInvoiceThreshold:
		return domain.TextVerdict{IsLikelyInvoice: true, Confidence: domain.TextConfidenceHigh, Signals: signals}
	case score >= 2:
		return domain.TextVerdict{IsLikelyInvoice: true, Confidence: domain.TextConfidenceMedium, Signals: signals}
	case score <= notInvoiceThreshold:
		return domain.TextVerdict{IsLikelyInvoice: false, Confidence: domain.TextConfidenceHigh, Signals: signals}
	case score < 0:
		return domain.TextVerdict{IsLikelyInvoice: false, Confidence: domain.TextConfidenceMedium, Signals: signals}
	default:
		// Ambiguous text defaults to "assume invoice" so real invoices are
		// never silently dropped by a heuristic.
		return domain.TextVerdict{IsLikelyInvoice: true, Confidence: domain.TextConfidenceUncertain, Signals: signals}
	}
}

func uncertainVerdict() domain.TextVerdict {
	return domain.TextVerdict{IsLikelyInvoice: true, Confidence: domain.TextConfidenceUncertain}
}

func containsAny(haystack string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

func countMatches(haystack string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(haystack, keyword) {
			count++
		}
	}
	return count
}
