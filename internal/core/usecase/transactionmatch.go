package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

const (
	txAmountPartnerConfidence = 95
	txAmountDateConfidence    = 90
	txAmountOnlyConfidence    = 75

	// bookingDateWindowDays is how far a booking date may drift from the
	// invoice date and still count as a date signal. Card settlements and
	// SEPA batches land a few days after the invoice date.
	bookingDateWindowDays = 3

	// transactionScanLimit bounds the open-transaction candidate fetch.
	transactionScanLimit = 500
)

// MatchDocumentTransactionsUseCase links an extracted document to open
// bank transactions. Same scoring shape as the partner matcher: the
// amount gates, the strongest corroborating signal sets the confidence.
type MatchDocumentTransactionsUseCase struct {
	docs         ports.DocumentRepository
	transactions ports.TransactionRepository
	logger       *slog.Logger
}

func NewMatchDocumentTransactionsUseCase(docs ports.DocumentRepository, transactions ports.TransactionRepository, logger *slog.Logger) *MatchDocumentTransactionsUseCase {
	return &MatchDocumentTransactionsUseCase{docs: docs, transactions: transactions, logger: logger}
}

// MatchTransactions computes suggestions for a document and persists
// them. Documents without an extracted amount complete the phase with no
// suggestions.
func (uc *MatchDocumentTransactionsUseCase) MatchTransactions(ctx context.Context, documentID string) ([]domain.TransactionSuggestion, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	candidates, err := uc.transactions.ListOpenByOwner(ctx, doc.OwnerID, transactionScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list open transactions: %w", err)
	}

	suggestions := MatchTransactionCandidates(doc, candidates)

	if err := uc.docs.SaveTransactionSuggestions(ctx, documentID, suggestions); err != nil {
		return nil, fmt.Errorf("save transaction suggestions: %w", err)
	}

	uc.logger.Info("transaction match complete",
		"document_id", documentID, "suggestions", len(suggestions))
	return suggestions, nil
}

// MatchTransactionCandidates scores open transactions against the
// document. Amounts compare by absolute value: the document carries the
// invoice total while the transaction is signed by direction.
func MatchTransactionCandidates(doc *domain.Document, candidates []domain.Transaction) []domain.TransactionSuggestion {
	if doc == nil || doc.IsNotInvoice || doc.AmountMinor == nil || *doc.AmountMinor == 0 {
		return nil
	}

	docAmount := *doc.AmountMinor
	if docAmount < 0 {
		docAmount = -docAmount
	}
	docName := ""
	if doc.ExtractedPartner != nil {
		docName = strings.ToLower(strings.TrimSpace(*doc.ExtractedPartner))
	}
	docDate := ""
	if doc.InvoiceDate != nil {
		docDate = *doc.InvoiceDate
	}

	var suggestions []domain.TransactionSuggestion
	for _, candidate := range candidates {
		if candidate.FileCount > 0 {
			continue
		}
		confidence := scoreTransactionCandidate(candidate, docAmount, docDate, doc.PartnerID, docName)
		if confidence < SuggestionThreshold {
			continue
		}
		suggestions = append(suggestions, domain.TransactionSuggestion{
			TransactionID: candidate.ID,
			Confidence:    confidence,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func scoreTransactionCandidate(candidate domain.Transaction, docAmount int64, docDate, docPartnerID, docName string) int {
	amount := candidate.AmountMinor
	if amount < 0 {
		amount = -amount
	}
	if amount == 0 || amount != docAmount {
		return 0
	}

	if docPartnerID != "" && candidate.PartnerID == docPartnerID {
		return txAmountPartnerConfidence
	}
	if docName != "" && transactionNameMatches(candidate, docName) {
		return txAmountPartnerConfidence
	}
	if bookingDateNearInvoice(candidate.BookingDate, docDate) {
		return txAmountDateConfidence
	}
	return txAmountOnlyConfidence
}

func transactionNameMatches(candidate domain.Transaction, docName string) bool {
	for _, name := range []string{candidate.PartnerName, candidate.Name} {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if strings.Contains(normalized, docName) || strings.Contains(docName, normalized) {
			return true
		}
	}
	return false
}

func bookingDateNearInvoice(bookingDate, invoiceDate string) bool {
	if bookingDate == "" || invoiceDate == "" {
		return false
	}
	booked, err := time.Parse("2006-01-02", bookingDate)
	if err != nil {
		return false
	}
	invoiced, err := time.Parse("2006-01-02", invoiceDate)
	if err != nil {
		return false
	}
	diff := booked.Sub(invoiced)
	if diff < 0 {
		diff = -diff
	}
	return diff <= bookingDateWindowDays*24*time.Hour
}
