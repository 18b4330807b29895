package usecase

import (
	"context"
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

func matchableDocument() *domain.Document {
	amount := int64(14161)
	date := "2024-03-01"
	partner := "Cloud Hosting Ltd"
	return &domain.Document{
		ID:               "doc-1",
		OwnerID:          "owner-1",
		AmountMinor:      &amount,
		InvoiceDate:      &date,
		ExtractedPartner: &partner,
		PartnerID:        "p-1",
	}
}

func TestMatchTransactionsPersistsRankedSuggestions(t *testing.T) {
	repo := &repoFake{doc: matchableDocument()}
	txs := newTxRepoFake(
		// Same amount, same hard partner assignment.
		&domain.Transaction{ID: "tx-partner", OwnerID: "owner-1", AmountMinor: -14161, PartnerID: "p-1"},
		// Same amount, booking date two days after the invoice.
		&domain.Transaction{ID: "tx-date", OwnerID: "owner-1", AmountMinor: -14161, BookingDate: "2024-03-03"},
		// Same amount, nothing else.
		&domain.Transaction{ID: "tx-amount", OwnerID: "owner-1", AmountMinor: -14161, BookingDate: "2024-04-20"},
		// Different amount never matches.
		&domain.Transaction{ID: "tx-other", OwnerID: "owner-1", AmountMinor: -9900},
	)
	uc := NewMatchDocumentTransactionsUseCase(repo, txs, discardLogger())

	suggestions, err := uc.MatchTransactions(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("MatchTransactions() error = %v", err)
	}

	if len(suggestions) != 3 {
		t.Fatalf("suggestions = %d, want 3 (%+v)", len(suggestions), suggestions)
	}
	if suggestions[0].TransactionID != "tx-partner" || suggestions[0].Confidence != txAmountPartnerConfidence {
		t.Fatalf("top suggestion = %+v", suggestions[0])
	}
	if suggestions[1].TransactionID != "tx-date" || suggestions[1].Confidence != txAmountDateConfidence {
		t.Fatalf("second suggestion = %+v", suggestions[1])
	}
	if suggestions[2].TransactionID != "tx-amount" || suggestions[2].Confidence != txAmountOnlyConfidence {
		t.Fatalf("third suggestion = %+v", suggestions[2])
	}
	if len(repo.savedTxSuggestions) != 3 {
		t.Fatalf("persisted suggestions = %+v", repo.savedTxSuggestions)
	}
}

func TestMatchTransactionsNoAmountCompletesEmpty(t *testing.T) {
	doc := matchableDocument()
	doc.AmountMinor = nil
	repo := &repoFake{doc: doc}
	txs := newTxRepoFake(
		&domain.Transaction{ID: "tx-1", OwnerID: "owner-1", AmountMinor: -14161},
	)
	uc := NewMatchDocumentTransactionsUseCase(repo, txs, discardLogger())

	suggestions, err := uc.MatchTransactions(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("MatchTransactions() error = %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("expected no suggestions without an amount, got %+v", suggestions)
	}
	if !repo.txSuggestionsSaved {
		t.Fatal("the phase must still complete with an empty result")
	}
}

func TestMatchTransactionCandidates(t *testing.T) {
	doc := matchableDocument()
	doc.PartnerID = ""

	tests := []struct {
		name           string
		candidate      domain.Transaction
		wantConfidence int
	}{
		{
			name:           "amount and partner name on the transaction",
			candidate:      domain.Transaction{ID: "tx-1", AmountMinor: -14161, PartnerName: "Cloud Hosting Ltd."},
			wantConfidence: txAmountPartnerConfidence,
		},
		{
			name:           "amount and booking date on the window edge",
			candidate:      domain.Transaction{ID: "tx-1", AmountMinor: -14161, BookingDate: "2024-03-04"},
			wantConfidence: txAmountDateConfidence,
		},
		{
			name:           "booking date outside the window drops to amount only",
			candidate:      domain.Transaction{ID: "tx-1", AmountMinor: -14161, BookingDate: "2024-03-06"},
			wantConfidence: txAmountOnlyConfidence,
		},
		{
			name:           "incoming transaction matches by absolute amount",
			candidate:      domain.Transaction{ID: "tx-1", AmountMinor: 14161},
			wantConfidence: txAmountOnlyConfidence,
		},
		{
			name:           "different amount never matches",
			candidate:      domain.Transaction{ID: "tx-1", AmountMinor: -14162, PartnerName: "Cloud Hosting Ltd"},
			wantConfidence: 0,
		},
		{
			name:           "transaction with a receipt attached is skipped",
			candidate:      domain.Transaction{ID: "tx-1", AmountMinor: -14161, FileCount: 1},
			wantConfidence: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchTransactionCandidates(doc, []domain.Transaction{tc.candidate})
			if tc.wantConfidence == 0 {
				if len(got) != 0 {
					t.Fatalf("expected no suggestion, got %+v", got)
				}
				return
			}
			if len(got) != 1 || got[0].Confidence != tc.wantConfidence {
				t.Fatalf("suggestions = %+v, want confidence %d", got, tc.wantConfidence)
			}
		})
	}
}

func TestMatchTransactionCandidatesCapsAndRejects(t *testing.T) {
	if got := MatchTransactionCandidates(nil, nil); got != nil {
		t.Fatalf("nil document must yield nil, got %+v", got)
	}

	notInvoice := matchableDocument()
	notInvoice.IsNotInvoice = true
	if got := MatchTransactionCandidates(notInvoice, []domain.Transaction{{ID: "tx-1", AmountMinor: -14161}}); got != nil {
		t.Fatalf("not-invoice document must yield nil, got %+v", got)
	}

	doc := matchableDocument()
	candidates := []domain.Transaction{
		{ID: "tx-1", AmountMinor: -14161},
		{ID: "tx-2", AmountMinor: -14161},
		{ID: "tx-3", AmountMinor: -14161},
		{ID: "tx-4", AmountMinor: -14161},
	}
	got := MatchTransactionCandidates(doc, candidates)
	if len(got) != maxSuggestions {
		t.Fatalf("suggestions = %d, want cap %d", len(got), maxSuggestions)
	}
}
