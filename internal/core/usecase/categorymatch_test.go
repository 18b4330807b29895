package usecase

import (
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

func noReceiptTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:          "tx-1",
		OwnerID:     "owner-1",
		PartnerID:   "partner-1",
		PartnerName: "Shell Tankstelle",
		Reference:   "Kartenzahlung 0815",
	}
}

func TestMatchTransactionExcludesCategorizedAndReceipted(t *testing.T) {
	categories := []domain.Category{{
		ID:         "cat-fuel",
		Active:     true,
		PartnerIDs: []string{"partner-1"},
	}}

	withCategory := noReceiptTransaction()
	withCategory.CategoryID = "cat-other"
	if got := MatchTransactionToCategories(withCategory, categories, nil); got != nil {
		t.Fatalf("categorized transaction must be excluded, got %+v", got)
	}

	withReceipt := noReceiptTransaction()
	withReceipt.FileCount = 1
	if got := MatchTransactionToCategories(withReceipt, categories, nil); got != nil {
		t.Fatalf("transaction with receipt must be excluded, got %+v", got)
	}
}

func TestMatchTransactionPartnerOnly(t *testing.T) {
	categories := []domain.Category{{
		ID:         "cat-fuel",
		Active:     true,
		PartnerIDs: []string{"partner-1"},
	}}

	got := MatchTransactionToCategories(noReceiptTransaction(), categories, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].Confidence != partnerOnlyConfidence || got[0].MatchedBy != "partner" {
		t.Fatalf("unexpected suggestion: %+v", got[0])
	}
}

func TestMatchTransactionCombinedBonusAndCap(t *testing.T) {
	tests := []struct {
		patternConfidence int
		want              int
	}{
		{70, 85},
		{90, 100},
		{99, 100},
	}
	for _, tc := range tests {
		categories := []domain.Category{{
			ID:         "cat-fuel",
			Active:     true,
			PartnerIDs: []string{"partner-1"},
			Patterns:   []domain.LearnedPattern{{Pattern: "shell", Confidence: tc.patternConfidence}},
		}}
		got := MatchTransactionToCategories(noReceiptTransaction(), categories, nil)
		if len(got) != 1 {
			t.Fatalf("pattern %d: expected 1 suggestion, got %d", tc.patternConfidence, len(got))
		}
		if got[0].Confidence != tc.want || got[0].MatchedBy != "partner+pattern" {
			t.Fatalf("pattern %d: got %+v, want confidence %d", tc.patternConfidence, got[0], tc.want)
		}
	}
}

func TestMatchTransactionPatternOnlyAndThreshold(t *testing.T) {
	categories := []domain.Category{
		{
			ID:       "cat-strong",
			Active:   true,
			Patterns: []domain.LearnedPattern{{Pattern: "shell", Confidence: 75}},
		},
		{
			ID:       "cat-weak",
			Active:   true,
			Patterns: []domain.LearnedPattern{{Pattern: "kartenzahlung", Confidence: 55}},
		},
	}

	tx := noReceiptTransaction()
	tx.PartnerID = ""
	got := MatchTransactionToCategories(tx, categories, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion (weak one below threshold), got %+v", got)
	}
	if got[0].CategoryID != "cat-strong" || got[0].Confidence != 75 || got[0].MatchedBy != "pattern" {
		t.Fatalf("unexpected suggestion: %+v", got[0])
	}
}

func TestMatchTransactionSkipsInactiveManualOnlyAndRemoved(t *testing.T) {
	categories := []domain.Category{
		{ID: "cat-inactive", Active: false, PartnerIDs: []string{"partner-1"}},
		{ID: "cat-manual", Active: true, ManualOnly: true, PartnerIDs: []string{"partner-1"}},
		{ID: "cat-removed", Active: true, PartnerIDs: []string{"partner-1"}},
	}
	removals := map[string][]string{"cat-removed": {"tx-1"}}

	if got := MatchTransactionToCategories(noReceiptTransaction(), categories, removals); got != nil {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}

func TestMatchTransactionRankingAndCap(t *testing.T) {
	categories := []domain.Category{
		{ID: "cat-a", Active: true, Patterns: []domain.LearnedPattern{{Pattern: "shell", Confidence: 70}}},
		{ID: "cat-b", Active: true, PartnerIDs: []string{"partner-1"}},
		{ID: "cat-c", Active: true, Patterns: []domain.LearnedPattern{{Pattern: "kartenzahlung", Confidence: 95}}},
		{ID: "cat-d", Active: true, Patterns: []domain.LearnedPattern{{Pattern: "tankstelle", Confidence: 65}}},
	}

	got := MatchTransactionToCategories(noReceiptTransaction(), categories, nil)
	if len(got) != maxSuggestions {
		t.Fatalf("expected %d suggestions, got %d", maxSuggestions, len(got))
	}
	if got[0].CategoryID != "cat-c" || got[1].CategoryID != "cat-b" || got[2].CategoryID != "cat-a" {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}

func TestBestPatternConfidenceGlobAndSubstring(t *testing.T) {
	patterns := []domain.LearnedPattern{
		{Pattern: "*tankstelle*", Confidence: 80},
		{Pattern: "shell", Confidence: 60},
	}
	confidence, matched := bestPatternConfidence(patterns, "shell tankstelle kartenzahlung 0815")
	if !matched || confidence != 80 {
		t.Fatalf("got confidence=%d matched=%v, want 80/true", confidence, matched)
	}

	_, matched = bestPatternConfidence([]domain.LearnedPattern{{Pattern: "aral", Confidence: 90}}, "shell tankstelle")
	if matched {
		t.Fatal("expected no match for unrelated pattern")
	}
}
