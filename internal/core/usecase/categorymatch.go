package usecase

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

const (
	// SuggestionThreshold is the minimum combined confidence for a
	// suggestion to be emitted at all.
	SuggestionThreshold = 60
	// AutoApplyThreshold marks suggestions safe to apply without user
	// review. Evaluated by callers, not by the matcher.
	AutoApplyThreshold = 89

	maxSuggestions        = 3
	partnerOnlyConfidence = 85
	combinedPatternBonus  = 15
	combinedConfidenceCap = 100
)

// CategorizeTransactionUseCase suggests no-receipt categories for a
// transaction by combining partner-set membership with learned text
// patterns.
type CategorizeTransactionUseCase struct {
	transactions ports.TransactionRepository
	categories   ports.CategoryRepository
}

func NewCategorizeTransactionUseCase(transactions ports.TransactionRepository, categories ports.CategoryRepository) *CategorizeTransactionUseCase {
	return &CategorizeTransactionUseCase{transactions: transactions, categories: categories}
}

func (uc *CategorizeTransactionUseCase) SuggestCategories(ctx context.Context, transactionID string) ([]domain.CategorySuggestion, error) {
	tx, err := uc.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	categories, err := uc.categories.ListByOwner(ctx, tx.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	removals := map[string][]string{}
	for _, category := range categories {
		removed, err := uc.categories.ManualRemovals(ctx, category.ID)
		if err != nil {
			return nil, fmt.Errorf("list manual removals for category %s: %w", category.ID, err)
		}
		removals[category.ID] = removed
	}

	return MatchTransactionToCategories(tx, categories, removals), nil
}

// MatchTransactionToCategories is the pure scoring engine. A transaction
// that already carries a category or has attached files (a receipt) is
// excluded entirely; no-receipt categories only apply to receipt-less
// transactions.
func MatchTransactionToCategories(tx *domain.Transaction, categories []domain.Category, manualRemovals map[string][]string) []domain.CategorySuggestion {
	if tx == nil || tx.CategoryID != "" || tx.FileCount > 0 {
		return nil
	}

	haystack := strings.ToLower(strings.Join([]string{tx.PartnerName, tx.Name, tx.Reference}, " "))

	var suggestions []domain.CategorySuggestion
	for _, category := range categories {
		if !category.Active || category.ManualOnly {
			continue
		}
		if containsString(manualRemovals[category.ID], tx.ID) {
			continue
		}

		partnerMatch := tx.PartnerID != "" && containsString(category.PartnerIDs, tx.PartnerID)
		patternConfidence, patternMatch := bestPatternConfidence(category.Patterns, haystack)

		var confidence int
		var matchedBy string
		switch {
		case partnerMatch && patternMatch:
			confidence = min(combinedConfidenceCap, patternConfidence+combinedPatternBonus)
			matchedBy = "partner+pattern"
		case partnerMatch:
			confidence = partnerOnlyConfidence
			matchedBy = "partner"
		case patternMatch:
			confidence = patternConfidence
			matchedBy = "pattern"
		default:
			continue
		}

		if confidence < SuggestionThreshold {
			continue
		}
		suggestions = append(suggestions, domain.CategorySuggestion{
			CategoryID: category.ID,
			MatchedBy:  matchedBy,
			Confidence: confidence,
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

// bestPatternConfidence returns the highest confidence among learned
// patterns whose glob matches the haystack.
func bestPatternConfidence(patterns []domain.LearnedPattern, haystack string) (int, bool) {
	best := 0
	matched := false
	for _, pattern := range patterns {
		glob := strings.ToLower(strings.TrimSpace(pattern.Pattern))
		if glob == "" {
			continue
		}
		ok, err := path.Match(glob, haystack)
		if err != nil {
			continue
		}
		// A bare substring pattern without wildcards still counts when
		// contained in the haystack.
		if !ok && !strings.ContainsAny(glob, "*?[") {
			ok = strings.Contains(haystack, glob)
		}
		if ok && pattern.Confidence > best {
			best = pattern.Confidence
			matched = true
		}
	}
	return best, matched
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
