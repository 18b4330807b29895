package domain

// LearnedPattern is a glob-style text rule a category accumulates from past
// matches, together with the confidence it earned.
type LearnedPattern struct {
	Pattern    string `json:"pattern"`
	Confidence int    `json:"confidence"`
}

// Category is a user-defined no-receipt category. The matcher only ever
// suggests categories for transactions without attached receipts.
type Category struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	Name             string           `json:"name"`
	PartnerIDs       []string         `json:"partner_ids,omitempty"`
	Patterns         []LearnedPattern `json:"patterns,omitempty"`
	TransactionCount int              `json:"transaction_count"`
	Active           bool             `json:"active"`
	// ManualOnly marks the special template that is never auto-suggested.
	ManualOnly bool `json:"manual_only"`
}

// CategorySuggestion is one ranked category candidate for a transaction.
type CategorySuggestion struct {
	CategoryID string `json:"category_id"`
	MatchedBy  string `json:"matched_by"`
	Confidence int    `json:"confidence"`
}
