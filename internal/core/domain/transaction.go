package domain

import "time"

// Transaction is the slice of a bank transaction the matchers and the
// reconciliation job need. The full banking model lives outside this core.
type Transaction struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	PartnerID   string `json:"partner_id,omitempty"`
	PartnerType string `json:"partner_type,omitempty"`
	PartnerName string `json:"partner_name,omitempty"`
	Name        string `json:"name,omitempty"`
	Reference   string `json:"reference,omitempty"`
	CategoryID  string `json:"category_id,omitempty"`

	// AmountMinor is signed: negative for outgoing money, positive for
	// incoming. BookingDate is ISO "2006-01-02" or empty.
	AmountMinor int64  `json:"amount_minor"`
	BookingDate string `json:"booking_date,omitempty"`

	FileCount int `json:"file_count"`

	// PartnerSuggestions are soft candidates, distinct from the hard
	// PartnerID assignment above.
	PartnerSuggestions []PartnerSuggestion `json:"partner_suggestions,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
