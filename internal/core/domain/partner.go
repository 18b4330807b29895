package domain

import "time"

// Partner-type markers used on transactions and documents.
const (
	PartnerTypeGlobal  = "global"
	PartnerTypePrivate = "private"
)

// GlobalPartner is shared, cross-owner reference data.
type GlobalPartner struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Address string   `json:"address,omitempty"`
	VATID   string   `json:"vat_id,omitempty"`
	IBANs   []string `json:"ibans,omitempty"`
	Website string   `json:"website,omitempty"`
}

// LocalPartner is the owner-private copy, optionally linked back to a
// global partner via GlobalID.
type LocalPartner struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"owner_id"`
	GlobalID string   `json:"global_id,omitempty"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Address  string   `json:"address,omitempty"`
	VATID    string   `json:"vat_id,omitempty"`
	IBANs    []string `json:"ibans,omitempty"`
	Website  string   `json:"website,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LocalizeReport summarizes one reconciliation run for an owner.
type LocalizeReport struct {
	PartnersCreated     int `json:"partners_created"`
	TransactionsUpdated int `json:"transactions_updated"`
	GroupsSkipped       int `json:"groups_skipped"`
}
