package domain

// UserIdentity is the owner's declared business identity. It is read-only
// input to counterparty resolution; absence (nil) is a valid state for
// owners that never configured identity data.
type UserIdentity struct {
	OwnerID      string   `json:"owner_id"`
	CompanyName  string   `json:"company_name,omitempty"`
	PersonalName string   `json:"personal_name,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	VATIDs       []string `json:"vat_ids,omitempty"`
	IBANs        []string `json:"ibans,omitempty"`
}
