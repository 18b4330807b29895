package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

// IdentityRepository serves both the identity and the bank-account read
// ports; the two tables are owned by the same profile domain.
type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// GetByOwner returns (nil, nil) for owners without configured identity
// data; counterparty resolution treats that as "match nothing".
func (r *IdentityRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.UserIdentity, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT owner_id, company_name, personal_name, aliases, vat_ids, ibans
FROM user_identities
WHERE owner_id = $1
`, ownerID)

	var identity domain.UserIdentity
	var aliasesRaw, vatIDsRaw, ibansRaw []byte
	err := row.Scan(&identity.OwnerID, &identity.CompanyName, &identity.PersonalName, &aliasesRaw, &vatIDsRaw, &ibansRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user identity: %w", err)
	}
	if err := unmarshalStrings(aliasesRaw, &identity.Aliases); err != nil {
		return nil, fmt.Errorf("unmarshal aliases: %w", err)
	}
	if err := unmarshalStrings(vatIDsRaw, &identity.VATIDs); err != nil {
		return nil, fmt.Errorf("unmarshal vat ids: %w", err)
	}
	if err := unmarshalStrings(ibansRaw, &identity.IBANs); err != nil {
		return nil, fmt.Errorf("unmarshal ibans: %w", err)
	}
	return &identity, nil
}

func (r *IdentityRepository) ActiveIBANs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT iban
FROM bank_accounts
WHERE owner_id = $1 AND active
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list active ibans: %w", err)
	}
	defer rows.Close()

	var ibans []string
	for rows.Next() {
		var iban string
		if err := rows.Scan(&iban); err != nil {
			return nil, fmt.Errorf("scan iban: %w", err)
		}
		ibans = append(ibans, iban)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ibans: %w", err)
	}
	return ibans, nil
}
