package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

type PartnerRepository struct {
	db *sql.DB
}

func NewPartnerRepository(db *sql.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

func (r *PartnerRepository) GetGlobal(ctx context.Context, id string) (*domain.GlobalPartner, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, aliases, address, vat_id, ibans, website
FROM global_partners
WHERE id = $1
`, id)

	var partner domain.GlobalPartner
	var aliasesRaw, ibansRaw []byte
	err := row.Scan(&partner.ID, &partner.Name, &aliasesRaw, &partner.Address, &partner.VATID, &ibansRaw, &partner.Website)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get global partner: %w", err)
	}
	if err := unmarshalStrings(aliasesRaw, &partner.Aliases); err != nil {
		return nil, fmt.Errorf("unmarshal aliases: %w", err)
	}
	if err := unmarshalStrings(ibansRaw, &partner.IBANs); err != nil {
		return nil, fmt.Errorf("unmarshal ibans: %w", err)
	}
	return &partner, nil
}

// FindLocalByGlobalID returns (nil, nil) when the owner has no private
// copy of the given global partner yet.
func (r *PartnerRepository) FindLocalByGlobalID(ctx context.Context, ownerID, globalID string) (*domain.LocalPartner, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, global_id, name, aliases, address, vat_id, ibans, website, created_at
FROM local_partners
WHERE owner_id = $1 AND global_id = $2
`, ownerID, globalID)

	partner, err := scanLocalPartner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find local partner: %w", err)
	}
	return partner, nil
}

func (r *PartnerRepository) CreateLocal(ctx context.Context, partner *domain.LocalPartner) error {
	aliasesJSON, err := marshalStrings(partner.Aliases)
	if err != nil {
		return fmt.Errorf("marshal aliases: %w", err)
	}
	ibansJSON, err := marshalStrings(partner.IBANs)
	if err != nil {
		return fmt.Errorf("marshal ibans: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO local_partners (id, owner_id, global_id, name, aliases, address, vat_id, ibans, website, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		partner.ID, partner.OwnerID, partner.GlobalID, partner.Name, aliasesJSON,
		partner.Address, partner.VATID, ibansJSON, partner.Website, partner.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert local partner: %w", err)
	}
	return nil
}

func (r *PartnerRepository) ListLocalByOwner(ctx context.Context, ownerID string) ([]domain.LocalPartner, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, global_id, name, aliases, address, vat_id, ibans, website, created_at
FROM local_partners
WHERE owner_id = $1
ORDER BY name
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list local partners: %w", err)
	}
	defer rows.Close()

	var partners []domain.LocalPartner
	for rows.Next() {
		partner, err := scanLocalPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan local partner: %w", err)
		}
		partners = append(partners, *partner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate local partners: %w", err)
	}
	return partners, nil
}

func scanLocalPartner(row rowScanner) (*domain.LocalPartner, error) {
	var partner domain.LocalPartner
	var aliasesRaw, ibansRaw []byte
	err := row.Scan(
		&partner.ID, &partner.OwnerID, &partner.GlobalID, &partner.Name, &aliasesRaw,
		&partner.Address, &partner.VATID, &ibansRaw, &partner.Website, &partner.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalStrings(aliasesRaw, &partner.Aliases); err != nil {
		return nil, fmt.Errorf("unmarshal aliases: %w", err)
	}
	if err := unmarshalStrings(ibansRaw, &partner.IBANs); err != nil {
		return nil, fmt.Errorf("unmarshal ibans: %w", err)
	}
	return &partner, nil
}

func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func unmarshalStrings(raw []byte, out *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
