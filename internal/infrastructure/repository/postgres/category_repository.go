package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, name, partner_ids, patterns, transaction_count, active, manual_only
FROM categories
WHERE owner_id = $1
ORDER BY name
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var category domain.Category
		var partnerIDsRaw, patternsRaw []byte
		err := rows.Scan(
			&category.ID, &category.OwnerID, &category.Name, &partnerIDsRaw, &patternsRaw,
			&category.TransactionCount, &category.Active, &category.ManualOnly,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if err := unmarshalStrings(partnerIDsRaw, &category.PartnerIDs); err != nil {
			return nil, fmt.Errorf("unmarshal partner ids: %w", err)
		}
		if len(patternsRaw) > 0 {
			if err := json.Unmarshal(patternsRaw, &category.Patterns); err != nil {
				return nil, fmt.Errorf("unmarshal patterns: %w", err)
			}
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) ManualRemovals(ctx context.Context, categoryID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT transaction_id
FROM category_manual_removals
WHERE category_id = $1
`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list manual removals: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan manual removal: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manual removals: %w", err)
	}
	return ids, nil
}
