package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, owner_id, partner_id, partner_type, partner_name, name, reference,
	category_id, amount_minor, booking_date, file_count, partner_suggestions, updated_at`

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction not found: %s", id)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) ListByGlobalPartner(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE owner_id = $1 AND partner_type = $2 AND partner_id <> ''
ORDER BY partner_id, id
`, ownerID, domain.PartnerTypeGlobal)
	if err != nil {
		return nil, fmt.Errorf("list global-partner transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) RetargetPartner(ctx context.Context, ids []string, localPartnerID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return 0, fmt.Errorf("marshal transaction ids: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE transactions
SET partner_id = $1,
    partner_type = $2,
    updated_at = $3
WHERE id IN (SELECT jsonb_array_elements_text($4::jsonb))
`, localPartnerID, domain.PartnerTypePrivate, time.Now().UTC(), idsJSON)
	if err != nil {
		return 0, fmt.Errorf("retarget transactions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retarget rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *TransactionRepository) ListRecentlyUpdated(ctx context.Context, ownerID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE owner_id = $1
ORDER BY updated_at DESC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) ListOpenByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE owner_id = $1 AND file_count = 0
ORDER BY updated_at DESC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list open transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) SavePartnerSuggestions(ctx context.Context, id string, suggestions []domain.PartnerSuggestion) error {
	var suggestionsJSON []byte
	if len(suggestions) > 0 {
		var err error
		if suggestionsJSON, err = json.Marshal(suggestions); err != nil {
			return fmt.Errorf("marshal partner suggestions: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE transactions
SET partner_suggestions = $2,
    updated_at = $3
WHERE id = $1
`, id, suggestionsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save partner suggestions: %w", err)
	}
	return nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var suggestionsRaw []byte
	err := row.Scan(
		&tx.ID, &tx.OwnerID, &tx.PartnerID, &tx.PartnerType, &tx.PartnerName, &tx.Name, &tx.Reference,
		&tx.CategoryID, &tx.AmountMinor, &tx.BookingDate, &tx.FileCount, &suggestionsRaw, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(suggestionsRaw) > 0 {
		if err := json.Unmarshal(suggestionsRaw, &tx.PartnerSuggestions); err != nil {
			return nil, fmt.Errorf("unmarshal partner suggestions: %w", err)
		}
	}
	return &tx, nil
}
