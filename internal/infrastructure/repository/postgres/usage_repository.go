package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

// UsageRepository is the append-only AI cost ledger.
type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Record(ctx context.Context, record domain.UsageRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ai_usage (owner_id, document_id, phase, model, input_tokens, output_tokens, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		record.OwnerID, record.DocumentID, record.Phase, record.Model,
		record.InputTokens, record.OutputTokens, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}
