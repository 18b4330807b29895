// Package postgres implements the persistence ports on database/sql
// with the pgx stdlib driver. Document writes are partial field-group
// updates; no method ever overwrites a whole record.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables the module owns. Bootstrap DDL is
// serialized with an advisory lock so api and worker can start
// concurrently against a fresh database.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	byte_size BIGINT NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	classification_complete BOOLEAN NOT NULL DEFAULT FALSE,
	classified_at TIMESTAMPTZ,
	extraction_complete BOOLEAN NOT NULL DEFAULT FALSE,
	extracted_at TIMESTAMPTZ,
	partner_match_complete BOOLEAN NOT NULL DEFAULT FALSE,
	partner_matched_at TIMESTAMPTZ,
	transaction_match_complete BOOLEAN NOT NULL DEFAULT FALSE,
	transaction_matched_at TIMESTAMPTZ,
	is_not_invoice BOOLEAN NOT NULL DEFAULT FALSE,
	not_invoice_reason TEXT NOT NULL DEFAULT '',
	invoice_date TEXT,
	amount_minor BIGINT,
	currency TEXT,
	vat_percent INTEGER,
	ocr_text TEXT,
	confidence INTEGER,
	provider TEXT NOT NULL DEFAULT '',
	extraction_error TEXT NOT NULL DEFAULT '',
	issuer JSONB,
	recipient JSONB,
	extracted_raw JSONB,
	invoice_direction TEXT NOT NULL DEFAULT '',
	matched_user_account TEXT NOT NULL DEFAULT '',
	extracted_partner TEXT,
	extracted_vat_id TEXT,
	extracted_iban TEXT,
	extracted_address TEXT,
	extracted_website TEXT,
	field_locations JSONB,
	partner_id TEXT NOT NULL DEFAULT '',
	partner_type TEXT NOT NULL DEFAULT '',
	partner_matched_by TEXT NOT NULL DEFAULT '',
	partner_match_confidence INTEGER NOT NULL DEFAULT 0,
	partner_match_manual BOOLEAN NOT NULL DEFAULT FALSE,
	transaction_suggestions JSONB,
	transaction_match_manual BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(owner_id, content_hash);

CREATE TABLE IF NOT EXISTS global_partners (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	aliases JSONB NOT NULL DEFAULT '[]'::jsonb,
	address TEXT NOT NULL DEFAULT '',
	vat_id TEXT NOT NULL DEFAULT '',
	ibans JSONB NOT NULL DEFAULT '[]'::jsonb,
	website TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS local_partners (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	global_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	aliases JSONB NOT NULL DEFAULT '[]'::jsonb,
	address TEXT NOT NULL DEFAULT '',
	vat_id TEXT NOT NULL DEFAULT '',
	ibans JSONB NOT NULL DEFAULT '[]'::jsonb,
	website TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_local_partners_owner ON local_partners(owner_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_local_partners_global
	ON local_partners(owner_id, global_id) WHERE global_id <> '';

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	partner_id TEXT NOT NULL DEFAULT '',
	partner_type TEXT NOT NULL DEFAULT '',
	partner_name TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	reference TEXT NOT NULL DEFAULT '',
	category_id TEXT NOT NULL DEFAULT '',
	amount_minor BIGINT NOT NULL DEFAULT 0,
	booking_date TEXT NOT NULL DEFAULT '',
	file_count INTEGER NOT NULL DEFAULT 0,
	partner_suggestions JSONB,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_partner ON transactions(owner_id, partner_type);
CREATE INDEX IF NOT EXISTS idx_transactions_owner_updated ON transactions(owner_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	partner_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	patterns JSONB NOT NULL DEFAULT '[]'::jsonb,
	transaction_count INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	manual_only BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_categories_owner ON categories(owner_id);

CREATE TABLE IF NOT EXISTS category_manual_removals (
	category_id TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	PRIMARY KEY (category_id, transaction_id)
);

CREATE TABLE IF NOT EXISTS user_identities (
	owner_id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL DEFAULT '',
	personal_name TEXT NOT NULL DEFAULT '',
	aliases JSONB NOT NULL DEFAULT '[]'::jsonb,
	vat_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	ibans JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS bank_accounts (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	iban TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_bank_accounts_owner ON bank_accounts(owner_id) WHERE active;

CREATE TABLE IF NOT EXISTS ai_usage (
	id BIGSERIAL PRIMARY KEY,
	owner_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ai_usage_owner ON ai_usage(owner_id, recorded_at DESC);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
