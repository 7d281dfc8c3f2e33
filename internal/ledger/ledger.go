// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records every chat and consultation exchange in a SQLite
// database and reports usage totals.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultRecentLimit bounds Recent when the caller passes no limit.
const DefaultRecentLimit = 20

// Ledger is an append-only exchange log.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger database at cfg.Path, creating parent
// directories and the schema as needed.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger path not configured")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Ledger{db: db, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS exchanges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			conversation_id TEXT,
			profile TEXT,
			model TEXT,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL,
			pmids TEXT,
			error TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_conversation ON exchanges(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends ex and returns its row id. A zero CreatedAt is stamped
// with the current time.
func (l *Ledger) Record(ctx context.Context, ex types.Exchange) (int64, error) {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = l.now()
	}
	pmids, err := json.Marshal(ex.PMIDs)
	if err != nil {
		return 0, fmt.Errorf("marshaling pmids: %w", err)
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO exchanges (kind, conversation_id, profile, model, tokens_used, success, pmids, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ex.Kind), ex.ConversationID, ex.Profile, ex.Model, ex.TokensUsed,
		boolToInt(ex.Success), string(pmids), ex.Error, ex.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting exchange: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit exchanges, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]types.Exchange, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, conversation_id, profile, model, tokens_used, success, pmids, error, created_at
		 FROM exchanges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var out []types.Exchange
	for rows.Next() {
		var (
			ex                     types.Exchange
			kind, createdAt        string
			convID, profile, model sql.NullString
			pmids, errText         sql.NullString
			success                int
		)
		if err := rows.Scan(&ex.ID, &kind, &convID, &profile, &model, &ex.TokensUsed, &success, &pmids, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		ex.Kind = types.ExchangeKind(kind)
		ex.ConversationID = convID.String
		ex.Profile = profile.String
		ex.Model = model.String
		ex.Success = success != 0
		ex.Error = errText.String
		if pmids.Valid && pmids.String != "" && pmids.String != "null" {
			if err := json.Unmarshal([]byte(pmids.String), &ex.PMIDs); err != nil {
				return nil, fmt.Errorf("parsing pmids of exchange %d: %w", ex.ID, err)
			}
		}
		if ex.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of exchange %d: %w", ex.ID, err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Usage totals exchanges per model, ordered by tokens used descending.
func (l *Ledger) Usage(ctx context.Context) ([]types.ModelUsage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT COALESCE(NULLIF(model, ''), 'unknown') AS m,
		        COUNT(*),
		        SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		        COALESCE(SUM(tokens_used), 0)
		 FROM exchanges GROUP BY m ORDER BY 4 DESC, m`)
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	defer rows.Close()

	var out []types.ModelUsage
	for rows.Next() {
		var u types.ModelUsage
		if err := rows.Scan(&u.Model, &u.Exchanges, &u.Failures, &u.TokensUsed); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// WriteYAML exports up to limit recent exchanges to w.
func (l *Ledger) WriteYAML(ctx context.Context, w io.Writer, limit int) error {
	entries, err := l.Recent(ctx, limit)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
