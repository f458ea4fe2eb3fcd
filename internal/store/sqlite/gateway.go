// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/cardhost/internal/store"
)

// Compile-time interface checks.
var (
	_ store.GatewayStore = (*GatewayStore)(nil)
	_ store.ExecutionLog = (*executionLog)(nil)
	_ store.TokenStore   = (*tokenStore)(nil)
)

// GatewayStore implements store.GatewayStore backed by a single SQLite database.
type GatewayStore struct {
	db         *sql.DB
	executions *executionLog
	tokens     *tokenStore
}

// NewGatewayStore opens (or creates) a SQLite database at dbPath and
// initialises the execution_log and oauth_tokens tables.
func NewGatewayStore(dbPath string) (*GatewayStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening gateway db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging gateway db: %w", err)
	}

	if err := migrateGateway(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating gateway db: %w", err)
	}

	return &GatewayStore{
		db:         db,
		executions: &executionLog{db: db},
		tokens:     &tokenStore{db: db},
	}, nil
}

func migrateGateway(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS execution_log (
	id          TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	caller      TEXT NOT NULL DEFAULT '',
	tool_name   TEXT NOT NULL,
	capability  TEXT NOT NULL,
	action      TEXT NOT NULL,
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	error_code  TEXT NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL DEFAULT 0,
	details     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_execution_log_timestamp ON execution_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_execution_log_tool      ON execution_log(tool_name);
CREATE INDEX IF NOT EXISTS idx_execution_log_caller    ON execution_log(caller);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	tool_name     TEXT NOT NULL,
	subject       TEXT NOT NULL,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT '',
	expiry        TEXT NOT NULL DEFAULT '',
	scopes        TEXT NOT NULL DEFAULT '[]',
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (tool_name, subject)
);
`
	_, err := db.Exec(ddl)
	return err
}

// Executions returns the execution log.
func (g *GatewayStore) Executions() store.ExecutionLog { return g.executions }

// Tokens returns the OAuth token store.
func (g *GatewayStore) Tokens() store.TokenStore { return g.tokens }

// Close closes the underlying database.
func (g *GatewayStore) Close() error { return g.db.Close() }

// ---------- executionLog ----------

type executionLog struct {
	db *sql.DB
}

func (s *executionLog) Append(ctx context.Context, rec *store.ExecutionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("appending execution record: %w", store.ErrInvalidInput)
	}

	details := "{}"
	if rec.Details != nil {
		b, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("marshalling execution details: %w", err)
		}
		details = string(b)
	}

	const q = `INSERT INTO execution_log (id, timestamp, caller, tool_name, capability, action, success, error, error_code, duration_ns, details)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, formatTime(rec.Timestamp), rec.Caller, rec.Tool, rec.Capability, rec.Action,
		rec.Success, rec.Error, rec.ErrorCode, int64(rec.Duration), details,
	)
	if err != nil {
		return fmt.Errorf("appending execution record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *executionLog) Query(ctx context.Context, filter store.ExecutionFilter) ([]*store.ExecutionRecord, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, timestamp, caller, tool_name, capability, action, success, error, error_code, duration_ns, details FROM execution_log`)

	var conditions []string
	var args []any

	if filter.Tool != "" {
		conditions = append(conditions, "tool_name = ?")
		args = append(args, filter.Tool)
	}
	if filter.Capability != "" {
		conditions = append(conditions, "capability = ?")
		args = append(args, filter.Capability)
	}
	if filter.Caller != "" {
		conditions = append(conditions, "caller = ?")
		args = append(args, filter.Caller)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY timestamp DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultQueryLimit
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying execution log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var records []*store.ExecutionRecord
	for rows.Next() {
		var r store.ExecutionRecord
		var ts, detailsJSON string
		var durationNS int64
		if err := rows.Scan(
			&r.ID, &ts, &r.Caller, &r.Tool, &r.Capability, &r.Action,
			&r.Success, &r.Error, &r.ErrorCode, &durationNS, &detailsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning execution row: %w", err)
		}
		r.Duration = time.Duration(durationNS)
		r.Timestamp, err = ParseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parsing execution record %s timestamp: %w", r.ID, err)
		}
		if detailsJSON != "" && detailsJSON != "{}" {
			if err := json.Unmarshal([]byte(detailsJSON), &r.Details); err != nil {
				return nil, fmt.Errorf("unmarshalling execution details: %w", err)
			}
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating execution records: %w", err)
	}
	return records, nil
}

// ---------- tokenStore ----------

type tokenStore struct {
	db *sql.DB
}

func (s *tokenStore) Put(ctx context.Context, tok *store.OAuthToken) error {
	if tok == nil || tok.Tool == "" || tok.Subject == "" || tok.AccessToken == "" {
		return fmt.Errorf("storing oauth token: %w", store.ErrInvalidInput)
	}

	scopes, err := json.Marshal(nonNil(tok.Scopes))
	if err != nil {
		return fmt.Errorf("marshalling token scopes: %w", err)
	}
	updated := tok.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	const q = `INSERT INTO oauth_tokens (tool_name, subject, access_token, refresh_token, token_type, expiry, scopes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(tool_name, subject) DO UPDATE SET
	access_token  = excluded.access_token,
	refresh_token = excluded.refresh_token,
	token_type    = excluded.token_type,
	expiry        = excluded.expiry,
	scopes        = excluded.scopes,
	updated_at    = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, q,
		tok.Tool, tok.Subject, tok.AccessToken, tok.RefreshToken, tok.TokenType,
		formatTime(tok.Expiry), string(scopes), formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("storing oauth token %s/%s: %w", tok.Tool, tok.Subject, err)
	}
	return nil
}

func (s *tokenStore) Get(ctx context.Context, tool, subject string) (*store.OAuthToken, error) {
	const q = `SELECT tool_name, subject, access_token, refresh_token, token_type, expiry, scopes, updated_at
FROM oauth_tokens WHERE tool_name = ? AND subject = ?`

	var t store.OAuthToken
	var expiry, scopes, updated string
	err := s.db.QueryRowContext(ctx, q, tool, subject).Scan(
		&t.Tool, &t.Subject, &t.AccessToken, &t.RefreshToken, &t.TokenType,
		&expiry, &scopes, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("oauth token %s/%s: %w", tool, subject, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting oauth token %s/%s: %w", tool, subject, err)
	}

	if t.Expiry, err = ParseTime(expiry); err != nil {
		return nil, fmt.Errorf("parsing token expiry: %w", err)
	}
	if t.UpdatedAt, err = ParseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing token updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(scopes), &t.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshalling token scopes: %w", err)
	}
	return &t, nil
}

func (s *tokenStore) Delete(ctx context.Context, tool, subject string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE tool_name = ? AND subject = ?`, tool, subject)
	if err != nil {
		return fmt.Errorf("deleting oauth token %s/%s: %w", tool, subject, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("oauth token %s/%s: %w", tool, subject, store.ErrNotFound)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
