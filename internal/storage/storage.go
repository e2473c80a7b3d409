// Package storage persists computed channels to SQLite. It implements the
// session.Persister seam: the in-memory store stays authoritative, this is
// what survives between sessions.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/recwave/recwave/internal/channel"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Storage wraps a SQLite database holding computed channels.
// Uses WAL mode for concurrent read access.
type Storage struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically; safe to call
// multiple times.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
func Open(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveComputed inserts or replaces a computed channel. Idempotent via
// ON CONFLICT: re-saving the same id overwrites the row.
func (s *Storage) SaveComputed(ctx context.Context, ch *channel.ComputedChannel) error {
	refs, err := json.Marshal(ch.Refs)
	if err != nil {
		return fmt.Errorf("marshal refs for %s: %w", ch.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO computed_channels
			(id, label, unit, source_tex, expression, refs, sample_count, samples, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			unit = excluded.unit,
			source_tex = excluded.source_tex,
			expression = excluded.expression,
			refs = excluded.refs,
			sample_count = excluded.sample_count,
			samples = excluded.samples,
			elapsed_ms = excluded.elapsed_ms,
			created_at = excluded.created_at
	`, ch.ID, ch.Label, ch.Unit, ch.SourceTeX, ch.Expression, string(refs),
		ch.SampleCount(), encodeSamples(ch.Samples), ch.Provenance.ElapsedMs,
		ch.Provenance.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save computed channel %s: %w", ch.ID, err)
	}
	return nil
}

// DeleteComputed removes a computed channel. Deleting an absent id is a
// no-op.
func (s *Storage) DeleteComputed(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM computed_channels WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete computed channel %s: %w", id, err)
	}
	return nil
}

// LoadComputed reads one computed channel. Returns (nil, nil) when absent.
func (s *Storage) LoadComputed(ctx context.Context, id string) (*channel.ComputedChannel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, unit, source_tex, expression, refs, sample_count, samples, elapsed_ms, created_at
		FROM computed_channels WHERE id = ?
	`, id)
	ch, err := scanComputed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

// ListComputed reads all computed channels ordered by creation time.
func (s *Storage) ListComputed(ctx context.Context) ([]*channel.ComputedChannel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, unit, source_tex, expression, refs, sample_count, samples, elapsed_ms, created_at
		FROM computed_channels ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list computed channels: %w", err)
	}
	defer rows.Close()

	var out []*channel.ComputedChannel
	for rows.Next() {
		ch, err := scanComputed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanComputed.
type scanner interface {
	Scan(dest ...any) error
}

func scanComputed(row scanner) (*channel.ComputedChannel, error) {
	var (
		ch        channel.ComputedChannel
		refsJSON  string
		count     int
		blob      []byte
		createdAt string
	)
	err := row.Scan(&ch.ID, &ch.Label, &ch.Unit, &ch.SourceTeX, &ch.Expression,
		&refsJSON, &count, &blob, &ch.Provenance.ElapsedMs, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(refsJSON), &ch.Refs); err != nil {
		return nil, fmt.Errorf("unmarshal refs for %s: %w", ch.ID, err)
	}
	ch.Samples, err = decodeSamples(blob, count)
	if err != nil {
		return nil, fmt.Errorf("decode samples for %s: %w", ch.ID, err)
	}
	ch.Provenance.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", ch.ID, err)
	}
	return &ch, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
