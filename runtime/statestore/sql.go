package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/domini04/bluestar/runtime/workflow"
)

// Dialect selects the SQL flavour of an SQLStore.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS bluestar_checkpoints (
	run_id          TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	awaiting        TEXT NOT NULL DEFAULT '',
	repo            TEXT NOT NULL DEFAULT '',
	commit_sha      TEXT NOT NULL DEFAULT '',
	iteration       INTEGER NOT NULL DEFAULT 0,
	checkpoint_json TEXT NOT NULL,
	updated_at_unix BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON bluestar_checkpoints(updated_at_unix);
`

const upsertCheckpoint = `
INSERT INTO bluestar_checkpoints
	(run_id, status, awaiting, repo, commit_sha, iteration, checkpoint_json, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET
	status = excluded.status,
	awaiting = excluded.awaiting,
	repo = excluded.repo,
	commit_sha = excluded.commit_sha,
	iteration = excluded.iteration,
	checkpoint_json = excluded.checkpoint_json,
	updated_at_unix = excluded.updated_at_unix`

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// SQLStore keeps checkpoints in a single table of a SQLite or PostgreSQL
// database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// WAL allows concurrent readers but a single writer.
	db.SetMaxOpenConns(1)
	return NewSQLStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to PostgreSQL through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewSQLStore(ctx, db, DialectPostgres)
}

// NewSQLStore wraps an open database and creates the checkpoint table.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(checkpointSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return mapSQLError(err)
		}
	}
	return nil
}

// Load retrieves a checkpoint by run ID.
func (s *SQLStore) Load(ctx context.Context, runID string) (*workflow.Checkpoint, error) {
	if runID == "" {
		return nil, ErrInvalidID
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT checkpoint_json FROM bluestar_checkpoints WHERE run_id = ?`), runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", mapSQLError(err))
	}
	return decode([]byte(data))
}

// Save upserts a checkpoint.
func (s *SQLStore) Save(ctx context.Context, cp *workflow.Checkpoint) error {
	if err := checkSave(cp); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	sum := summarize(cp)
	_, err = s.db.ExecContext(ctx, s.rebind(upsertCheckpoint),
		sum.RunID, string(sum.Status), sum.Awaiting, sum.Repo, sum.Commit, sum.Iteration,
		string(data), sum.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", mapSQLError(err))
	}
	return nil
}

// Delete removes a run.
func (s *SQLStore) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM bluestar_checkpoints WHERE run_id = ?`), runID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", mapSQLError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// List returns run summaries, most recently updated first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT run_id, status, awaiting, repo, commit_sha, iteration, updated_at_unix
		FROM bluestar_checkpoints`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY updated_at_unix DESC, run_id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", mapSQLError(err))
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			status  string
			updated int64
		)
		if err := rows.Scan(&sum.RunID, &status, &sum.Awaiting, &sum.Repo, &sum.Commit, &sum.Iteration, &updated); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		sum.Status = workflow.Status(status)
		sum.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mapSQLError adds the PostgreSQL error code when there is one.
func mapSQLError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUndefinedTable {
			return fmt.Errorf("checkpoint table is missing (SQLSTATE %s): %w", pgErr.Code, err)
		}
		return fmt.Errorf("postgres error %s: %w", pgErr.Code, err)
	}
	return err
}
