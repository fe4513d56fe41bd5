// Package postgres provides a Postgres-backed job store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for job rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store keeps one row per job id. Every mutation is a single-row UPDATE
// listing only the changed columns, so concurrent partial updates to
// different fields of the same job cannot lose either write.
//
// Assumed schema:
//
//	CREATE TABLE jobs (
//		id TEXT PRIMARY KEY,
//		url TEXT NOT NULL,
//		source_type TEXT NOT NULL,
//		output_format TEXT NOT NULL,
//		status TEXT NOT NULL,
//		created_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL,
//		file_path TEXT NOT NULL DEFAULT '',
//		error TEXT NOT NULL DEFAULT ''
//	);
type Store struct {
	pool  dbPool
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Create inserts a new job row.
func (s *Store) Create(ctx context.Context, j job.Job) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, url, source_type, output_format, status, created_at, updated_at, file_path, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		j.ID,
		j.Request.URL,
		string(j.Request.SourceType),
		string(j.Request.OutputFormat),
		string(j.Status),
		j.CreatedAt,
		j.UpdatedAt,
		j.FilePath,
		j.Error,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return job.ErrAlreadyExists
	}
	return nil
}

// Get fetches a job row by id.
func (s *Store) Get(ctx context.Context, id string) (job.Job, error) {
	query := fmt.Sprintf(`
SELECT id, url, source_type, output_format, status, created_at, updated_at, file_path, error
FROM %s WHERE id = $1`, s.table)
	j, err := scanJob(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, fmt.Errorf("select job %s: %w", id, err)
	}
	return j, nil
}

// UpdateFields applies a partial update, writing only the set fields.
func (s *Store) UpdateFields(ctx context.Context, id string, fields job.Fields) error {
	sets, args := buildSet(fields)
	if len(sets) == 0 {
		// Nothing to write; still surface NotFound for unknown ids.
		_, err := s.Get(ctx, id)
		return err
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		s.table, strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return job.ErrNotFound
	}
	return nil
}

// ListByStatusBefore returns jobs in the given status last updated before
// cutoff, oldest first.
func (s *Store) ListByStatusBefore(ctx context.Context, status job.Status, cutoff time.Time) ([]job.Job, error) {
	query := fmt.Sprintf(`
SELECT id, url, source_type, output_format, status, created_at, updated_at, file_path, error
FROM %s WHERE status = $1 AND updated_at < $2
ORDER BY updated_at`, s.table)
	rows, err := s.pool.Query(ctx, query, string(status), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs rows: %w", err)
	}
	return out, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func buildSet(fields job.Fields) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if fields.Status != nil {
		add("status", string(*fields.Status))
	}
	if fields.UpdatedAt != nil {
		add("updated_at", *fields.UpdatedAt)
	}
	if fields.FilePath != nil {
		add("file_path", *fields.FilePath)
	}
	if fields.Error != nil {
		add("error", *fields.Error)
	}
	return sets, args
}

func scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job
	var sourceType, outputFormat, status string
	err := row.Scan(
		&j.ID,
		&j.Request.URL,
		&sourceType,
		&outputFormat,
		&status,
		&j.CreatedAt,
		&j.UpdatedAt,
		&j.FilePath,
		&j.Error,
	)
	if err != nil {
		return job.Job{}, err
	}
	j.Request.SourceType = job.SourceType(sourceType)
	j.Request.OutputFormat = job.OutputFormat(outputFormat)
	j.Status = job.Status(status)
	return j, nil
}
