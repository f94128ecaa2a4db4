package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivlev/concept2video/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          uuid PRIMARY KEY,
	kind        text NOT NULL,
	stage       text NOT NULL,
	work_dir    text,
	output_path text,
	artifacts   jsonb NOT NULL DEFAULT '{}',
	attempts    integer NOT NULL DEFAULT 0,
	error_kind  text,
	error       text,
	created_at  timestamptz NOT NULL,
	finished_at timestamptz
)`

// NewPool connects to PostgreSQL and checks the connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Postgres stores jobs in the jobs table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the jobs table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, job *domain.Job) error {
	artifacts, err := json.Marshal(job.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	query := `
		INSERT INTO jobs (id, kind, stage, work_dir, output_path, artifacts, attempts, error_kind, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			work_dir = EXCLUDED.work_dir,
			output_path = EXCLUDED.output_path,
			artifacts = EXCLUDED.artifacts,
			attempts = EXCLUDED.attempts,
			error_kind = EXCLUDED.error_kind,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`
	_, err = p.pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.Stage,
		nullString(job.WorkDir),
		nullString(job.OutputPath),
		artifacts,
		job.Attempts,
		nullString(string(job.ErrorKind)),
		nullString(job.ErrorText),
		job.CreatedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

const selectJob = `
	SELECT id, kind, stage, work_dir, output_path, artifacts, attempts, error_kind, error, created_at, finished_at
	FROM jobs`

func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := scanJob(p.pool.QueryRow(ctx, selectJob+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (p *Postgres) List(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, selectJob+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job                         domain.Job
		workDir, output, kind, text *string
		artifacts                   []byte
	)
	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Stage,
		&workDir,
		&output,
		&artifacts,
		&job.Attempts,
		&kind,
		&text,
		&job.CreatedAt,
		&job.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Artifacts = make(map[string]string)
	if artifacts != nil {
		if err := json.Unmarshal(artifacts, &job.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}
	job.WorkDir = deref(workDir)
	job.OutputPath = deref(output)
	job.ErrorKind = domain.Kind(deref(kind))
	job.ErrorText = deref(text)
	return &job, nil
}

// nullString maps "" to NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
