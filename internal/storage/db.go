package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool

	schemaMu       sync.Mutex
	schemaPrepared bool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// Payload columns are json rather than jsonb so a cache hit returns exactly the bytes
// that were written.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS reports (
  report_id TEXT PRIMARY KEY,
  filename TEXT NOT NULL,
  document_hash TEXT,
  status TEXT NOT NULL CHECK (status IN ('queued','processing','completed','failed')),
  fail_reason TEXT,
  score_total INT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS document_analysis_cache (
  id BIGSERIAL PRIMARY KEY,
  document_hash TEXT NOT NULL,
  scoring_model_sha TEXT NOT NULL,
  pipeline_sha TEXT NOT NULL,
  detected_points JSON NOT NULL,
  scoring_result JSON NOT NULL,
  model_output JSON NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS ix_document_analysis_cache_hash
  ON document_analysis_cache(document_hash, scoring_model_sha, pipeline_sha);

CREATE TABLE IF NOT EXISTS llm_calls (
  call_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  operation TEXT NOT NULL,
  report_id TEXT,
  provider_name TEXT NOT NULL,
  model TEXT NOT NULL,
  request_id TEXT,
  status TEXT NOT NULL,
  error_type TEXT,
  prompt_tokens INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_llm_calls_report ON llm_calls(report_id, created_at DESC);
`

// EnsureSchema creates the tables on first use so a fresh database works without a
// separate migration step.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()

	if d.schemaPrepared {
		return nil
	}
	if _, err := d.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	d.schemaPrepared = true
	return nil
}
