package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"validert/internal/models"
)

// AnalysisCacheRepo is the authoritative cache tier. It satisfies cache.Store.
type AnalysisCacheRepo struct {
	db *DB
}

func NewAnalysisCacheRepo(db *DB) *AnalysisCacheRepo {
	return &AnalysisCacheRepo{db: db}
}

func (r *AnalysisCacheRepo) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool, error) {
	if key.DocumentHash == "" || key.ScoringModelSHA == "" || key.PipelineSHA == "" {
		return models.CacheEntry{}, false, nil
	}
	if err := r.db.EnsureSchema(ctx); err != nil {
		return models.CacheEntry{}, false, err
	}
	var (
		e                        models.CacheEntry
		points, scoring, modelOut []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_hash, scoring_model_sha, pipeline_sha,
       detected_points::text, scoring_result::text, model_output::text, created_at, updated_at
FROM document_analysis_cache
WHERE document_hash=$1 AND scoring_model_sha=$2 AND pipeline_sha=$3
ORDER BY updated_at DESC
LIMIT 1`, key.DocumentHash, key.ScoringModelSHA, key.PipelineSHA).
		Scan(&e.DocumentHash, &e.ScoringModelSHA, &e.PipelineSHA, &points, &scoring, &modelOut, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("get analysis cache: %w", err)
	}
	e.DetectedPoints = json.RawMessage(points)
	e.ScoringResult = json.RawMessage(scoring)
	e.ModelOutput = json.RawMessage(modelOut)
	return e, true, nil
}

func (r *AnalysisCacheRepo) Put(ctx context.Context, e models.CacheEntry) error {
	if e.DocumentHash == "" || e.ScoringModelSHA == "" || e.PipelineSHA == "" {
		return fmt.Errorf("upsert analysis cache: incomplete key %s", e.CacheKey)
	}
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO document_analysis_cache (document_hash, scoring_model_sha, pipeline_sha, detected_points, scoring_result, model_output)
VALUES ($1, $2, $3, $4::json, $5::json, $6::json)
ON CONFLICT (document_hash, scoring_model_sha, pipeline_sha)
DO UPDATE SET
  detected_points = EXCLUDED.detected_points,
  scoring_result = EXCLUDED.scoring_result,
  model_output = EXCLUDED.model_output,
  updated_at = NOW()`,
		e.DocumentHash, e.ScoringModelSHA, e.PipelineSHA,
		string(e.DetectedPoints), string(e.ScoringResult), string(e.ModelOutput),
	)
	if err != nil {
		return fmt.Errorf("upsert analysis cache: %w", err)
	}
	return nil
}

// ListByDocument returns every cached variant of a document, newest first. Used when
// an operator wants to see which model or pipeline versions have already scored it.
func (r *AnalysisCacheRepo) ListByDocument(ctx context.Context, documentHash string) ([]models.CacheKey, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_hash, scoring_model_sha, pipeline_sha
FROM document_analysis_cache
WHERE document_hash=$1
ORDER BY updated_at DESC`, documentHash)
	if err != nil {
		return nil, fmt.Errorf("list analysis cache: %w", err)
	}
	defer rows.Close()

	out := make([]models.CacheKey, 0)
	for rows.Next() {
		var k models.CacheKey
		if err := rows.Scan(&k.DocumentHash, &k.ScoringModelSHA, &k.PipelineSHA); err != nil {
			return nil, fmt.Errorf("scan analysis cache key: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis cache: %w", err)
	}
	return out, nil
}
