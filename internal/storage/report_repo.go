package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"validert/internal/models"
)

const (
	ReportQueued     = "queued"
	ReportProcessing = "processing"
	ReportCompleted  = "completed"
	ReportFailed     = "failed"
)

var ErrReportNotFound = errors.New("report not found")

type ReportRepo struct {
	db *DB
}

func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

func (r *ReportRepo) UpsertReport(ctx context.Context, rep models.Report) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO reports (report_id, filename, document_hash, status, fail_reason, score_total)
VALUES ($1, $2, NULLIF($3,''), $4, NULLIF($5,''), $6)
ON CONFLICT (report_id)
DO UPDATE SET
  filename = EXCLUDED.filename,
  document_hash = COALESCE(EXCLUDED.document_hash, reports.document_hash),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  score_total = COALESCE(EXCLUDED.score_total, reports.score_total),
  updated_at = NOW()`,
		rep.ReportID, rep.Filename, rep.DocumentHash, rep.Status, rep.FailReason, rep.ScoreTotal,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// UpdateStatus moves a report between states. A failed report never keeps a score:
// zero is a valid result and must not stand in for an error.
func (r *ReportRepo) UpdateStatus(ctx context.Context, reportID, status, failReason, documentHash string, score *int) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	if status == ReportFailed {
		score = nil
	}
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE reports
SET status=$2,
    fail_reason=NULLIF($3,''),
    document_hash=COALESCE(NULLIF($4,''), document_hash),
    score_total=CASE WHEN $2='failed' THEN NULL ELSE COALESCE($5, score_total) END,
    updated_at=NOW()
WHERE report_id=$1`, reportID, status, failReason, documentHash, score)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update report status %s: %w", reportID, ErrReportNotFound)
	}
	return nil
}

func (r *ReportRepo) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return models.Report{}, err
	}
	var rep models.Report
	err := r.db.Pool.QueryRow(ctx, `
SELECT report_id, filename, COALESCE(document_hash,''), status, COALESCE(fail_reason,''), score_total, created_at, updated_at
FROM reports
WHERE report_id=$1`, reportID).
		Scan(&rep.ReportID, &rep.Filename, &rep.DocumentHash, &rep.Status, &rep.FailReason, &rep.ScoreTotal, &rep.CreatedAt, &rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Report{}, fmt.Errorf("get report %s: %w", reportID, ErrReportNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

func (r *ReportRepo) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT report_id, filename, COALESCE(document_hash,''), status, COALESCE(fail_reason,''), score_total, created_at, updated_at
FROM reports
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]models.Report, 0)
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ReportID, &rep.Filename, &rep.DocumentHash, &rep.Status, &rep.FailReason, &rep.ScoreTotal, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}
