package storage

import (
	"context"
	"fmt"

	"edugen/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// EnsureSchema creates the run history table when it does not exist yet.
func (r *RunRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS pipeline_runs (
  run_id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  mode TEXT NOT NULL,
  scene_count INT NOT NULL DEFAULT 0,
  battute INT NOT NULL DEFAULT 0,
  request_payload JSONB,
  response_payload JSONB,
  fail_reason TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("ensure pipeline_runs schema: %w", err)
	}
	return nil
}

func (r *RunRepo) InsertRun(ctx context.Context, run models.RunRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO pipeline_runs (run_id, status, mode, scene_count, battute, request_payload, response_payload, fail_reason)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,'')::jsonb, NULLIF($7,'')::jsonb, NULLIF($8,''))
ON CONFLICT (run_id)
DO UPDATE SET
  status = EXCLUDED.status,
  scene_count = EXCLUDED.scene_count,
  battute = EXCLUDED.battute,
  response_payload = EXCLUDED.response_payload,
  fail_reason = EXCLUDED.fail_reason`,
		run.RunID, run.Status, run.Mode, run.SceneCount, run.Battute, run.RequestPayload, run.ResponsePayload, run.FailReason,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT run_id, status, mode, scene_count, battute,
       COALESCE(request_payload::text,''), COALESCE(response_payload::text,''), COALESCE(fail_reason,''), created_at
FROM pipeline_runs
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.RunRecord, 0)
	for rows.Next() {
		var run models.RunRecord
		if err := rows.Scan(&run.RunID, &run.Status, &run.Mode, &run.SceneCount, &run.Battute, &run.RequestPayload, &run.ResponsePayload, &run.FailReason, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline runs: %w", err)
	}
	return out, nil
}
