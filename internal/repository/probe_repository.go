package repository

import (
	"context"
	"fmt"

	"github.com/distnet/coordinator/internal/database"
	"github.com/distnet/coordinator/internal/models"
)

type ProbeRepository struct {
	db *database.DB
}

func NewProbeRepository(db *database.DB) *ProbeRepository {
	return &ProbeRepository{db: db}
}

// Append stores one probe tick. Samples are never updated or deleted.
func (r *ProbeRepository) Append(ctx context.Context, sample models.ProbeSample) error {
	query := `
    INSERT INTO probe_samples (task_id, response_time_ms, loss, error_message, created_at)
    VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		sample.TaskID, sample.ResponseTimeMs, sample.Loss, sample.ErrorMessage, sample.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append probe sample: %w", err)
	}

	return nil
}

func (r *ProbeRepository) ListForTask(ctx context.Context, taskID string) ([]models.ProbeSample, error) {
	query := `
    SELECT id, task_id, response_time_ms, loss, error_message, created_at
    FROM probe_samples
    WHERE task_id = $1
    ORDER BY created_at ASC`

	return r.querySamples(ctx, query, taskID)
}

// Recent returns the last limit samples for the task, newest first.
func (r *ProbeRepository) Recent(ctx context.Context, taskID string, limit int) ([]models.ProbeSample, error) {
	query := `
    SELECT id, task_id, response_time_ms, loss, error_message, created_at
    FROM probe_samples
    WHERE task_id = $1
    ORDER BY created_at DESC
    LIMIT $2`

	return r.querySamples(ctx, query, taskID, limit)
}

func (r *ProbeRepository) querySamples(ctx context.Context, query string, args ...any) ([]models.ProbeSample, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query probe samples: %w", err)
	}
	defer rows.Close()

	var samples []models.ProbeSample

	for rows.Next() {
		var s models.ProbeSample

		err := rows.Scan(&s.ID, &s.TaskID, &s.ResponseTimeMs, &s.Loss, &s.ErrorMessage, &s.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan probe sample: %w", err)
		}

		samples = append(samples, s)
	}

	return samples, rows.Err()
}
