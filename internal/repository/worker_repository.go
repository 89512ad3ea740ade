package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/distnet/coordinator/internal/database"
	"github.com/distnet/coordinator/internal/models"
)

type WorkerRepository struct {
	db *database.DB
}

func NewWorkerRepository(db *database.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

func (r *WorkerRepository) Upsert(ctx context.Context, workerID, address, label string) error {
	query := `
    INSERT INTO workers (worker_id, address, label, status, last_heartbeat, created_at)
    VALUES ($1, $2, $3, 'online', NOW(), NOW())
    ON CONFLICT (worker_id) DO UPDATE SET
        address = EXCLUDED.address,
        label = EXCLUDED.label,
        status = 'online',
        last_heartbeat = NOW()`

	_, err := r.db.ExecContext(ctx, query, workerID, address, label)
	if err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	return nil
}

func (r *WorkerRepository) Touch(ctx context.Context, workerID string) error {
	query := `
    UPDATE workers
    SET last_heartbeat = NOW(), status = 'online'
    WHERE worker_id = $1`

	result, err := r.db.ExecContext(ctx, query, workerID)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("worker %s: %w", workerID, models.ErrNotFound)
	}

	return nil
}

func (r *WorkerRepository) SetStatus(ctx context.Context, workerID string, status models.WorkerStatus) error {
	query := `UPDATE workers SET status = $2 WHERE worker_id = $1`

	result, err := r.db.ExecContext(ctx, query, workerID, status)
	if err != nil {
		return fmt.Errorf("failed to update worker status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("worker %s: %w", workerID, models.ErrNotFound)
	}

	return nil
}

func (r *WorkerRepository) List(ctx context.Context, onlineOnly bool) ([]models.Worker, error) {
	query := `
    SELECT worker_id, address, label, status, last_heartbeat, created_at
    FROM workers
    ORDER BY last_heartbeat DESC`

	if onlineOnly {
		query = `
    SELECT worker_id, address, label, status, last_heartbeat, created_at
    FROM workers
    WHERE status = 'online'
    ORDER BY last_heartbeat DESC`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker

	for rows.Next() {
		var w models.Worker

		err := rows.Scan(&w.ID, &w.Address, &w.Label, &w.Status, &w.LastHeartbeat, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}

		workers = append(workers, w)
	}

	return workers, rows.Err()
}

// MarkStale demotes online workers whose heartbeat is older than the
// cutoff. Returns the number of workers demoted.
func (r *WorkerRepository) MarkStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
    UPDATE workers
    SET status = 'offline'
    WHERE status = 'online' AND last_heartbeat < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale workers: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}

func (r *WorkerRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM workers GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count workers: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var status string
		var count int

		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan worker count: %w", err)
		}

		counts[status] = count
	}

	return counts, rows.Err()
}
