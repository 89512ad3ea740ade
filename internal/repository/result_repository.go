package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/distnet/coordinator/internal/database"
	"github.com/distnet/coordinator/internal/models"
)

type ResultRepository struct {
	db *database.DB
}

func NewResultRepository(db *database.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// ApplyUpdate applies a sparse result submission: only the fields set on
// the update touch the stored record. When a status is supplied it is
// mirrored onto the matching assignment row in the same transaction,
// with started_at stamped on running and completed_at on completed or
// failed.
func (r *ResultRepository) ApplyUpdate(ctx context.Context, taskID, workerID string, upd models.ResultUpdate) error {
	var setClauses []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.PacketsSent != nil {
		add("packets_sent", *upd.PacketsSent)
	}
	if upd.PacketsReceived != nil {
		add("packets_received", *upd.PacketsReceived)
	}
	if upd.PacketLossRate != nil {
		add("packet_loss_rate", *upd.PacketLossRate)
	}
	if upd.AvgResponseTime != nil {
		add("avg_response_time", *upd.AvgResponseTime)
	}
	if upd.MinResponseTime != nil {
		add("min_response_time", *upd.MinResponseTime)
	}
	if upd.MaxResponseTime != nil {
		add("max_response_time", *upd.MaxResponseTime)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}

	if upd.Status != nil {
		switch *upd.Status {
		case models.AssignmentStatusRunning:
			setClauses = append(setClauses, "started_at = NOW()")
		case models.AssignmentStatusCompleted, models.AssignmentStatusFailed:
			setClauses = append(setClauses, "completed_at = NOW()")
		}
	}

	if len(setClauses) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	args = append(args, taskID, workerID)
	query := fmt.Sprintf(
		"UPDATE task_results SET %s WHERE task_id = $%d AND worker_id = $%d",
		strings.Join(setClauses, ", "), len(args)-1, len(args))

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("result for task %s worker %s: %w", taskID, workerID, models.ErrNotFound)
	}

	if upd.Status != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE task_assignments SET status = $3 WHERE task_id = $1 AND worker_id = $2`,
			taskID, workerID, *upd.Status)
		if err != nil {
			return fmt.Errorf("failed to mirror status onto assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result update: %w", err)
	}

	return nil
}

func (r *ResultRepository) ListForTask(ctx context.Context, taskID string) ([]models.ResultRecord, error) {
	query := `
    SELECT task_id, worker_id, packets_sent, packets_received, packet_loss_rate,
           avg_response_time, min_response_time, max_response_time, status,
           started_at, completed_at, error_message, created_at
    FROM task_results
    WHERE task_id = $1
    ORDER BY worker_id`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []models.ResultRecord

	for rows.Next() {
		var rec models.ResultRecord

		err := rows.Scan(&rec.TaskID, &rec.WorkerID, &rec.PacketsSent, &rec.PacketsReceived,
			&rec.PacketLossRate, &rec.AvgResponseTime, &rec.MinResponseTime,
			&rec.MaxResponseTime, &rec.Status, &rec.StartedAt, &rec.CompletedAt,
			&rec.ErrorMessage, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		results = append(results, rec)
	}

	return results, rows.Err()
}
