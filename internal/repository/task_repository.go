package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/distnet/coordinator/internal/database"
	"github.com/distnet/coordinator/internal/models"
)

type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create persists the task together with one assignment row and one
// result row per assigned worker, in a single transaction. A failure at
// any step leaves nothing behind.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	workersJSON, err := json.Marshal(task.AssignedWorkers)
	if err != nil {
		return fmt.Errorf("failed to marshal assigned workers: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
    INSERT INTO tasks (task_id, target_address, target_port, protocol, payload_size,
                       concurrency_level, duration_seconds, assigned_workers, status,
                       created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.ExecContext(ctx, query,
		task.ID, task.TargetAddress, task.TargetPort, task.Protocol, task.PayloadSize,
		task.ConcurrencyLevel, task.DurationSeconds, workersJSON, task.Status,
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	for _, workerID := range task.AssignedWorkers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_assignments (task_id, worker_id, status) VALUES ($1, $2, 'pending')`,
			task.ID, workerID)
		if err != nil {
			return fmt.Errorf("failed to create assignment for %s: %w", workerID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_results (task_id, worker_id, status) VALUES ($1, $2, 'pending')`,
			task.ID, workerID)
		if err != nil {
			return fmt.Errorf("failed to create result record for %s: %w", workerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task creation: %w", err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*models.Task, error) {
	query := `
    SELECT task_id, target_address, target_port, protocol, payload_size,
           concurrency_level, duration_seconds, assigned_workers, status,
           created_at, updated_at
    FROM tasks
    WHERE task_id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

func (r *TaskRepository) List(ctx context.Context, limit, offset int) ([]*models.Task, error) {
	query := `
    SELECT task_id, target_address, target_port, protocol, payload_size,
           concurrency_level, duration_seconds, assigned_workers, status,
           created_at, updated_at
    FROM tasks
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// PendingForWorker returns the descriptors of every task with a pending
// assignment for the worker, oldest first, and marks those assignments
// assigned in the same transaction. A repeated poll never sees the same
// pending assignment twice.
func (r *TaskRepository) PendingForWorker(ctx context.Context, workerID string) ([]models.TaskDescriptor, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
    SELECT t.task_id, t.target_address, t.target_port, t.protocol,
           t.payload_size, t.concurrency_level, t.duration_seconds
    FROM tasks t
    JOIN task_assignments a ON t.task_id = a.task_id
    WHERE a.worker_id = $1 AND a.status = 'pending'
    ORDER BY t.created_at ASC
    FOR UPDATE OF a`

	rows, err := tx.QueryContext(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending tasks: %w", err)
	}

	var descriptors []models.TaskDescriptor

	for rows.Next() {
		var d models.TaskDescriptor

		err := rows.Scan(&d.TaskID, &d.TargetAddress, &d.TargetPort, &d.Protocol,
			&d.PayloadSize, &d.ConcurrencyLevel, &d.DurationSeconds)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan pending task: %w", err)
		}

		descriptors = append(descriptors, d)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending tasks: %w", err)
	}

	for _, d := range descriptors {
		_, err := tx.ExecContext(ctx,
			`UPDATE task_assignments SET status = 'assigned' WHERE task_id = $1 AND worker_id = $2`,
			d.TaskID, workerID)
		if err != nil {
			return nil, fmt.Errorf("failed to mark assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment fetch: %w", err)
	}

	return descriptors, nil
}

func (r *TaskRepository) Assignments(ctx context.Context, taskID string) ([]models.Assignment, error) {
	query := `
    SELECT task_id, worker_id, status, created_at
    FROM task_assignments
    WHERE task_id = $1
    ORDER BY worker_id`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.Assignment

	for rows.Next() {
		var a models.Assignment

		if err := rows.Scan(&a.TaskID, &a.WorkerID, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}

		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

func (r *TaskRepository) SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	query := `UPDATE tasks SET status = $2, updated_at = NOW() WHERE task_id = $1`

	result, err := r.db.ExecContext(ctx, query, taskID, status)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
	}

	return nil
}

// Stop forces the task and all of its assignments and result records to
// stopped, provided the task is still pending or running.
func (r *TaskRepository) Stop(ctx context.Context, taskID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.TaskStatus

	err = tx.QueryRowContext(ctx,
		`SELECT status FROM tasks WHERE task_id = $1 FOR UPDATE`, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get task status: %w", err)
	}

	if status != models.TaskStatusPending && status != models.TaskStatusRunning {
		return fmt.Errorf("task %s is %s: %w", taskID, status, models.ErrInvalidState)
	}

	statements := []string{
		`UPDATE tasks SET status = 'stopped', updated_at = NOW() WHERE task_id = $1`,
		`UPDATE task_assignments SET status = 'stopped' WHERE task_id = $1`,
		`UPDATE task_results SET status = 'stopped' WHERE task_id = $1`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, taskID); err != nil {
			return fmt.Errorf("failed to stop task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task stop: %w", err)
	}

	return nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var status string
		var count int

		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}

		counts[status] = count
	}

	return counts, rows.Err()
}

func (r *TaskRepository) CountCreatedToday(ctx context.Context) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE created_at >= CURRENT_DATE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's tasks: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var workersJSON []byte

	err := row.Scan(&task.ID, &task.TargetAddress, &task.TargetPort, &task.Protocol,
		&task.PayloadSize, &task.ConcurrencyLevel, &task.DurationSeconds, &workersJSON,
		&task.Status, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(workersJSON, &task.AssignedWorkers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assigned workers: %w", err)
	}

	return &task, nil
}
