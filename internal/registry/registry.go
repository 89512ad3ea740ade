package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/distnet/coordinator/internal/models"
)

// WorkerStore is the slice of the persistent store the registry owns.
// No other component writes worker rows.
type WorkerStore interface {
	Upsert(ctx context.Context, workerID, address, label string) error
	Touch(ctx context.Context, workerID string) error
	SetStatus(ctx context.Context, workerID string, status models.WorkerStatus) error
	List(ctx context.Context, onlineOnly bool) ([]models.Worker, error)
	MarkStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Registry tracks fleet liveness. Workers revive on registration or
// heartbeat and go offline on explicit disconnect or via the reaper.
type Registry struct {
	store   WorkerStore
	timeout time.Duration
	log     *slog.Logger
}

func New(store WorkerStore, heartbeatTimeout time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		store:   store,
		timeout: heartbeatTimeout,
		log:     log,
	}
}

// Register upserts the worker and marks it online. Re-registering an
// existing id overwrites address and label and revives it.
func (r *Registry) Register(ctx context.Context, workerID, address, label string) error {
	if workerID == "" || address == "" {
		return fmt.Errorf("worker_id and address are required: %w", models.ErrInvalidInput)
	}

	if err := r.store.Upsert(ctx, workerID, address, label); err != nil {
		return err
	}

	r.log.Info("worker registered", "worker_id", workerID, "address", address)
	return nil
}

// Heartbeat refreshes the worker's liveness. A heartbeat from a worker
// that never registered reports ErrNotFound and changes nothing.
func (r *Registry) Heartbeat(ctx context.Context, workerID string) error {
	if workerID == "" {
		return fmt.Errorf("worker_id is required: %w", models.ErrInvalidInput)
	}

	return r.store.Touch(ctx, workerID)
}

// Disconnect marks the worker offline immediately, regardless of
// heartbeat age.
func (r *Registry) Disconnect(ctx context.Context, workerID string) error {
	if workerID == "" {
		return fmt.Errorf("worker_id is required: %w", models.ErrInvalidInput)
	}

	if err := r.store.SetStatus(ctx, workerID, models.WorkerStatusOffline); err != nil {
		return err
	}

	r.log.Info("worker disconnected", "worker_id", workerID)
	return nil
}

// ListOnline returns a snapshot of online workers, most recent
// heartbeat first.
func (r *Registry) ListOnline(ctx context.Context) ([]models.Worker, error) {
	return r.store.List(ctx, true)
}

// ListWorkers returns every known worker, most recent heartbeat first.
func (r *Registry) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	return r.store.List(ctx, false)
}

// OnlineWorkerIDs resolves the ids of all currently online workers, in
// ListOnline order. Used by the orchestrator for fan-out snapshots.
func (r *Registry) OnlineWorkerIDs(ctx context.Context) ([]string, error) {
	workers, err := r.store.List(ctx, true)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
	}

	return ids, nil
}

// StatusCounts returns worker counts keyed by status.
func (r *Registry) StatusCounts(ctx context.Context) (map[string]int, error) {
	return r.store.CountByStatus(ctx)
}

// ReapStale demotes every online worker whose heartbeat is older than
// the registry timeout. It is a best-effort sweep; a worker can stay
// logically dead for up to one sweep interval.
func (r *Registry) ReapStale(ctx context.Context) error {
	cutoff := time.Now().Add(-r.timeout)

	reaped, err := r.store.MarkStale(ctx, cutoff)
	if err != nil {
		return err
	}

	if reaped > 0 {
		r.log.Info("reaped stale workers", "count", reaped, "timeout", r.timeout)
	}

	return nil
}
