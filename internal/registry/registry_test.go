package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distnet/coordinator/internal/models"
)

type fakeWorkerStore struct {
	mu      sync.Mutex
	workers map[string]*models.Worker
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{workers: make(map[string]*models.Worker)}
}

func (s *fakeWorkerStore) Upsert(_ context.Context, workerID, address, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.workers[workerID]
	if !exists {
		w = &models.Worker{ID: workerID, CreatedAt: time.Now()}
		s.workers[workerID] = w
	}

	w.Address = address
	w.Label = label
	w.Status = models.WorkerStatusOnline
	w.LastHeartbeat = time.Now()

	return nil
}

func (s *fakeWorkerStore) Touch(_ context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.workers[workerID]
	if !exists {
		return fmt.Errorf("worker %s: %w", workerID, models.ErrNotFound)
	}

	w.Status = models.WorkerStatusOnline
	w.LastHeartbeat = time.Now()

	return nil
}

func (s *fakeWorkerStore) SetStatus(_ context.Context, workerID string, status models.WorkerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.workers[workerID]
	if !exists {
		return fmt.Errorf("worker %s: %w", workerID, models.ErrNotFound)
	}

	w.Status = status

	return nil
}

func (s *fakeWorkerStore) List(_ context.Context, onlineOnly bool) ([]models.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var workers []models.Worker
	for _, w := range s.workers {
		if onlineOnly && w.Status != models.WorkerStatusOnline {
			continue
		}
		workers = append(workers, *w)
	}

	sort.Slice(workers, func(i, j int) bool {
		return workers[i].LastHeartbeat.After(workers[j].LastHeartbeat)
	})

	return workers, nil
}

func (s *fakeWorkerStore) MarkStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped int64
	for _, w := range s.workers {
		if w.Status == models.WorkerStatusOnline && w.LastHeartbeat.Before(cutoff) {
			w.Status = models.WorkerStatusOffline
			reaped++
		}
	}

	return reaped, nil
}

func (s *fakeWorkerStore) CountByStatus(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, w := range s.workers {
		counts[string(w.Status)]++
	}

	return counts, nil
}

func (s *fakeWorkerStore) setHeartbeat(workerID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[workerID].LastHeartbeat = t
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterIsIdempotent(t *testing.T) {
	store := newFakeWorkerStore()
	reg := New(store, 2*time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "worker-1", "10.0.0.1:8000", "eu-west"))
	require.NoError(t, reg.Register(ctx, "worker-1", "10.0.0.2:8000", "eu-central"))

	workers, err := reg.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "10.0.0.2:8000", workers[0].Address)
	assert.Equal(t, "eu-central", workers[0].Label)
	assert.Equal(t, models.WorkerStatusOnline, workers[0].Status)
}

func TestRegisterRequiresIDAndAddress(t *testing.T) {
	reg := New(newFakeWorkerStore(), 2*time.Minute, testLogger())

	err := reg.Register(context.Background(), "", "10.0.0.1:8000", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	err = reg.Register(context.Background(), "worker-1", "", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestHeartbeatUnknownWorker(t *testing.T) {
	reg := New(newFakeWorkerStore(), 2*time.Minute, testLogger())

	err := reg.Heartbeat(context.Background(), "ghost")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestHeartbeatRevivesOfflineWorker(t *testing.T) {
	store := newFakeWorkerStore()
	reg := New(store, 2*time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "worker-1", "10.0.0.1:8000", ""))
	require.NoError(t, reg.Disconnect(ctx, "worker-1"))

	online, err := reg.ListOnline(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)

	require.NoError(t, reg.Heartbeat(ctx, "worker-1"))

	online, err = reg.ListOnline(ctx)
	require.NoError(t, err)
	assert.Len(t, online, 1)
}

func TestReapStaleTimeoutBoundary(t *testing.T) {
	store := newFakeWorkerStore()
	timeout := 2 * time.Minute
	reg := New(store, timeout, testLogger())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "stale", "10.0.0.1:8000", ""))
	require.NoError(t, reg.Register(ctx, "fresh", "10.0.0.2:8000", ""))

	store.setHeartbeat("stale", time.Now().Add(-timeout-time.Second))
	store.setHeartbeat("fresh", time.Now().Add(-timeout+time.Second))

	require.NoError(t, reg.ReapStale(ctx))

	online, err := reg.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "fresh", online[0].ID)

	all, err := reg.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, w := range all {
		if w.ID == "stale" {
			assert.Equal(t, models.WorkerStatusOffline, w.Status)
		}
	}
}

func TestListOnlineOrderedByHeartbeat(t *testing.T) {
	store := newFakeWorkerStore()
	reg := New(store, 2*time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "a", "10.0.0.1:8000", ""))
	require.NoError(t, reg.Register(ctx, "b", "10.0.0.2:8000", ""))
	require.NoError(t, reg.Register(ctx, "c", "10.0.0.3:8000", ""))

	now := time.Now()
	store.setHeartbeat("a", now.Add(-30*time.Second))
	store.setHeartbeat("b", now)
	store.setHeartbeat("c", now.Add(-10*time.Second))

	ids, err := reg.OnlineWorkerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestDisconnectIgnoresHeartbeatAge(t *testing.T) {
	store := newFakeWorkerStore()
	reg := New(store, 2*time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "worker-1", "10.0.0.1:8000", ""))
	require.NoError(t, reg.Disconnect(ctx, "worker-1"))

	all, err := reg.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.WorkerStatusOffline, all[0].Status)
}
