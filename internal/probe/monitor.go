package probe

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/distnet/coordinator/internal/models"
)

const (
	defaultTickInterval = time.Second
	defaultProbeTimeout = 3 * time.Second
)

// SampleStore is the slice of the persistent store the monitor owns.
type SampleStore interface {
	Append(ctx context.Context, sample models.ProbeSample) error
	ListForTask(ctx context.Context, taskID string) ([]models.ProbeSample, error)
}

type monitor struct {
	taskID   string
	active   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// Manager runs one independent sampling loop per monitored task,
// probing the task target from the coordinator's own vantage point in
// parallel with the workers' measurements. The in-memory monitor map is
// the only shared state; each loop removes its own entry on exit.
type Manager struct {
	store        SampleStore
	log          *slog.Logger
	tickInterval time.Duration
	probeTimeout time.Duration

	// newProber is swappable in tests.
	newProber func(models.Protocol, time.Duration) Prober

	mu       sync.Mutex
	monitors map[string]*monitor
	wg       sync.WaitGroup
}

func NewManager(store SampleStore, log *slog.Logger) *Manager {
	return &Manager{
		store:        store,
		log:          log,
		tickInterval: defaultTickInterval,
		probeTimeout: defaultProbeTimeout,
		newProber:    proberFor,
		monitors:     make(map[string]*monitor),
	}
}

// Start launches a sampling loop for the task. It reports false without
// side effects when a monitor for the task is already active.
func (m *Manager) Start(taskID, targetAddress string, targetPort int, protocol models.Protocol, duration time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.monitors[taskID]; exists {
		return false
	}

	mon := &monitor{
		taskID: taskID,
		stop:   make(chan struct{}),
	}
	mon.active.Store(true)
	m.monitors[taskID] = mon

	prober := m.newProber(protocol, m.probeTimeout)

	m.wg.Add(1)
	go m.run(mon, prober, targetAddress, targetPort, duration)

	m.log.Info("probe monitor started",
		"task_id", taskID,
		"target", targetAddress,
		"protocol", protocol,
		"duration", duration,
	)

	return true
}

// Stop asks the task's sampling loop to exit. The loop observes the
// signal on its next tick boundary; an in-flight probe finishes first.
func (m *Manager) Stop(taskID string) {
	m.mu.Lock()
	mon, exists := m.monitors[taskID]
	m.mu.Unlock()

	if !exists {
		return
	}

	mon.active.Store(false)
	mon.stopOnce.Do(func() { close(mon.stop) })
}

// StopAll stops every active monitor and waits for the loops to exit.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, mon := range m.monitors {
		mon.active.Store(false)
		mon.stopOnce.Do(func() { close(mon.stop) })
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) IsActive(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mon, exists := m.monitors[taskID]
	return exists && mon.active.Load()
}

func (m *Manager) run(mon *monitor, prober Prober, address string, port int, duration time.Duration) {
	defer m.wg.Done()
	defer m.remove(mon.taskID)

	deadline := time.Now().Add(duration)

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mon.stop:
			m.log.Info("probe monitor stopped", "task_id", mon.taskID)
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				m.log.Info("probe monitor expired", "task_id", mon.taskID)
				return
			}
			m.sample(mon.taskID, prober, address, port)
		}
	}
}

// sample performs one probe and appends exactly one row. A failed probe
// becomes a loss sample; a failed store write is logged and skipped so
// the loop keeps its cadence.
func (m *Manager) sample(taskID string, prober Prober, address string, port int) {
	latency, err := prober.Probe(address, port)

	sample := models.ProbeSample{
		TaskID:    taskID,
		Timestamp: time.Now(),
	}

	if err != nil {
		sample.Loss = true
		sample.ErrorMessage = err.Error()
	} else {
		ms := float64(latency.Microseconds()) / 1000.0
		sample.ResponseTimeMs = &ms
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.store.Append(ctx, sample); err != nil {
		m.log.Error("failed to persist probe sample", "task_id", taskID, "error", err)
	}
}

func (m *Manager) remove(taskID string) {
	m.mu.Lock()
	delete(m.monitors, taskID)
	m.mu.Unlock()
}

// Statistics aggregates every persisted sample of the task. Loss
// samples count toward the loss rate but not the latency figures.
func (m *Manager) Statistics(ctx context.Context, taskID string) (models.ProbeStats, error) {
	samples, err := m.store.ListForTask(ctx, taskID)
	if err != nil {
		return models.ProbeStats{}, err
	}

	var stats models.ProbeStats
	stats.SampleCount = len(samples)

	if len(samples) == 0 {
		return stats, nil
	}

	var sum float64
	var measured, lost int

	for _, s := range samples {
		if s.Loss || s.ResponseTimeMs == nil {
			lost++
			continue
		}

		rt := *s.ResponseTimeMs
		sum += rt
		measured++

		if stats.MinResponseTime == 0 || rt < stats.MinResponseTime {
			stats.MinResponseTime = rt
		}
		if rt > stats.MaxResponseTime {
			stats.MaxResponseTime = rt
		}
	}

	if measured > 0 {
		stats.AvgResponseTime = sum / float64(measured)
	}
	stats.LossRate = float64(lost) / float64(len(samples))

	return stats, nil
}
