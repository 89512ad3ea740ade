package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distnet/coordinator/internal/models"
)

type fakeSampleStore struct {
	mu      sync.Mutex
	samples map[string][]models.ProbeSample
	fail    bool
}

func newFakeSampleStore() *fakeSampleStore {
	return &fakeSampleStore{samples: make(map[string][]models.ProbeSample)}
}

func (s *fakeSampleStore) Append(_ context.Context, sample models.ProbeSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("store down")
	}

	s.samples[sample.TaskID] = append(s.samples[sample.TaskID], sample)
	return nil
}

func (s *fakeSampleStore) ListForTask(_ context.Context, taskID string) ([]models.ProbeSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProbeSample(nil), s.samples[taskID]...), nil
}

func (s *fakeSampleStore) count(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples[taskID])
}

type stubProber struct {
	latency time.Duration
	err     error
}

func (p *stubProber) Probe(string, int) (time.Duration, error) {
	return p.latency, p.err
}

func newTestManager(store SampleStore, prober Prober) *Manager {
	m := NewManager(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.tickInterval = 20 * time.Millisecond
	m.newProber = func(models.Protocol, time.Duration) Prober { return prober }
	return m
}

func TestMonitorSamplesUntilDurationExpires(t *testing.T) {
	store := newFakeSampleStore()
	m := newTestManager(store, &stubProber{latency: 5 * time.Millisecond})

	ok := m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, 100*time.Millisecond)
	require.True(t, ok)
	assert.True(t, m.IsActive("t1"))

	require.Eventually(t, func() bool {
		return !m.IsActive("t1")
	}, 2*time.Second, 10*time.Millisecond, "monitor must expire after its duration")

	n := store.count("t1")
	assert.GreaterOrEqual(t, n, 2)
	assert.LessOrEqual(t, n, 6)
}

func TestStartRejectsDuplicate(t *testing.T) {
	store := newFakeSampleStore()
	m := newTestManager(store, &stubProber{latency: time.Millisecond})

	require.True(t, m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, time.Second))
	assert.False(t, m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, time.Second))

	m.StopAll()
}

func TestStopEndsLoopAndFreesSlot(t *testing.T) {
	store := newFakeSampleStore()
	m := newTestManager(store, &stubProber{latency: time.Millisecond})

	require.True(t, m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, time.Hour))
	m.Stop("t1")

	assert.False(t, m.IsActive("t1"))

	// The loop removes its own map entry, so the slot is reusable.
	require.Eventually(t, func() bool {
		return m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, time.Hour)
	}, 2*time.Second, 10*time.Millisecond)

	m.StopAll()
}

func TestStopUnknownTaskIsNoop(t *testing.T) {
	m := newTestManager(newFakeSampleStore(), &stubProber{})
	m.Stop("nope")
	assert.False(t, m.IsActive("nope"))
}

func TestMonitorRecordsLossOnProbeError(t *testing.T) {
	store := newFakeSampleStore()
	m := newTestManager(store, &stubProber{err: errors.New("connection refused")})

	require.True(t, m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, time.Hour))

	require.Eventually(t, func() bool {
		return store.count("t1") >= 1
	}, 2*time.Second, 10*time.Millisecond)

	m.StopAll()

	samples, err := store.ListForTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, samples[0].Loss)
	assert.Nil(t, samples[0].ResponseTimeMs)
	assert.NotEmpty(t, samples[0].ErrorMessage)
}

func TestMonitorSurvivesStoreErrors(t *testing.T) {
	store := newFakeSampleStore()
	store.fail = true
	m := newTestManager(store, &stubProber{latency: time.Millisecond})

	require.True(t, m.Start("t1", "198.51.100.10", 80, models.ProtocolTCP, time.Hour))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, m.IsActive("t1"), "store failures must not kill the loop")

	m.StopAll()
}

func ms(v float64) *float64 { return &v }

func TestStatistics(t *testing.T) {
	store := newFakeSampleStore()
	now := time.Now()
	for _, s := range []models.ProbeSample{
		{TaskID: "t1", ResponseTimeMs: ms(10), Timestamp: now},
		{TaskID: "t1", ResponseTimeMs: ms(30), Timestamp: now},
		{TaskID: "t1", Loss: true, ErrorMessage: "timeout", Timestamp: now},
		{TaskID: "t1", ResponseTimeMs: ms(20), Timestamp: now},
	} {
		require.NoError(t, store.Append(context.Background(), s))
	}

	m := newTestManager(store, &stubProber{})

	stats, err := m.Statistics(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 4, stats.SampleCount)
	assert.InDelta(t, 20.0, stats.AvgResponseTime, 0.001)
	assert.Equal(t, 10.0, stats.MinResponseTime)
	assert.Equal(t, 30.0, stats.MaxResponseTime)
	assert.InDelta(t, 0.25, stats.LossRate, 0.001)
}

func TestStatisticsEmpty(t *testing.T) {
	m := newTestManager(newFakeSampleStore(), &stubProber{})

	stats, err := m.Statistics(context.Background(), "t1")
	require.NoError(t, err)
	assert.Zero(t, stats.SampleCount)
	assert.Zero(t, stats.LossRate)
}
