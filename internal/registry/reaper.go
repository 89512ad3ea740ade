package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Reaper runs the registry's stale-worker sweep on a fixed interval.
// A failed sweep is logged and retried on the next tick; it never kills
// the loop.
type Reaper struct {
	scheduler gocron.Scheduler
	registry  *Registry
	interval  time.Duration
	log       *slog.Logger
}

func NewReaper(registry *Registry, interval time.Duration, log *slog.Logger) (*Reaper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Reaper{
		scheduler: s,
		registry:  registry,
		interval:  interval,
		log:       log,
	}, nil
}

func (r *Reaper) Start() error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.sweep),
	)
	if err != nil {
		return err
	}

	r.scheduler.Start()
	r.log.Info("reaper started", "interval", r.interval)

	return nil
}

func (r *Reaper) Stop() {
	if err := r.scheduler.Shutdown(); err != nil {
		r.log.Error("failed to shut down reaper", "error", err)
		return
	}

	r.log.Info("reaper stopped")
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.registry.ReapStale(ctx); err != nil {
		r.log.Error("reaper sweep failed", "error", err)
	}
}
