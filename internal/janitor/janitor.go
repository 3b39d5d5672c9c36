// Package janitor implements background cleanup of expired secrets and
// orphan blobs. It operates independently from the main app Service to keep
// lifecycle concerns (periodic deletion, reconciliation) isolated from the
// request path. Purging is pure space reclamation: the store's Take performs
// its own logical expiry check, so a missed or delayed cycle never makes an
// expired secret readable.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haukened/wisp/internal/metrics"
)

// Store abstracts the minimal store operations the Janitor requires.
type Store interface {
	// DeleteExpired deletes secrets whose expiry precedes t and returns the
	// number removed.
	DeleteExpired(ctx context.Context, t time.Time) (int, error)
	// Reconcile performs orphan blob cleanup (best-effort).
	Reconcile(ctx context.Context) error
}

// Recorder receives counter and summary observations from cleanup cycles.
// Satisfied by *metrics.Manager; may be nil.
type Recorder interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
}

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration // how often a cycle begins
	Logger   *slog.Logger  // optional logger (defaults to slog.Default())
	Metrics  Recorder      // optional metrics sink
}

// Janitor encapsulates the background cleanup loop.
type Janitor struct {
	store Store
	cfg   Config

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor.
func New(store Store, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	} // already started
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one full expiry + orphan cleanup cycle.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "cycle")
	now := time.Now().UTC()
	count, err := j.store.DeleteExpired(ctx, now)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("expire", "error", err)
	}
	if rerr := j.store.Reconcile(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) {
		log.Error("reconcile", "error", rerr)
	}
	if j.cfg.Metrics != nil {
		j.cfg.Metrics.Inc(metrics.CounterExpiredDeleted, int64(count))
		j.cfg.Metrics.Observe(metrics.SummaryJanitorDeletedPerCycle, int64(count))
	}
	log.Info("cycle complete", "deleted", count, "ms", time.Since(start).Milliseconds())
}
