// Package metrics persists operational counters in the same SQLite file as
// the secret index. Observations are buffered on a channel and folded into
// in-memory deltas; a background loop periodically adds the deltas to the
// persisted rows in one transaction. Only monotonic counters and
// (count, sum, min, max) summaries exist; anything fancier belongs in an
// external system.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Counter names. All are monotonic.
const (
	CounterSecretsCreated  = "secrets_created_total"
	CounterSecretsRedeemed = "secrets_redeemed_total"
	CounterRedeemFailures  = "redeem_failures_total"
	CounterExpiredDeleted  = "secrets_expired_deleted_total"
)

// Summary names.
const (
	SummaryJanitorDeletedPerCycle = "janitor_deleted_per_cycle"
)

const (
	defaultFlushInterval = 5 * time.Second
	eventBuffer          = 1024
)

// Config controls flush cadence and logging.
type Config struct {
	FlushInterval time.Duration // defaults to 5s when unset
	Logger        *slog.Logger  // defaults to slog.Default()
}

// Manager buffers metric observations and flushes them to SQLite.
// Construct with New; Start runs the background flush loop.
type Manager struct {
	cfg     Config
	db      *sql.DB
	events  chan event
	stop    chan struct{}
	done    chan struct{}
	started bool

	mu        sync.Mutex // guards the delta maps below
	counters  map[string]int64
	summaries map[string]*summaryAgg
}

type opKind int

const (
	opInc opKind = iota + 1
	opObserve
)

type event struct {
	op   opKind
	name string
	val  int64
}

// summaryAgg accumulates one summary series.
type summaryAgg struct {
	count int64
	sum   int64
	min   int64
	max   int64
}

func (a *summaryAgg) observe(v int64) {
	a.count++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
}

// merge folds o into a. An empty a takes o's bounds wholesale so a zero
// min does not win against a series that never saw zero.
func (a *summaryAgg) merge(o summaryAgg) {
	if a.count == 0 {
		*a = o
		return
	}
	a.count += o.count
	a.sum += o.sum
	if o.min < a.min {
		a.min = o.min
	}
	if o.max > a.max {
		a.max = o.max
	}
}

// New creates a Manager. Call Start to begin background flushing.
func New(db *sql.DB, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		db:        db,
		events:    make(chan event, eventBuffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		counters:  make(map[string]int64),
		summaries: make(map[string]*summaryAgg),
	}
}

// InitSchema creates the metrics tables if absent.
func (m *Manager) InitSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS metrics_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS metrics_summaries (
		name TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		sum INTEGER NOT NULL,
		min INTEGER NOT NULL,
		max INTEGER NOT NULL
	);`
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

// Start launches the background flush loop. Calling it twice is a no-op.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop signals the flush loop to exit, waits for it, and performs a final
// flush so deltas survive shutdown.
func (m *Manager) Stop(ctx context.Context) {
	if !m.started {
		_ = m.flush(ctx)
		return
	}
	close(m.stop)
	<-m.done
	_ = m.flush(ctx)
}

// Inc increments a counter by delta. Non-positive deltas are ignored. When
// the event buffer is full the observation is dropped rather than blocking
// the request path.
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	select {
	case m.events <- event{op: opInc, name: name, val: delta}:
	default:
	}
}

// Observe records one summary observation, with the same drop-over-block
// policy as Inc.
func (m *Manager) Observe(name string, value int64) {
	select {
	case m.events <- event{op: opObserve, name: name, val: value}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	log := m.cfg.Logger.With("domain", "metrics")
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("metrics stop", "reason", "context_cancel")
			return
		case <-m.stop:
			log.Info("metrics stop", "reason", "stop_signal")
			return
		case ev := <-m.events:
			m.apply(ev)
		case <-ticker.C:
			if err := m.flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("flush", "error", err)
			}
		}
	}
}

// apply folds one event into the delta maps.
func (m *Manager) apply(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.op {
	case opInc:
		m.counters[ev.name] += ev.val
	case opObserve:
		agg := m.summaries[ev.name]
		if agg == nil {
			m.summaries[ev.name] = &summaryAgg{count: 1, sum: ev.val, min: ev.val, max: ev.val}
			return
		}
		agg.observe(ev.val)
	}
}

// Snapshot reads the persisted rows and layers any unflushed deltas on top,
// so callers see current values without forcing a flush.
func (m *Manager) Snapshot(ctx context.Context) (counters map[string]int64, summaries map[string]summaryAgg, err error) {
	counters = make(map[string]int64)
	summaries = make(map[string]summaryAgg)

	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metrics_counters`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		var v int64
		if err := rows.Scan(&n, &v); err != nil {
			return nil, nil, err
		}
		counters[n] = v
	}

	srows, err := m.db.QueryContext(ctx, `SELECT name, count, sum, min, max FROM metrics_summaries`)
	if err != nil {
		return nil, nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var n string
		var agg summaryAgg
		if err := srows.Scan(&n, &agg.count, &agg.sum, &agg.min, &agg.max); err != nil {
			return nil, nil, err
		}
		summaries[n] = agg
	}

	m.mu.Lock()
	for n, v := range m.counters {
		counters[n] += v
	}
	for n, delta := range m.summaries {
		cur := summaries[n]
		cur.merge(*delta)
		summaries[n] = cur
	}
	m.mu.Unlock()
	return counters, summaries, nil
}

// flush swaps the delta maps out under the lock, then upserts the swapped
// deltas in one transaction. A failed transaction loses at most one flush
// window of observations.
func (m *Manager) flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.counters) == 0 && len(m.summaries) == 0 {
		m.mu.Unlock()
		return nil
	}
	pendingCounters := m.counters
	pendingSummaries := m.summaries
	m.counters = make(map[string]int64)
	m.summaries = make(map[string]*summaryAgg)
	m.mu.Unlock()

	const upsertCounter = `INSERT INTO metrics_counters(name,value) VALUES(?,?)
		ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`
	const upsertSummary = `INSERT INTO metrics_summaries(name,count,sum,min,max) VALUES(?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET
			count = metrics_summaries.count + excluded.count,
			sum = metrics_summaries.sum + excluded.sum,
			min = MIN(metrics_summaries.min, excluded.min),
			max = MAX(metrics_summaries.max, excluded.max)`

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for name, delta := range pendingCounters {
		if _, err := tx.ExecContext(ctx, upsertCounter, name, delta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	for name, agg := range pendingSummaries {
		if _, err := tx.ExecContext(ctx, upsertSummary, name, agg.count, agg.sum, agg.min, agg.max); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
