// Package monitor runs the polling loop: fetch the shop, let the session
// tracker detect rotations, alert on watchlist hits, then sleep until the
// earliest predicted session end.
//
// The loop has two suspension points, the fetch and the scheduling sleep,
// and both honour context cancellation. All state changes happen between
// fetches on the calling goroutine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/shopwatch/internal/notifications"
	"github.com/albapepper/shopwatch/internal/session"
	"github.com/albapepper/shopwatch/internal/status"
	"github.com/albapepper/shopwatch/internal/stock"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultFallback        = 5 * time.Second
	defaultRetryBackoff    = 5 * time.Second
	defaultMaxRetryBackoff = 30 * time.Second
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Fetcher returns the current shop snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*stock.Snapshot, error)
}

// Dispatcher delivers an alert and reports the result.
type Dispatcher interface {
	Dispatch(ctx context.Context, a notifications.Alert) notifications.Delivery
}

// Config controls loop timing. Zero values fall back to defaults.
type Config struct {
	// Fallback is the short poll used when a wake finds no rotation.
	Fallback time.Duration
	// MaxRetries is how many times a failed fetch is retried before Run
	// gives up. Zero means fail on the first error.
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// Monitor owns the tracker and drives the loop.
type Monitor struct {
	fetcher    Fetcher
	tracker    *session.Tracker
	dispatcher Dispatcher
	board      *status.Board
	cfg        Config
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithBoard publishes state to b after every processed snapshot.
func WithBoard(b *status.Board) Option {
	return func(m *Monitor) { m.board = b }
}

// WithSleep replaces the context-aware sleep (used by tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) { m.sleep = fn }
}

// New creates a monitor.
func New(fetcher Fetcher, tracker *session.Tracker, dispatcher Dispatcher, cfg Config, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Fallback <= 0 {
		cfg.Fallback = defaultFallback
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.MaxRetryBackoff < cfg.RetryBackoff {
		cfg.MaxRetryBackoff = max(defaultMaxRetryBackoff, cfg.RetryBackoff)
	}
	m := &Monitor{
		fetcher:    fetcher,
		tracker:    tracker,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// --------------------------------------------------------------------------
// Loop
// --------------------------------------------------------------------------

// Run blocks until ctx is cancelled (returns nil) or a fetch fails beyond
// the retry budget (returns the error).
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Monitor started",
		"categories", m.tracker.Categories(),
		"fallback", m.cfg.Fallback,
		"max_retries", m.cfg.MaxRetries)

	snap, err := m.fetch(ctx)
	if err != nil {
		return m.stop(ctx, err)
	}
	m.logger.Info("Fetched stock", "server_time", snap.ServerTime, "phase", "initial")
	m.process(ctx, snap)

	for {
		wake := NextWake(m.tracker.Predictions(), snap.ServerTime)
		if wake.Upcoming {
			m.logger.Info("Sleeping until session end",
				"category", wake.Category,
				"until", wake.At,
				"wait", wake.Wait.Round(time.Second))
		} else {
			m.logger.Warn("No upcoming session end, refetching", "server_time", snap.ServerTime)
		}
		if err := m.sleep(ctx, wake.Wait); err != nil {
			return m.stop(ctx, err)
		}

		snap, err = m.fetch(ctx)
		if err != nil {
			return m.stop(ctx, err)
		}
		m.logger.Info("Fetched stock", "server_time", snap.ServerTime, "phase", "wake")

		if m.process(ctx, snap) > 0 {
			continue
		}

		m.logger.Info("No new session detected, polling", "in", m.cfg.Fallback)
		if err := m.sleep(ctx, m.cfg.Fallback); err != nil {
			return m.stop(ctx, err)
		}
	}
}

// stop turns cancellation into a clean exit and surfaces anything else.
func (m *Monitor) stop(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		m.logger.Info("Monitor stopped (context cancelled)")
		return nil
	}
	m.logger.Error("Monitor stopped", "error", err)
	return err
}

// fetch retries failed fetches with exponential backoff.
func (m *Monitor) fetch(ctx context.Context) (*stock.Snapshot, error) {
	backoff := m.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		snap, err := m.fetcher.Fetch(ctx)
		if err == nil {
			return snap, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt > m.cfg.MaxRetries {
			return nil, fmt.Errorf("fetch stock (%d attempts): %w", attempt, err)
		}

		m.logger.Warn("Fetch failed, retrying",
			"error", err, "attempt", attempt, "backoff", backoff)
		if err := m.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = min(backoff*2, m.cfg.MaxRetryBackoff)
	}
}

// process runs the tracker over snap, logs, alerts and publishes. Returns
// the number of categories that rotated.
func (m *Monitor) process(ctx context.Context, snap *stock.Snapshot) int {
	outcomes := m.tracker.Observe(snap)

	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			m.logger.Error("Category skipped this cycle", "category", o.Category, "error", o.Err)
		case o.Empty:
			m.logger.Debug("No items", "category", o.Category)
		case !o.Rotated:
			m.logger.Debug("Session unchanged", "category", o.Category, "session", o.Marker)
		default:
			m.handleRotation(ctx, o)
		}
	}

	m.board.Update(snap.ServerTime, m.tracker, outcomes)
	return session.Rotations(outcomes)
}

func (m *Monitor) handleRotation(ctx context.Context, o session.Outcome) {
	msg := "New session"
	if o.Initial {
		msg = "Initial session"
	}
	m.logger.Info(msg, "category", o.Category, "session", o.Marker, "ends", o.End, "items", len(o.Items))
	for _, it := range o.Items {
		m.logger.Info("Stock", "category", o.Category, "item", it.DisplayName, "quantity", it.Quantity)
	}

	if len(o.Matches) == 0 {
		m.logger.Info("No target items", "category", o.Category)
		return
	}

	del := m.dispatcher.Dispatch(ctx, notifications.Alert{
		Category: o.Category,
		Session:  o.Marker,
		Items:    o.Matches,
	})
	m.board.RecordAlert(del.OK())
	if !del.OK() {
		m.logger.Warn("Alert failed", "category", o.Category, "sender", del.Sender, "error", del.Err)
		return
	}
	m.logger.Info("Alert sent",
		"category", o.Category, "sender", del.Sender,
		"items", del.Items, "duration", del.Duration.Round(time.Millisecond))
}
