package monitor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/albapepper/shopwatch/internal/notifications"
	"github.com/albapepper/shopwatch/internal/session"
	"github.com/albapepper/shopwatch/internal/status"
	"github.com/albapepper/shopwatch/internal/stock"
)

// scriptedFetcher replays results in order and cancels the run when the
// script is exhausted.
type scriptedFetcher struct {
	steps  []fetchStep
	calls  int
	cancel context.CancelFunc
}

type fetchStep struct {
	snap *stock.Snapshot
	err  error
}

func (f *scriptedFetcher) Fetch(ctx context.Context) (*stock.Snapshot, error) {
	if f.calls >= len(f.steps) {
		f.cancel()
		return nil, ctx.Err()
	}
	step := f.steps[f.calls]
	f.calls++
	return step.snap, step.err
}

// Mock Dispatcher
type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []notifications.Alert
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, a notifications.Alert) notifications.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	return notifications.Delivery{Category: a.Category, Sender: "mock", Items: len(a.Items), Err: d.err}
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func seedSnap(at time.Time, items ...stock.Item) *stock.Snapshot {
	return &stock.Snapshot{ServerTime: at, Categories: map[string][]stock.Item{"seed_stock": items}}
}

func seedItem(id, name string, qty int, start string, end time.Time) stock.Item {
	return stock.Item{
		ItemID:      stock.ItemID(id),
		DisplayName: name,
		Quantity:    qty,
		DateStart:   stock.Marker(start),
		DateEnd:     end.Format(time.RFC3339),
	}
}

type harness struct {
	monitor    *Monitor
	fetcher    *scriptedFetcher
	dispatcher *recordingDispatcher
	sleeps     *sleepRecorder
	tracker    *session.Tracker
	board      *status.Board
	logs       *bytes.Buffer
	ctx        context.Context
}

func newHarness(cfg Config, steps ...fetchStep) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := &harness{
		fetcher:    &scriptedFetcher{steps: steps, cancel: cancel},
		dispatcher: &recordingDispatcher{},
		sleeps:     &sleepRecorder{},
		tracker:    session.NewTracker([]string{"seed_stock"}, stock.NewTargetSet("Beanstalk")),
		board:      status.New(),
		logs:       logs,
		ctx:        ctx,
	}
	h.monitor = New(h.fetcher, h.tracker, h.dispatcher, cfg, logger,
		WithBoard(h.board), WithSleep(h.sleeps.sleep))
	return h
}

func TestRun_Scenarios(t *testing.T) {
	h := newHarness(Config{Fallback: 5 * time.Second},
		// 1: initial session with a watched item
		fetchStep{snap: seedSnap(t0, seedItem("1", "Beanstalk", 3, "S1", t0.Add(60*time.Second)))},
		// 2: woke at the predicted end but the session has not rotated
		fetchStep{snap: seedSnap(t0.Add(60*time.Second), seedItem("1", "Beanstalk", 3, "S1", t0.Add(60*time.Second)))},
		// 3: rotation to an unwatched item
		fetchStep{snap: seedSnap(t0.Add(65*time.Second), seedItem("2", "Carrot", 5, "S2", t0.Add(120*time.Second)))},
		// 4: category goes empty
		fetchStep{snap: seedSnap(t0.Add(120 * time.Second))},
	)

	if err := h.monitor.Run(h.ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Scenario 1: exactly one alert, for Beanstalk: 3.
	if len(h.dispatcher.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(h.dispatcher.alerts))
	}
	alert := h.dispatcher.alerts[0]
	if alert.Category != "seed_stock" || alert.Session != "S1" {
		t.Errorf("unexpected alert: %+v", alert)
	}
	if body := notifications.BuildMessage(alert).Body; !strings.Contains(body, "Beanstalk: 3") {
		t.Errorf("alert body missing item line: %q", body)
	}

	// Waits: 60s to the first end, fallback after no rotation, immediate
	// refetch (end lapsed), 55s to the second end, fallback after the
	// empty fetch, immediate refetch (no predictions left).
	want := []time.Duration{60 * time.Second, 5 * time.Second, 0, 55 * time.Second, 5 * time.Second, 0}
	if len(h.sleeps.waits) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, h.sleeps.waits)
	}
	for i := range want {
		if h.sleeps.waits[i] != want[i] {
			t.Errorf("wait %d: expected %s, got %s", i, want[i], h.sleeps.waits[i])
		}
	}

	// Scenario 3: rotation logged with no target items.
	if !strings.Contains(h.logs.String(), "No target items") {
		t.Error("expected a no-target-items log line")
	}

	// Scenario 4: the empty category is no longer scheduled.
	if preds := h.tracker.Predictions(); len(preds) != 0 {
		t.Errorf("expected no predictions, got %v", preds)
	}
	if st, _ := h.tracker.State("seed_stock"); st.Marker != "S2" {
		t.Errorf("expected marker S2 to be kept, got %q", st.Marker)
	}
}

func TestRun_UnchangedSessionDoesNotAlert(t *testing.T) {
	end := t0.Add(time.Minute)
	h := newHarness(Config{Fallback: 3 * time.Second},
		fetchStep{snap: seedSnap(t0, seedItem("1", "Beanstalk", 3, "S1", end))},
		fetchStep{snap: seedSnap(end, seedItem("1", "Beanstalk", 7, "S1", end))},
	)

	if err := h.monitor.Run(h.ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.dispatcher.alerts) != 1 {
		t.Errorf("expected only the initial alert, got %d", len(h.dispatcher.alerts))
	}
	st, _ := h.tracker.State("seed_stock")
	if !st.End.Equal(end) {
		t.Errorf("prediction should be untouched, got %v", st.End)
	}
	// Fallback must be shorter than the session wait and never zero.
	if len(h.sleeps.waits) < 2 || h.sleeps.waits[1] != 3*time.Second || h.sleeps.waits[1] >= h.sleeps.waits[0] {
		t.Errorf("unexpected waits: %v", h.sleeps.waits)
	}
}

func TestRun_RotationLoopsWithoutFallback(t *testing.T) {
	h := newHarness(Config{Fallback: 5 * time.Second},
		fetchStep{snap: seedSnap(t0, seedItem("1", "Carrot", 1, "S1", t0.Add(10*time.Second)))},
		fetchStep{snap: seedSnap(t0.Add(10*time.Second), seedItem("1", "Carrot", 1, "S2", t0.Add(40*time.Second)))},
	)

	if err := h.monitor.Run(h.ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{10 * time.Second, 30 * time.Second}
	if len(h.sleeps.waits) != 2 || h.sleeps.waits[0] != want[0] || h.sleeps.waits[1] != want[1] {
		t.Errorf("expected waits %v, got %v", want, h.sleeps.waits)
	}
}

func TestRun_AlertFailureDoesNotStopLoop(t *testing.T) {
	h := newHarness(Config{},
		fetchStep{snap: seedSnap(t0, seedItem("1", "Beanstalk", 1, "S1", t0.Add(time.Minute)))},
		fetchStep{snap: seedSnap(t0.Add(time.Minute), seedItem("1", "Beanstalk", 2, "S2", t0.Add(2*time.Minute)))},
	)
	h.dispatcher.err = errors.New("relay down")

	if err := h.monitor.Run(h.ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.dispatcher.alerts) != 2 {
		t.Errorf("expected 2 alert attempts, got %d", len(h.dispatcher.alerts))
	}
	if !strings.Contains(h.logs.String(), "Alert failed") {
		t.Error("expected alert failure to be logged")
	}
	if got := h.board.Stats()["alerts_failed"]; got != 2 {
		t.Errorf("expected 2 failed alerts on the board, got %v", got)
	}
}

func TestRun_FetchRetriesWithBackoff(t *testing.T) {
	flaky := errors.New("connection reset")
	h := newHarness(Config{MaxRetries: 3, RetryBackoff: time.Second, MaxRetryBackoff: 3 * time.Second},
		fetchStep{err: flaky},
		fetchStep{err: flaky},
		fetchStep{err: flaky},
		fetchStep{snap: seedSnap(t0, seedItem("1", "Beanstalk", 1, "S1", t0.Add(time.Minute)))},
	)

	if err := h.monitor.Run(h.ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, w := range want {
		if h.sleeps.waits[i] != w {
			t.Errorf("backoff %d: expected %s, got %s", i, w, h.sleeps.waits[i])
		}
	}
	if len(h.dispatcher.alerts) != 1 {
		t.Errorf("expected the initial alert after recovery, got %d", len(h.dispatcher.alerts))
	}
}

func TestRun_FetchFailureIsFatalAfterRetries(t *testing.T) {
	down := errors.New("upstream down")
	h := newHarness(Config{MaxRetries: 1, RetryBackoff: time.Second},
		fetchStep{err: down},
		fetchStep{err: down},
	)

	err := h.monitor.Run(h.ctx)
	if !errors.Is(err, down) {
		t.Fatalf("expected wrapped fetch error, got: %v", err)
	}
	if h.fetcher.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", h.fetcher.calls)
	}
}

func TestRun_BadSessionEndIsLoggedAndRetried(t *testing.T) {
	bad := stock.Item{ItemID: "1", DisplayName: "Beanstalk", Quantity: 1, DateStart: "S1", DateEnd: "tomorrow"}
	h := newHarness(Config{Fallback: 2 * time.Second},
		fetchStep{snap: seedSnap(t0, bad)},
		fetchStep{snap: seedSnap(t0.Add(time.Second), seedItem("1", "Beanstalk", 1, "S1", t0.Add(time.Minute)))},
	)

	if err := h.monitor.Run(h.ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(h.logs.String(), "Category skipped this cycle") {
		t.Error("expected parse failure to be logged")
	}
	// The category was never recorded, so the valid fetch is its first session.
	if len(h.dispatcher.alerts) != 1 {
		t.Errorf("expected 1 alert after recovery, got %d", len(h.dispatcher.alerts))
	}
}
