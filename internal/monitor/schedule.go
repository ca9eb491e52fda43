package monitor

import (
	"context"
	"time"
)

// Wake is a scheduling decision.
type Wake struct {
	// Upcoming is false when no prediction lies after now; the monitor
	// then re-fetches with zero wait.
	Upcoming bool
	Category string
	At       time.Time
	Wait     time.Duration
}

// NextWake picks the earliest predicted session end strictly after now.
// now is server time. Ties go to the lexically first category so the
// decision is deterministic.
func NextWake(predictions map[string]time.Time, now time.Time) Wake {
	var w Wake
	for cat, end := range predictions {
		if !end.After(now) {
			continue
		}
		if !w.Upcoming || end.Before(w.At) || (end.Equal(w.At) && cat < w.Category) {
			w = Wake{Upcoming: true, Category: cat, At: end}
		}
	}
	if w.Upcoming {
		w.Wait = max(w.At.Sub(now), 0)
	}
	return w
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
