package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher renders alerts and hands them to a Sender.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil sender falls back to the log
// sender.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// Sender returns the name of the active sender.
func (d *Dispatcher) Sender() string { return d.sender.Name() }

// Dispatch sends one alert. Failures, including panics inside the sender,
// are reported in the returned Delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) (del Delivery) {
	start := time.Now()
	del = Delivery{Category: a.Category, Sender: d.sender.Name(), Items: len(a.Items)}

	defer func() {
		if r := recover(); r != nil {
			del.Err = fmt.Errorf("sender %s panicked: %v", d.sender.Name(), r)
		}
		del.Duration = time.Since(start)
	}()

	if len(a.Items) == 0 {
		del.Err = fmt.Errorf("alert for %s has no items", a.Category)
		return del
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, BuildMessage(a)); err != nil {
		del.Err = fmt.Errorf("send alert for %s: %w", a.Category, err)
	}
	return del
}
