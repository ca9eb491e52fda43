// Package notifications formats watchlist alerts and delivers them.
//
// Pipeline: build message → send via the configured Sender → report a
// Delivery. Delivery failures are returned as values, never as panics or
// errors that would stop the monitor loop.
package notifications

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/shopwatch/internal/stock"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	subjectFormat = "[%s] Target items in stock"
	sendTimeout   = 30 * time.Second
)

// ErrNotConfigured is returned by senders that lack required settings.
var ErrNotConfigured = errors.New("notifications: sender not configured")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Alert is one category's watchlist hit for a new session.
type Alert struct {
	Category string
	Session  stock.Marker
	Items    []stock.Item
}

// Message is a rendered alert, independent of the transport.
type Message struct {
	Subject string
	Body    string
}

// Delivery is the result of dispatching one alert.
type Delivery struct {
	Category string
	Sender   string
	Items    int
	Duration time.Duration
	Err      error
}

// OK reports whether the alert was delivered.
func (d Delivery) OK() bool { return d.Err == nil }

// --------------------------------------------------------------------------
// Formatting
// --------------------------------------------------------------------------

// BuildMessage renders an alert as a subject line and a plain-text body.
func BuildMessage(a Alert) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "New session for %s: %s\n\n", a.Category, a.Session)
	for _, it := range a.Items {
		fmt.Fprintf(&b, "%s: %d\n", it.DisplayName, it.Quantity)
	}
	return Message{
		Subject: fmt.Sprintf(subjectFormat, a.Category),
		Body:    b.String(),
	}
}
