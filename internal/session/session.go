// Package session tracks the stock session of each shop category and
// detects rotations by comparing session-start markers between fetches.
//
// Advance is the pure per-category transition; Tracker owns one State per
// configured category and applies Advance to every snapshot in a fixed
// category order.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/shopwatch/internal/stock"
)

// ErrBadSessionEnd is returned when a category's Date_End cannot be parsed.
var ErrBadSessionEnd = errors.New("invalid session end timestamp")

// State is what is remembered about one category between fetches.
// Seen=false means no session has been observed yet; a zero End means
// there is no prediction.
type State struct {
	Marker stock.Marker
	Seen   bool
	End    time.Time
}

// HasPrediction reports whether End can be used for scheduling.
func (s State) HasPrediction() bool { return !s.End.IsZero() }

// Outcome describes what happened to one category in one snapshot.
type Outcome struct {
	Category string
	// Rotated is true for a new session, including the first one observed.
	Rotated bool
	// Initial is true when the rotation is the first session ever seen.
	Initial bool
	// Empty is true when the snapshot had no items for the category.
	Empty   bool
	Marker  stock.Marker
	End     time.Time
	Items   []stock.Item // aggregated; set only when Rotated
	Matches []stock.Item // watchlisted subset of Items
	Err     error
}

// Advance applies one category's items from a new snapshot to state.
// initial marks the very first snapshot of the run. On error the returned
// state equals the input state.
func Advance(state State, items []stock.Item, targets stock.TargetSet, initial bool) (State, Outcome, error) {
	var out Outcome

	if len(items) == 0 {
		out.Empty = true
		if !initial {
			state.End = time.Time{}
		}
		out.Marker = state.Marker
		return state, out, nil
	}

	first := items[0]
	out.Marker = first.DateStart

	if state.Seen && first.DateStart == state.Marker {
		if !state.HasPrediction() {
			// Items came back after an empty fetch within the same session.
			end, err := ParseEnd(first.DateEnd)
			if err != nil {
				return state, out, err
			}
			state.End = end
		}
		out.End = state.End
		return state, out, nil
	}

	end, err := ParseEnd(first.DateEnd)
	if err != nil {
		return state, out, err
	}

	out.Initial = !state.Seen
	out.Rotated = true
	out.End = end
	out.Items = stock.Aggregate(items)
	out.Matches = targets.Filter(out.Items)

	return State{Marker: first.DateStart, Seen: true, End: end}, out, nil
}

// ParseEnd parses an ISO-8601 session end ("Z" or offset qualified) as UTC.
func ParseEnd(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadSessionEnd)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadSessionEnd, v)
	}
	return t.UTC(), nil
}
