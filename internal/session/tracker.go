package session

import (
	"fmt"
	"time"

	"github.com/albapepper/shopwatch/internal/stock"
)

// Tracker holds the State of every configured category. It is not safe
// for concurrent use; the monitor loop is its only caller.
type Tracker struct {
	categories []string
	targets    stock.TargetSet
	states     map[string]State
	observed   bool
}

// NewTracker creates a tracker for categories, processed in the given order.
func NewTracker(categories []string, targets stock.TargetSet) *Tracker {
	states := make(map[string]State, len(categories))
	for _, c := range categories {
		states[c] = State{}
	}
	return &Tracker{
		categories: append([]string(nil), categories...),
		targets:    targets,
		states:     states,
	}
}

// Categories returns the tracked categories in processing order.
func (t *Tracker) Categories() []string {
	return append([]string(nil), t.categories...)
}

// Observe applies a snapshot to every category and returns one Outcome per
// category in processing order. A category whose session end cannot be
// parsed gets Outcome.Err set and keeps its previous state.
func (t *Tracker) Observe(snap *stock.Snapshot) []Outcome {
	initial := !t.observed
	t.observed = true

	outcomes := make([]Outcome, 0, len(t.categories))
	for _, cat := range t.categories {
		next, out, err := Advance(t.states[cat], snap.Items(cat), t.targets, initial)
		out.Category = cat
		if err != nil {
			out.Err = fmt.Errorf("category %s: %w", cat, err)
		}
		t.states[cat] = next
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// State returns the current state of a category.
func (t *Tracker) State(category string) (State, bool) {
	s, ok := t.states[category]
	return s, ok
}

// Predictions returns the predicted session end of every category that
// has one.
func (t *Tracker) Predictions() map[string]time.Time {
	out := make(map[string]time.Time, len(t.states))
	for _, cat := range t.categories {
		if s := t.states[cat]; s.HasPrediction() {
			out[cat] = s.End
		}
	}
	return out
}

// Rotations counts rotated outcomes.
func Rotations(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Rotated {
			n++
		}
	}
	return n
}
