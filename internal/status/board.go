// Package status keeps a read-only copy of the monitor's session state for
// the status API. The monitor loop publishes after every cycle; readers get
// pre-rendered JSON with an ETag.
package status

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/albapepper/shopwatch/internal/session"
	"github.com/albapepper/shopwatch/internal/stock"
)

// Category is the published view of one tracked category.
type Category struct {
	Name         string       `json:"name"`
	Session      string       `json:"session,omitempty"`
	Seen         bool         `json:"seen"`
	PredictedEnd *time.Time   `json:"predicted_end"`
	LastRotation *time.Time   `json:"last_rotation"`
	Items        []stock.Item `json:"items"`
	Matches      []stock.Item `json:"matches"`
	LastError    string       `json:"last_error,omitempty"`
}

// Sessions is the published view of the whole monitor.
type Sessions struct {
	ServerTime   time.Time  `json:"server_time"`
	Fetches      int        `json:"fetches"`
	Rotations    int        `json:"rotations"`
	AlertsSent   int        `json:"alerts_sent"`
	AlertsFailed int        `json:"alerts_failed"`
	Categories   []Category `json:"categories"`
	PublishedAt  time.Time  `json:"published_at"`
}

// Board is a thread-safe holder for the latest published state.
type Board struct {
	mu         sync.RWMutex
	sessions   Sessions
	categories map[string]*Category
	order      []string
	data       []byte
	etag       string
}

// New creates an empty board.
func New() *Board {
	b := &Board{categories: make(map[string]*Category)}
	b.render()
	return b
}

// Update records the outcome of one processed snapshot. Nil-safe.
func (b *Board) Update(serverTime time.Time, tr *session.Tracker, outcomes []session.Outcome) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions.ServerTime = serverTime
	b.sessions.Fetches++

	for _, o := range outcomes {
		c := b.category(o.Category)
		c.LastError = ""
		if o.Err != nil {
			c.LastError = o.Err.Error()
		}
		if o.Rotated {
			at := serverTime
			c.LastRotation = &at
			c.Items = o.Items
			c.Matches = o.Matches
			b.sessions.Rotations++
		}
		if o.Empty {
			c.Items = nil
			c.Matches = nil
		}
	}

	for _, name := range tr.Categories() {
		st, _ := tr.State(name)
		c := b.category(name)
		c.Session = string(st.Marker)
		c.Seen = st.Seen
		c.PredictedEnd = nil
		if st.HasPrediction() {
			end := st.End
			c.PredictedEnd = &end
		}
	}

	b.render()
}

// RecordAlert counts a delivery outcome. Nil-safe.
func (b *Board) RecordAlert(ok bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.sessions.AlertsSent++
	} else {
		b.sessions.AlertsFailed++
	}
	b.render()
}

// Sessions returns the rendered JSON and its ETag.
func (b *Board) Sessions() (data []byte, etag string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data, b.etag
}

// Category returns a copy of one category's view.
func (b *Board) Category(name string) (Category, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.categories[name]
	if !ok {
		return Category{}, false
	}
	return *c, true
}

// Stats returns counters for health output.
func (b *Board) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]interface{}{
		"fetches":       b.sessions.Fetches,
		"rotations":     b.sessions.Rotations,
		"alerts_sent":   b.sessions.AlertsSent,
		"alerts_failed": b.sessions.AlertsFailed,
		"categories":    len(b.categories),
	}
}

func (b *Board) category(name string) *Category {
	c, ok := b.categories[name]
	if !ok {
		c = &Category{Name: name}
		b.categories[name] = c
		b.order = append(b.order, name)
	}
	return c
}

// render must be called with mu held for writing.
func (b *Board) render() {
	b.sessions.Categories = make([]Category, 0, len(b.order))
	for _, n := range b.order {
		b.sessions.Categories = append(b.sessions.Categories, *b.categories[n])
	}
	b.sessions.PublishedAt = time.Now().UTC()

	data, err := json.Marshal(b.sessions)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	b.data = data
	b.etag = ComputeETag(data)
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if If-None-Match header matches the current ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	// Simple comparison — handles the common single-etag case
	return ifNoneMatch == etag
}
