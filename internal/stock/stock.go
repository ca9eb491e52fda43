// Package stock models the shop inventory feed: raw item records grouped by
// category, per-item aggregation, and watchlist filtering.
package stock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Snapshot is the result of one fetch. ServerTime comes from the response
// Date header and is the only clock used for scheduling.
type Snapshot struct {
	Categories map[string][]Item
	ServerTime time.Time
}

// Items returns the raw records for a category (nil when absent).
func (s *Snapshot) Items(category string) []Item {
	if s == nil {
		return nil
	}
	return s.Categories[category]
}

// Item is a single stock entry as reported by the shop.
type Item struct {
	ItemID      ItemID `json:"item_id"`
	DisplayName string `json:"display_name"`
	Quantity    int    `json:"quantity"`
	DateStart   Marker `json:"Date_Start"`
	DateEnd     string `json:"Date_End"`
}

// ItemID identifies an item. The feed has used both strings and numbers.
type ItemID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ItemID) UnmarshalJSON(b []byte) error {
	s, err := decodeScalar(b)
	if err != nil {
		return fmt.Errorf("item_id: %w", err)
	}
	*id = ItemID(s)
	return nil
}

// Marker is the opaque session-start value of a category. Only equality is
// meaningful.
type Marker string

// UnmarshalJSON accepts a JSON string or number.
func (m *Marker) UnmarshalJSON(b []byte) error {
	s, err := decodeScalar(b)
	if err != nil {
		return fmt.Errorf("Date_Start: %w", err)
	}
	*m = Marker(s)
	return nil
}

func decodeScalar(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", nil
	case '{', '[', 't', 'f':
		return "", fmt.Errorf("unsupported value %s", b)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// --------------------------------------------------------------------------
// Aggregation
// --------------------------------------------------------------------------

// Aggregate collapses items to one entry per ItemID, summing quantities.
// Order is first occurrence; the first occurrence's metadata is kept.
func Aggregate(items []Item) []Item {
	if len(items) == 0 {
		return nil
	}
	index := make(map[ItemID]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.ItemID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ItemID] = len(out)
		out = append(out, it)
	}
	return out
}

// --------------------------------------------------------------------------
// Watchlist
// --------------------------------------------------------------------------

// TargetSet is the immutable set of display names worth an alert.
type TargetSet struct {
	names map[string]struct{}
}

// NewTargetSet builds a TargetSet from display names.
func NewTargetSet(names ...string) TargetSet {
	set := TargetSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		set.names[n] = struct{}{}
	}
	return set
}

// Contains reports whether name is watched.
func (t TargetSet) Contains(name string) bool {
	_, ok := t.names[name]
	return ok
}

// Len returns the number of watched names.
func (t TargetSet) Len() int { return len(t.names) }

// Filter keeps watched items with a positive quantity, preserving order.
func (t TargetSet) Filter(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.Quantity > 0 && t.Contains(it.DisplayName) {
			out = append(out, it)
		}
	}
	return out
}
