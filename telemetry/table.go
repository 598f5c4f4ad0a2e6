package telemetry

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// Table keeps the latest published value per key. Values that are not
// republished within ttl expire, so a stalled loop shows up as missing keys.
type Table struct {
	c *cache.Cache
}

// Entry is one published value
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewTable creates a table whose entries expire after ttl
func NewTable(ttl time.Duration) *Table {
	return &Table{c: cache.New(ttl, 2*ttl)}
}

// Publish stores value under key
func (t *Table) Publish(key, value string) {
	t.c.SetDefault(key, value)
}

// Get returns the value of key if it has not expired
func (t *Table) Get(key string) (string, bool) {
	v, ok := t.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Snapshot returns all live entries sorted by key
func (t *Table) Snapshot() []Entry {
	items := t.c.Items()
	out := make([]Entry, 0, len(items))
	for k, it := range items {
		if s, ok := it.Object.(string); ok {
			out = append(out, Entry{Key: k, Value: s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
