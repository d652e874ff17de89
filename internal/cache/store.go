// Package cache is an in-process key-value store with per-entry TTLs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type entry struct {
	data     interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) valid(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Total   int `json:"total_entries"`
	Valid   int `json:"valid_entries"`
	Expired int `json:"expired_entries"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is safe for concurrent use. Expired entries are removed when read.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value under key when it has not expired.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.valid(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e.data, true
}

// Set stores value under key for ttl, replacing any previous entry.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{data: value, storedAt: s.now(), ttl: ttl}
}

// Stats counts valid and expired entries without evicting anything.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{Total: len(s.entries)}
	for _, e := range s.entries {
		if e.valid(now) {
			st.Valid++
		} else {
			st.Expired++
		}
	}
	return st
}

// Clear removes every entry whose key contains pattern, or all entries when
// pattern is empty. It returns the number removed.
func (s *Store) Clear(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" {
		n := len(s.entries)
		s.entries = make(map[string]entry)
		return n
	}

	n := 0
	for k := range s.entries {
		if strings.Contains(k, pattern) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Key derives a cache key from a meal plan request. Preferences are sorted,
// so their order does not change the key.
func Key(prefix string, prefs []string, calories int, goal string, days int) string {
	return KeyOf(prefix, SortedJoin(prefs), strconv.Itoa(calories), goal, strconv.Itoa(days))
}

// KeyOf hashes parts into a key namespaced by prefix. Clear(prefix) drops
// every key built with the same prefix.
func KeyOf(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "_")))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// SortedJoin joins a sorted copy of values with commas.
func SortedJoin(values []string) string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
