// Package requestlog keeps the most recent webhook deliveries in an in-memory
// ring buffer so operators can inspect what the platform sent.
package requestlog

import (
	"sync"
	"time"
)

// Entry is one delivery as seen by the HTTP layer. Bodies and signatures are
// never recorded.
type Entry struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Domain     string        `json:"domain,omitempty"`
	Event      string        `json:"event,omitempty"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration"`
	DurationMS float64       `json:"duration_ms"`
	BytesIn    int64         `json:"bytes_in"`
	ClientIP   string        `json:"client_ip"`
}

// Store is a thread-safe ring buffer of entries.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

const defaultCapacity = 100

// NewStore creates a store holding at most capacity entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Add records entry, evicting the oldest one when full.
func (s *Store) Add(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.head] = entry
	s.head = (s.head + 1) % s.capacity
	if s.count < s.capacity {
		s.count++
	}
}

// FilterOptions narrows List results. Zero values match everything.
type FilterOptions struct {
	Path      string
	Domain    string
	Event     string
	Status    int
	MinStatus int
	Since     time.Time
	Limit     int
	Offset    int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// List returns matching entries, newest first.
func (s *Store) List(opts FilterOptions) ListResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if opts.Limit <= 0 || opts.Limit > s.capacity {
		opts.Limit = s.capacity
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	filtered := make([]Entry, 0, s.count)
	for i := 0; i < s.count; i++ {
		entry := s.entries[(s.head-1-i+s.capacity)%s.capacity]
		if opts.matches(entry) {
			filtered = append(filtered, entry)
		}
	}

	total := len(filtered)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	return ListResult{
		Entries: filtered[start:end],
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}
}

func (o FilterOptions) matches(e Entry) bool {
	switch {
	case o.Path != "" && e.Path != o.Path:
		return false
	case o.Domain != "" && e.Domain != o.Domain:
		return false
	case o.Event != "" && e.Event != o.Event:
		return false
	case o.Status != 0 && e.Status != o.Status:
		return false
	case o.MinStatus != 0 && e.Status < o.MinStatus:
		return false
	case !o.Since.IsZero() && e.Timestamp.Before(o.Since):
		return false
	}
	return true
}

// Count returns the number of entries held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Capacity returns the maximum number of entries held.
func (s *Store) Capacity() int {
	return s.capacity
}
