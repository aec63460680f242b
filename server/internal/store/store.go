package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/plantlens/plantlens/pkg/types"
)

// ErrRowLimit is returned when a write would push a dataset past the row cap.
var ErrRowLimit = errors.New("store: dataset row limit exceeded")

// Dataset is a set of raw rows together with the time it was last written.
type Dataset struct {
	ID        string
	Rows      []types.Row
	UpdatedAt time.Time
}

// Info describes a dataset without its rows.
type Info struct {
	ID        string    `json:"id"`
	Rows      int       `json:"rows"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a thread-safe in-memory dataset store, keyed by dataset ID.
// A background goroutine (Run) periodically evicts datasets that have not
// been written within the configured TTL. A TTL of zero disables eviction.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Dataset
	ttl     time.Duration
	maxRows int
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store. maxRows <= 0 means no row cap.
func New(ttl time.Duration, maxRows int) *Store {
	return &Store{
		data:    make(map[string]*Dataset),
		ttl:     ttl,
		maxRows: maxRows,
		now:     time.Now,
	}
}

// Put replaces the rows of dataset id, creating it if needed.
// The store keeps its own copy of rows.
func (s *Store) Put(id string, rows []types.Row) error {
	if err := s.checkLimit(id, len(rows)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = &Dataset{ID: id, Rows: cloneRows(rows), UpdatedAt: s.now()}
	return nil
}

// Append adds rows to dataset id, creating it if needed, and returns the new
// row count.
func (s *Store) Append(id string, rows []types.Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.data[id]
	if !ok {
		d = &Dataset{ID: id}
		s.data[id] = d
	}
	total := len(d.Rows) + len(rows)
	if s.maxRows > 0 && total > s.maxRows {
		if !ok {
			delete(s.data, id)
		}
		return len(d.Rows), fmt.Errorf("%w: %s would hold %d rows, limit %d", ErrRowLimit, id, total, s.maxRows)
	}
	d.Rows = append(d.Rows, cloneRows(rows)...)
	d.UpdatedAt = s.now()
	return len(d.Rows), nil
}

// Get returns a copy of dataset id and whether it was found. The dataset may
// be stale if its TTL has elapsed but it has not been evicted yet.
func (s *Store) Get(id string) (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return &Dataset{ID: d.ID, Rows: cloneRows(d.Rows), UpdatedAt: d.UpdatedAt}, true
}

// List returns every live dataset, ordered by ID. Stale datasets that have
// not yet been evicted are excluded.
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.data))
	for _, d := range s.data {
		if s.stale(d, s.now()) {
			continue
		}
		out = append(out, Info{ID: d.ID, Rows: len(d.Rows), UpdatedAt: d.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes dataset id and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	delete(s.data, id)
	return ok
}

// Count returns the number of datasets currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes datasets last written at or before now minus TTL.
// It returns the number of datasets removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, d := range s.data {
		if s.stale(d, now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled. With a zero TTL it
// just waits for cancellation.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Info("store: evicted stale datasets", "count", n)
			}
		}
	}
}

func (s *Store) stale(d *Dataset, now time.Time) bool {
	if s.ttl <= 0 {
		return false
	}
	return !d.UpdatedAt.After(now.Add(-s.ttl))
}

func (s *Store) checkLimit(id string, n int) error {
	if s.maxRows > 0 && n > s.maxRows {
		return fmt.Errorf("%w: %s would hold %d rows, limit %d", ErrRowLimit, id, n, s.maxRows)
	}
	return nil
}

func cloneRows(rows []types.Row) []types.Row {
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
