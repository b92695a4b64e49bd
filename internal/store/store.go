package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store is the canonical id → record mapping plus the published aggregate.
// It is not safe for concurrent use; the engine loop owns it.
type Store struct {
	order     []ID
	records   map[ID]*ConfigRecord
	aggregate Stats
	now       func() time.Time
}

func New() *Store {
	return &Store{
		records: make(map[ID]*ConfigRecord),
		now:     time.Now,
	}
}

// ReplaceAll swaps the whole mapping. Order follows records; a repeated id
// keeps its first position and its last value.
func (s *Store) ReplaceAll(records []ConfigRecord) {
	order := make([]ID, 0, len(records))
	next := make(map[ID]*ConfigRecord, len(records))
	fetchedAt := s.now()

	for i := range records {
		rec := records[i].clone()
		rec.normalize(fetchedAt)
		if _, dup := next[rec.ID]; !dup {
			order = append(order, rec.ID)
		}
		next[rec.ID] = &rec
	}

	s.order = order
	s.records = next
	s.aggregate = s.Stats()
}

// Patch applies a test result to one record. A missing id is not an error:
// a full replace may have dropped it.
func (s *Store) Patch(id ID, status Status, ping *float64, at time.Time) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	if at.IsZero() {
		at = s.now()
	}
	rec.setResult(status, ping, at)
	s.aggregate = s.Stats()
	return true
}

// Stats recomputes per-status counts.
func (s *Store) Stats() Stats {
	var stats Stats
	for _, id := range s.order {
		stats.add(s.records[id].Status)
	}
	return stats
}

// SetStats publishes a backend-supplied aggregate verbatim.
func (s *Store) SetStats(stats Stats) {
	s.aggregate = stats
}

// Aggregate returns the last published aggregate, local or remote.
func (s *Store) Aggregate() Stats {
	return s.aggregate
}

func (s *Store) Get(id ID) (ConfigRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return ConfigRecord{}, ErrNotFound
	}
	return rec.clone(), nil
}

// Records returns copies in insertion order.
func (s *Store) Records() []ConfigRecord {
	out := make([]ConfigRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].clone())
	}
	return out
}

func (s *Store) Len() int {
	return len(s.order)
}

func (r *ConfigRecord) normalize(fetchedAt time.Time) {
	at := fetchedAt
	if r.LastTestedAt != nil {
		at = *r.LastTestedAt
	}
	r.setResult(r.Status, r.Ping, at)
}
