package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	record *Record
	seq    int64
}

// MemoryStore keeps records in process memory.
// Suitable for development, tests and single-process CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*memoryEntry
	seq     int64
	closed  bool
	opts    storeOptions
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]*memoryEntry),
		opts:    applyOptions(opts),
	}
}

// Get returns a copy of the record.
func (s *MemoryStore) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(e.record), nil
}

// Put upserts the record.
func (s *MemoryStore) Put(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrInvalidInput
	}
	key := record.Key()
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	now := s.opts.now().UTC()
	if e, ok := s.entries[key]; ok {
		record.CreatedAt = e.record.CreatedAt
		record.UpdatedAt = now
		e.record = cloneRecord(record)
		return nil
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.seq++
	s.entries[key] = &memoryEntry{record: cloneRecord(record), seq: s.seq}
	return nil
}

// List returns the records of one scope ordered by creation.
func (s *MemoryStore) List(ctx context.Context, query Query) ([]*Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	matched := make([]*memoryEntry, 0)
	for _, e := range s.entries {
		if e.record.Query() == query {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return lessCreated(matched[i].record.CreatedAt, matched[i].seq, matched[j].record.CreatedAt, matched[j].seq)
	})

	out := make([]*Record, len(matched))
	for i, e := range matched {
		out[i] = cloneRecord(e.record)
	}
	return out, nil
}

// Delete removes one record.
func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.entries, key)
	return nil
}

// DeleteAll removes every record of one scope.
func (s *MemoryStore) DeleteAll(ctx context.Context, query Query) error {
	if err := query.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for k, e := range s.entries {
		if e.record.Query() == query {
			delete(s.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping checks if the store is healthy
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close closes the store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = make(map[Key]*memoryEntry)
	return nil
}

func lessCreated(ta time.Time, sa int64, tb time.Time, sb int64) bool {
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return sa < sb
}
