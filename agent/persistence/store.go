package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Common errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeMongo  StoreType = "mongo"
)

// Key locates a single record. ThreadID is empty for user-global records.
type Key struct {
	Collection string `json:"collection"`
	UserID     string `json:"user_id"`
	ThreadID   string `json:"thread_id,omitempty"`
	ID         string `json:"id"`
}

// Validate checks that the key addresses exactly one record.
func (k Key) Validate() error {
	if k.Collection == "" || k.UserID == "" || k.ID == "" {
		return fmt.Errorf("%w: collection, user id and record id are required", ErrInvalidInput)
	}
	return nil
}

// Query selects every record of one collection in one scope.
// ThreadID is matched exactly, so an empty ThreadID selects user-global records.
type Query struct {
	Collection string `json:"collection"`
	UserID     string `json:"user_id"`
	ThreadID   string `json:"thread_id,omitempty"`
}

// Validate checks the query scope.
func (q Query) Validate() error {
	if q.Collection == "" || q.UserID == "" {
		return fmt.Errorf("%w: collection and user id are required", ErrInvalidInput)
	}
	return nil
}

// Record is one stored JSON document.
type Record struct {
	Collection string          `json:"collection"`
	UserID     string          `json:"user_id"`
	ThreadID   string          `json:"thread_id,omitempty"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Key returns the record's key.
func (r *Record) Key() Key {
	return Key{Collection: r.Collection, UserID: r.UserID, ThreadID: r.ThreadID, ID: r.ID}
}

// Query returns the scope the record belongs to.
func (r *Record) Query() Query {
	return Query{Collection: r.Collection, UserID: r.UserID, ThreadID: r.ThreadID}
}

// Decode unmarshals the record payload into v.
func (r *Record) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: record %s has no data", ErrInvalidInput, r.ID)
	}
	return json.Unmarshal(r.Data, v)
}

// NewRecord marshals v into a record for key k.
func NewRecord(k Key, v any) (*Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", k.ID, err)
	}
	return &Record{Collection: k.Collection, UserID: k.UserID, ThreadID: k.ThreadID, ID: k.ID, Data: data}, nil
}

// Store is the persistence capability used by state managers.
//
// Put is an upsert: an existing record keeps its CreatedAt and gets a new
// UpdatedAt. Put writes the effective timestamps back into the record.
// Delete of a missing record is not an error.
type Store interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Put(ctx context.Context, record *Record) error
	List(ctx context.Context, query Query) ([]*Record, error)
	Delete(ctx context.Context, key Key) error
	DeleteAll(ctx context.Context, query Query) error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error

	// Close releases resources owned by the store
	Close() error
}

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	now       func() time.Time
	logger    *zap.Logger
	keyPrefix string
}

func defaultOptions() storeOptions {
	return storeOptions{
		now:       time.Now,
		logger:    zap.NewNop(),
		keyPrefix: "superfast:store:",
	}
}

func applyOptions(opts []Option) storeOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// sequence hands out strictly increasing numbers seeded from the clock so
// values stay ordered across restarts.
type sequence struct {
	mu   sync.Mutex
	last int64
}

func (s *sequence) next(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := now.UnixNano()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}

func cloneRecord(r *Record) *Record {
	c := *r
	if r.Data != nil {
		c.Data = append(json.RawMessage(nil), r.Data...)
	}
	return &c
}
