package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vivekverma239/superfast-ai/internal/database"
)

// recordRow is the gorm model behind SQLStore.
type recordRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	UserID     string    `gorm:"primaryKey;size:191"`
	ThreadID   string    `gorm:"primaryKey;size:191"`
	ID         string    `gorm:"primaryKey;size:191"`
	Data       string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index:idx_records_created,priority:1"`
	UpdatedAt  time.Time
	Seq        int64 `gorm:"index:idx_records_created,priority:2"`
}

// TableName 固定表名
func (recordRow) TableName() string { return "records" }

func rowFromRecord(r *Record) recordRow {
	return recordRow{
		Collection: r.Collection,
		UserID:     r.UserID,
		ThreadID:   r.ThreadID,
		ID:         r.ID,
		Data:       string(r.Data),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (row recordRow) toRecord() *Record {
	rec := &Record{
		Collection: row.Collection,
		UserID:     row.UserID,
		ThreadID:   row.ThreadID,
		ID:         row.ID,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if row.Data != "" {
		rec.Data = []byte(row.Data)
	}
	return rec
}

// SQLStore is a gorm-backed Store using a single records table with a
// composite primary key (collection, user_id, thread_id, id).
type SQLStore struct {
	pool    *database.PoolManager
	ownPool bool
	seq     sequence
	opts    storeOptions
	logger  *zap.Logger
}

// NewSQLStore wraps an open pool. Call Migrate before first use on a fresh database.
func NewSQLStore(pool *database.PoolManager, opts ...Option) *SQLStore {
	o := applyOptions(opts)
	return &SQLStore{
		pool:   pool,
		opts:   o,
		logger: o.logger.With(zap.String("component", "sql_store")),
	}
}

// OpenSQLStore opens the database, migrates the records table and returns
// a store that owns the pool.
func OpenSQLStore(ctx context.Context, cfg database.Config, opts ...Option) (*SQLStore, error) {
	o := applyOptions(opts)
	pool, err := database.Open(cfg, o.logger)
	if err != nil {
		return nil, err
	}
	s := NewSQLStore(pool, opts...)
	s.ownPool = true
	if err := s.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return s, nil
}

// PoolStats returns the connection pool statistics.
func (s *SQLStore) PoolStats() database.PoolStats {
	return s.pool.GetStats()
}

// Migrate creates or updates the records table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.pool.DB().WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
		return fmt.Errorf("migrate records table: %w", err)
	}
	return nil
}

func (s *SQLStore) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

func scopeWhere(db *gorm.DB, q Query) *gorm.DB {
	return db.Where("collection = ? AND user_id = ? AND thread_id = ?", q.Collection, q.UserID, q.ThreadID)
}

func keyWhere(db *gorm.DB, k Key) *gorm.DB {
	return db.Where("collection = ? AND user_id = ? AND thread_id = ? AND id = ?",
		k.Collection, k.UserID, k.ThreadID, k.ID)
}

// Get retrieves a record by key
func (s *SQLStore) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var row recordRow
	err := keyWhere(s.db(ctx), key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get %s: %w", key.ID, err)
	}
	return row.toRecord(), nil
}

// Put upserts a record and reads back the stored creation time.
func (s *SQLStore) Put(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrInvalidInput
	}
	key := record.Key()
	if err := key.Validate(); err != nil {
		return err
	}

	now := s.opts.now().UTC()
	row := rowFromRecord(record)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = now
	row.Seq = s.seq.next(now)

	var stored recordRow
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "collection"}, {Name: "user_id"}, {Name: "thread_id"}, {Name: "id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return keyWhere(tx, key).Take(&stored).Error
	})
	if err != nil {
		return fmt.Errorf("sql put %s: %w", record.ID, err)
	}

	record.CreatedAt = stored.CreatedAt.UTC()
	record.UpdatedAt = now
	return nil
}

// List returns the records of one scope ordered by creation.
func (s *SQLStore) List(ctx context.Context, query Query) ([]*Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var rows []recordRow
	if err := scopeWhere(s.db(ctx), query).Order("created_at ASC, seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql list: %w", err)
	}
	// sqlite 把时间存成文本，这里按真实时间再排一次
	sort.SliceStable(rows, func(i, j int) bool {
		return lessCreated(rows[i].CreatedAt, rows[i].Seq, rows[j].CreatedAt, rows[j].Seq)
	})
	out := make([]*Record, len(rows))
	for i, row := range rows {
		out[i] = row.toRecord()
	}
	return out, nil
}

// Delete removes one record.
func (s *SQLStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := keyWhere(s.db(ctx), key).Delete(&recordRow{}).Error; err != nil {
		return fmt.Errorf("sql delete %s: %w", key.ID, err)
	}
	return nil
}

// DeleteAll removes every record of one scope.
func (s *SQLStore) DeleteAll(ctx context.Context, query Query) error {
	if err := query.Validate(); err != nil {
		return err
	}
	if err := scopeWhere(s.db(ctx), query).Delete(&recordRow{}).Error; err != nil {
		return fmt.Errorf("sql delete all: %w", err)
	}
	return nil
}

// Ping checks if the store is healthy
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool when the store opened it.
func (s *SQLStore) Close() error {
	if !s.ownPool {
		return nil
	}
	return s.pool.Close()
}
