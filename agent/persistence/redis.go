package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore is a Redis-backed Store.
//
// Each record is a hash under <prefix>rec:<scope>:<id>; each scope keeps a
// sorted set <prefix>idx:<scope> of record ids scored by creation time in
// nanoseconds. Key segments are query-escaped so ':' inside ids is safe.
type RedisStore struct {
	client    redis.UniversalClient
	ownClient bool
	opts      storeOptions
	logger    *zap.Logger
}

// RedisConfig configures a Redis connection owned by the store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr" env:"ADDR"`
	Password  string `yaml:"password" json:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" json:"db" env:"DB"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`
}

// NewRedisStore wraps an existing client. The caller keeps ownership of it.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := applyOptions(opts)
	return &RedisStore{
		client: client,
		opts:   o,
		logger: o.logger.With(zap.String("component", "redis_store")),
	}
}

// DialRedisStore connects to Redis and returns a store that owns the client.
func DialRedisStore(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.KeyPrefix != "" {
		opts = append(opts, WithKeyPrefix(cfg.KeyPrefix))
	}
	s := NewRedisStore(client, opts...)
	s.ownClient = true
	return s, nil
}

func (s *RedisStore) scope(q Query) string {
	return url.QueryEscape(q.Collection) + ":" + url.QueryEscape(q.UserID) + ":" + url.QueryEscape(q.ThreadID)
}

func (s *RedisStore) recordKey(q Query, id string) string {
	return s.opts.keyPrefix + "rec:" + s.scope(q) + ":" + url.QueryEscape(id)
}

func (s *RedisStore) indexKey(q Query) string {
	return s.opts.keyPrefix + "idx:" + s.scope(q)
}

func (s *RedisStore) seqKey() string {
	return s.opts.keyPrefix + "seq"
}

// Get retrieves a record by key
func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	q := Query{Collection: key.Collection, UserID: key.UserID, ThreadID: key.ThreadID}
	fields, err := s.client.HGetAll(ctx, s.recordKey(q, key.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key.ID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	rec, _, err := decodeRedisHash(fields)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Put upserts a record. CreatedAt and the insertion sequence are only
// written when the hash does not exist yet.
func (s *RedisStore) Put(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrInvalidInput
	}
	if err := record.Key().Validate(); err != nil {
		return err
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("redis put %s: %w", record.ID, err)
	}

	now := s.opts.now().UTC()
	created := record.CreatedAt.UTC()
	if record.CreatedAt.IsZero() {
		created = now
	}

	q := record.Query()
	hashKey := s.recordKey(q, record.ID)
	var createdCmd *redis.StringCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, hashKey, "created", strconv.FormatInt(created.UnixNano(), 10))
		pipe.HSetNX(ctx, hashKey, "seq", strconv.FormatInt(seq, 10))
		pipe.HSet(ctx, hashKey,
			"collection", record.Collection,
			"user_id", record.UserID,
			"thread_id", record.ThreadID,
			"id", record.ID,
			"data", string(record.Data),
			"updated", strconv.FormatInt(now.UnixNano(), 10),
		)
		pipe.ZAddNX(ctx, s.indexKey(q), redis.Z{
			Score:  float64(created.UnixNano()),
			Member: record.ID,
		})
		createdCmd = pipe.HGet(ctx, hashKey, "created")
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", record.ID, err)
	}

	storedCreated, err := parseNanos(createdCmd.Val())
	if err != nil {
		return err
	}
	record.CreatedAt = storedCreated
	record.UpdatedAt = now
	return nil
}

// List returns the records of one scope ordered by creation.
func (s *RedisStore) List(ctx context.Context, query Query) ([]*Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(query), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.recordKey(query, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	type item struct {
		rec *Record
		seq int64
	}
	items := make([]item, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		rec, seq, err := decodeRedisHash(fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item{rec: rec, seq: seq})
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(query), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune stale index entries", zap.Error(err))
		}
	}

	// 分数是 float64，纳秒精度会丢失，按 hash 中的精确值重新排序
	sort.Slice(items, func(i, j int) bool {
		return lessCreated(items[i].rec.CreatedAt, items[i].seq, items[j].rec.CreatedAt, items[j].seq)
	})
	out := make([]*Record, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out, nil
}

// Delete removes a record and its index entry.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	q := Query{Collection: key.Collection, UserID: key.UserID, ThreadID: key.ThreadID}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(q, key.ID))
		pipe.ZRem(ctx, s.indexKey(q), key.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", key.ID, err)
	}
	return nil
}

// DeleteAll removes every record of one scope.
func (s *RedisStore) DeleteAll(ctx context.Context, query Query) error {
	if err := query.Validate(); err != nil {
		return err
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(query), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis delete all: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.recordKey(query, id))
	}
	keys = append(keys, s.indexKey(query))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete all: %w", err)
	}
	return nil
}

// Ping checks if the store is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client when the store created it.
func (s *RedisStore) Close() error {
	if !s.ownClient {
		return nil
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func decodeRedisHash(fields map[string]string) (*Record, int64, error) {
	created, err := parseNanos(fields["created"])
	if err != nil {
		return nil, 0, err
	}
	updated, err := parseNanos(fields["updated"])
	if err != nil {
		return nil, 0, err
	}
	seq, _ := strconv.ParseInt(fields["seq"], 10, 64)

	rec := &Record{
		Collection: fields["collection"],
		UserID:     fields["user_id"],
		ThreadID:   fields["thread_id"],
		ID:         fields["id"],
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
	if data, ok := fields["data"]; ok && data != "" {
		rec.Data = []byte(data)
	}
	return rec, seq, nil
}

func parseNanos(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
	}
	return time.Unix(0, n).UTC(), nil
}
