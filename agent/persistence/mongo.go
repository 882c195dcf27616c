package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoConfig configures a MongoDB connection owned by the store.
type MongoConfig struct {
	URI        string        `yaml:"uri" json:"uri" env:"URI"`
	Database   string        `yaml:"database" json:"database" env:"DATABASE"`
	Collection string        `yaml:"collection" json:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// DefaultMongoConfig returns the default MongoDB configuration
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "superfast",
		Collection: "records",
		Timeout:    10 * time.Second,
	}
}

// mongoRecord is the stored document shape.
type mongoRecord struct {
	Collection string    `bson:"collection"`
	UserID     string    `bson:"user_id"`
	ThreadID   string    `bson:"thread_id"`
	RecordID   string    `bson:"record_id"`
	Data       string    `bson:"data"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
	Seq        int64     `bson:"seq"`
}

func (d mongoRecord) toRecord() *Record {
	rec := &Record{
		Collection: d.Collection,
		UserID:     d.UserID,
		ThreadID:   d.ThreadID,
		ID:         d.RecordID,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.Data != "" {
		rec.Data = []byte(d.Data)
	}
	return rec
}

// MongoStore keeps every record in one collection guarded by a unique
// compound index on (collection, user_id, thread_id, record_id).
type MongoStore struct {
	coll      *mongo.Collection
	ownClient bool
	seq       sequence
	opts      storeOptions
	logger    *zap.Logger
}

// NewMongoStore wraps an existing collection. The caller keeps ownership of the client.
func NewMongoStore(coll *mongo.Collection, opts ...Option) *MongoStore {
	o := applyOptions(opts)
	return &MongoStore{
		coll:   coll,
		opts:   o,
		logger: o.logger.With(zap.String("component", "mongo_store")),
	}
}

// DialMongoStore connects to MongoDB, ensures indexes and returns a store
// that owns the client.
func DialMongoStore(ctx context.Context, cfg MongoConfig, opts ...Option) (*MongoStore, error) {
	def := DefaultMongoConfig()
	if cfg.URI == "" {
		cfg.URI = def.URI
	}
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := NewMongoStore(client.Database(cfg.Database).Collection(cfg.Collection), opts...)
	s.ownClient = true
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique key index and the listing index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "collection", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "thread_id", Value: 1},
				{Key: "record_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_record_key"),
		},
		{
			Keys: bson.D{
				{Key: "collection", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "thread_id", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "seq", Value: 1},
			},
			Options: options.Index().SetName("idx_scope_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("create mongo indexes: %w", err)
	}
	return nil
}

func mongoScopeFilter(q Query) bson.D {
	return bson.D{
		{Key: "collection", Value: q.Collection},
		{Key: "user_id", Value: q.UserID},
		{Key: "thread_id", Value: q.ThreadID},
	}
}

func mongoKeyFilter(k Key) bson.D {
	return append(mongoScopeFilter(Query{Collection: k.Collection, UserID: k.UserID, ThreadID: k.ThreadID}),
		bson.E{Key: "record_id", Value: k.ID})
}

// mongoUpsert builds the update document. Identity fields come from the
// filter on insert; created_at and seq are only written on insert.
func mongoUpsert(r *Record, created, now time.Time, seq int64) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "data", Value: string(r.Data)},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "created_at", Value: created},
			{Key: "seq", Value: seq},
		}},
	}
}

// Get retrieves a record by key
func (s *MongoStore) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var doc mongoRecord
	err := s.coll.FindOne(ctx, mongoKeyFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %s: %w", key.ID, err)
	}
	return doc.toRecord(), nil
}

// Put upserts a record.
func (s *MongoStore) Put(ctx context.Context, record *Record) error {
	if record == nil {
		return ErrInvalidInput
	}
	key := record.Key()
	if err := key.Validate(); err != nil {
		return err
	}

	// BSON datetime 只有毫秒精度
	now := s.opts.now().UTC().Truncate(time.Millisecond)
	created := record.CreatedAt.UTC().Truncate(time.Millisecond)
	if record.CreatedAt.IsZero() {
		created = now
	}

	upsertOpts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc mongoRecord
	err := s.coll.FindOneAndUpdate(ctx, mongoKeyFilter(key), mongoUpsert(record, created, now, s.seq.next(now)), upsertOpts).Decode(&doc)
	if err != nil {
		return fmt.Errorf("mongo put %s: %w", record.ID, err)
	}
	record.CreatedAt = doc.CreatedAt.UTC()
	record.UpdatedAt = now
	return nil
}

// List returns the records of one scope ordered by creation.
func (s *MongoStore) List(ctx context.Context, query Query) ([]*Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	cursor, err := s.coll.Find(ctx, mongoScopeFilter(query),
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo list: %w", err)
	}
	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo list: %w", err)
	}
	out := make([]*Record, len(docs))
	for i, d := range docs {
		out[i] = d.toRecord()
	}
	return out, nil
}

// Delete removes one record.
func (s *MongoStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, mongoKeyFilter(key)); err != nil {
		return fmt.Errorf("mongo delete %s: %w", key.ID, err)
	}
	return nil
}

// DeleteAll removes every record of one scope.
func (s *MongoStore) DeleteAll(ctx context.Context, query Query) error {
	if err := query.Validate(); err != nil {
		return err
	}
	if _, err := s.coll.DeleteMany(ctx, mongoScopeFilter(query)); err != nil {
		return fmt.Errorf("mongo delete all: %w", err)
	}
	return nil
}

// Ping checks if the store is healthy
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

// Close disconnects the client when the store created it.
func (s *MongoStore) Close() error {
	if !s.ownClient {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.coll.Database().Client().Disconnect(ctx)
}
