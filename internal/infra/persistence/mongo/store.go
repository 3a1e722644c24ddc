// Package mongo persists the store state to a MongoDB collection, one
// document per bucket keyed by bucket name.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"milkbank/internal/infra/persistence/snapshot"
	"milkbank/pkg/domain"
)

const (
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "milkbank"
	// StateCollection holds the bucket documents.
	StateCollection = "state"
)

// collection is the subset of *mongo.Collection used by the bucket store.
type collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

type stateDocument struct {
	Bucket    string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store persists the in-memory state to MongoDB after every successful transaction.
type Store struct {
	*snapshot.Store
	client *mongo.Client
}

// NewStore connects to uri, verifies the connection, and hydrates the store
// from the state collection of dbName.
func NewStore(ctx context.Context, uri, dbName string, engine *domain.RulesEngine) (*Store, error) {
	if dbName == "" {
		dbName = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	b := &buckets{
		coll:  client.Database(dbName).Collection(StateCollection),
		close: func() error { return client.Disconnect(context.Background()) },
		now:   func() time.Time { return time.Now().UTC() },
	}
	inner, err := snapshot.Open(ctx, b, engine)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Store{Store: inner, client: client}, nil
}

// Client exposes the underlying MongoDB client.
func (s *Store) Client() *mongo.Client { return s.client }

type buckets struct {
	coll  collection
	close func() error
	now   func() time.Time
}

func (b *buckets) LoadBuckets(ctx context.Context) (map[string][]byte, error) {
	cursor, err := b.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	out := make(map[string][]byte)
	for cursor.Next(ctx) {
		var doc stateDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		out[doc.Bucket] = []byte(doc.Payload)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return out, nil
}

func (b *buckets) SaveBuckets(ctx context.Context, payloads map[string][]byte) error {
	now := b.now()
	models := make([]mongo.WriteModel, 0, len(payloads))
	for bucket, payload := range payloads {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: bucket}}).
			SetReplacement(stateDocument{Bucket: bucket, Payload: string(payload), UpdatedAt: now}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}
	if _, err := b.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

func (b *buckets) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
