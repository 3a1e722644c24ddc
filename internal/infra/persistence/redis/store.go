// Package redis persists the store state as a single Redis hash, one field per
// bucket, written atomically with MULTI/EXEC.
package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"milkbank/internal/infra/persistence/snapshot"
	"milkbank/pkg/domain"
)

// DefaultPrefix namespaces the state key when none is configured.
const DefaultPrefix = "milkbank:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store persists the in-memory state to Redis after every successful transaction.
type Store struct {
	*snapshot.Store
	client *redis.Client
	key    string
}

// NewStore dials Redis, verifies the connection, and hydrates the store.
func NewStore(ctx context.Context, opts Options, engine *domain.RulesEngine) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStoreWithClient(ctx, client, opts.Prefix, engine)
}

// NewStoreWithClient hydrates a store from an existing client. The store owns
// the client and closes it on Close.
func NewStoreWithClient(ctx context.Context, client *redis.Client, prefix string, engine *domain.RulesEngine) (*Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	key := prefix + "state"
	inner, err := snapshot.Open(ctx, &buckets{client: client, key: key}, engine)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner, client: client, key: key}, nil
}

// Client exposes the underlying Redis client.
func (s *Store) Client() *redis.Client { return s.client }

// Key returns the hash key holding the buckets.
func (s *Store) Key() string { return s.key }

type buckets struct {
	client *redis.Client
	key    string
}

func (b *buckets) LoadBuckets(ctx context.Context) (map[string][]byte, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", b.key, err)
	}
	out := make(map[string][]byte, len(fields))
	for bucket, payload := range fields {
		out[bucket] = []byte(payload)
	}
	return out, nil
}

func (b *buckets) SaveBuckets(ctx context.Context, payloads map[string][]byte) error {
	values := make(map[string]interface{}, len(payloads))
	for bucket, payload := range payloads {
		values[bucket] = payload
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %s: %w", b.key, err)
	}
	return nil
}

func (b *buckets) Close() error { return b.client.Close() }
