// Package snapshot layers durable bucket persistence over the in-memory store.
// Every committed transaction rewrites each bucket as a full replacement; a
// failed write rolls the working set back so memory never runs ahead of disk.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"milkbank/internal/infra/persistence/memory"
	"milkbank/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// BucketStore loads and saves whole buckets keyed by name.
type BucketStore interface {
	LoadBuckets(ctx context.Context) (map[string][]byte, error)
	SaveBuckets(ctx context.Context, buckets map[string][]byte) error
	Close() error
}

// Store persists the in-memory working set through a BucketStore.
type Store struct {
	mem     *memory.Store
	buckets BucketStore
	mu      sync.RWMutex
}

// Open hydrates a memory store from buckets and returns the durable wrapper.
func Open(ctx context.Context, buckets BucketStore, engine *domain.RulesEngine) (*Store, error) {
	raw, err := buckets.LoadBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load buckets: %w", err)
	}
	snap, err := memory.DecodeBuckets(raw)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snap)
	return &Store{mem: mem, buckets: buckets}, nil
}

// Memory exposes the working set, mainly for clock wiring and tests.
func (s *Store) Memory() *memory.Store { return s.mem }

// RulesEngine exposes the engine evaluated on every commit.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.mem.RulesEngine() }

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time { return s.mem.NowFunc() }

// SetNowFunc replaces the time provider used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) { s.mem.SetNowFunc(fn) }

// RunInTransaction commits to memory first, then writes every bucket. When the
// write fails the memory commit is reverted and the write error is returned.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.mem.ExportState()
	res, err := s.mem.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.save(ctx, s.mem.ExportState()); err != nil {
		s.mem.ImportState(before)
		return res, err
	}
	return res, nil
}

// View executes fn against a read-only snapshot of committed state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem.View(ctx, fn)
}

// ExportState clones committed state.
func (s *Store) ExportState() memory.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem.ExportState()
}

// RestoreState replaces committed state with snap and persists it.
func (s *Store) RestoreState(ctx context.Context, snap memory.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.mem.ExportState()
	s.mem.ImportState(snap)
	if err := s.save(ctx, snap); err != nil {
		s.mem.ImportState(before)
		return err
	}
	return nil
}

// Close releases the underlying bucket store.
func (s *Store) Close() error {
	return s.buckets.Close()
}

func (s *Store) save(ctx context.Context, snap memory.Snapshot) error {
	encoded, err := snap.EncodeBuckets()
	if err != nil {
		return err
	}
	if err := s.buckets.SaveBuckets(ctx, encoded); err != nil {
		return fmt.Errorf("save buckets: %w", err)
	}
	return nil
}
