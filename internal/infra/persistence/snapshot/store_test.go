package snapshot

import (
	"context"
	"errors"
	"testing"

	"milkbank/internal/infra/persistence/memory"
	"milkbank/pkg/domain"
)

type fakeBuckets struct {
	data    map[string][]byte
	saveErr error
	saves   int
	closed  bool
}

func (f *fakeBuckets) LoadBuckets(context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(f.data))
	for k, v := range f.data {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (f *fakeBuckets) SaveBuckets(_ context.Context, buckets map[string][]byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.data = buckets
	return nil
}

func (f *fakeBuckets) Close() error {
	f.closed = true
	return nil
}

func createDonor(ctx context.Context, s *Store, name string) error {
	_, err := s.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateDonor(domain.Donor{Name: name})
		return err
	})
	return err
}

func TestStorePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	buckets := &fakeBuckets{}
	store, err := Open(ctx, buckets, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := createDonor(ctx, store, "Ana"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if buckets.saves != 1 || len(buckets.data) != len(memory.Buckets) {
		t.Fatalf("expected one full save, got saves=%d buckets=%d", buckets.saves, len(buckets.data))
	}

	reloaded, err := Open(ctx, buckets, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := len(reloaded.ExportState().Donors); got != 1 {
		t.Fatalf("expected 1 donor after reload, got %d", got)
	}
	if err := reloaded.Close(); err != nil || !buckets.closed {
		t.Fatalf("expected close to propagate")
	}
}

func TestStoreRollsBackWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	buckets := &fakeBuckets{}
	store, err := Open(ctx, buckets, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := createDonor(ctx, store, "Ana"); err != nil {
		t.Fatalf("create: %v", err)
	}
	disk := errors.New("disk full")
	buckets.saveErr = disk
	if err := createDonor(ctx, store, "Bea"); !errors.Is(err, disk) {
		t.Fatalf("expected save error, got %v", err)
	}
	var names []string
	_ = store.View(ctx, func(v domain.TransactionView) error {
		for _, d := range v.ListDonors() {
			names = append(names, d.Name)
		}
		return nil
	})
	if len(names) != 1 || names[0] != "Ana" {
		t.Fatalf("expected rollback to committed state, got %v", names)
	}
}

func TestRestoreStatePersists(t *testing.T) {
	ctx := context.Background()
	source := memory.NewStore(nil)
	_, _ = source.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateRecipient(domain.Recipient{Name: "Baby"})
		return err
	})
	buckets := &fakeBuckets{}
	store, err := Open(ctx, buckets, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.RestoreState(ctx, source.ExportState()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if buckets.saves != 1 || len(store.ExportState().Recipients) != 1 {
		t.Fatalf("expected restored and persisted state")
	}

	buckets.saveErr = errors.New("offline")
	if err := store.RestoreState(ctx, memory.Snapshot{}); err == nil {
		t.Fatalf("expected restore failure")
	}
	if len(store.Memory().ExportState().Recipients) != 1 {
		t.Fatalf("failed restore must keep previous state")
	}
}

func TestOpenRejectsCorruptBuckets(t *testing.T) {
	buckets := &fakeBuckets{data: map[string][]byte{memory.BucketDonors: []byte("not json")}}
	if _, err := Open(context.Background(), buckets, nil); err == nil {
		t.Fatalf("expected decode error")
	}
}
