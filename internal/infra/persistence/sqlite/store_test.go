package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"milkbank/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(ctx, path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		d, err := tx.CreateDonor(domain.Donor{Name: "Persist", Status: domain.DonorStatusActive})
		if err != nil {
			return err
		}
		_, err = tx.CreateBottle(domain.Bottle{DonorID: d.ID, Volume: decimal.RequireFromString("120.25"), Status: domain.BottleStatusCollected})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(ctx, path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	snap := reloaded.ExportState()
	if len(snap.Donors) != 1 || len(snap.Bottles) != 1 {
		t.Fatalf("expected reloaded donor and bottle, got %d/%d", len(snap.Donors), len(snap.Bottles))
	}
	for _, b := range snap.Bottles {
		if !b.Volume.Equal(decimal.RequireFromString("120.25")) {
			t.Fatalf("unexpected volume %s", b.Volume)
		}
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreWritesEveryBucket(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateRecipient(domain.Recipient{Name: "Baby"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 8 {
		t.Fatalf("expected 8 buckets, got %d", count)
	}
}
