package core

import (
	"context"
	"testing"
	"time"

	"milkbank/internal/infra/persistence/memory"
)

func TestClockFuncNilFallsBackToSystemTime(t *testing.T) {
	var fn ClockFunc
	before := time.Now().UTC().Add(-time.Second)
	now := fn.Now()
	if now.Before(before) {
		t.Fatalf("expected current time, got %v", now)
	}
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
}

func TestClockFuncConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	local := time.Date(2025, 5, 1, 9, 0, 0, 0, loc)
	now := ClockFunc(func() time.Time { return local }).Now()
	if now.Location() != time.UTC || !now.Equal(local) {
		t.Fatalf("expected %v in UTC, got %v", local, now)
	}
}

func TestWithClockStampsStoreRecords(t *testing.T) {
	fixed := time.Date(2024, 10, 1, 8, 30, 0, 0, time.UTC)
	svc := NewInMemoryService(nil, WithClock(ClockFunc(func() time.Time { return fixed })))
	donor := mustRegisterDonor(t, svc, DonorInput{})
	if !donor.CreatedAt.Equal(fixed) || !donor.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected stamps at %v, got %v/%v", fixed, donor.CreatedAt, donor.UpdatedAt)
	}
	if !svc.now().Equal(fixed) {
		t.Fatalf("expected service clock %v, got %v", fixed, svc.now())
	}
}

func TestSelectNowFuncPrefersStore(t *testing.T) {
	storeTime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	clockTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	store.SetNowFunc(func() time.Time { return storeTime })

	now := selectNowFunc(store, ClockFunc(func() time.Time { return clockTime }))
	if !now().Equal(storeTime) {
		t.Fatalf("expected store time, got %v", now())
	}
}

type bareStore struct{}

func (bareStore) RunInTransaction(context.Context, func(Transaction) error) (Result, error) {
	return Result{}, nil
}

func (bareStore) View(context.Context, func(TransactionView) error) error { return nil }

func TestSelectNowFuncFallbacks(t *testing.T) {
	clockTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := selectNowFunc(bareStore{}, ClockFunc(func() time.Time { return clockTime }))
	if !now().Equal(clockTime) {
		t.Fatalf("expected clock time, got %v", now())
	}

	before := time.Now().UTC().Add(-time.Second)
	if got := selectNowFunc(bareStore{}, nil)(); got.Before(before) {
		t.Fatalf("expected system time, got %v", got)
	}
}

func TestExtractRulesEngine(t *testing.T) {
	engine := NewDefaultRulesEngine(nil)
	if got := extractRulesEngine(memory.NewStore(engine)); got != engine {
		t.Fatalf("expected engine from store")
	}
	if got := extractRulesEngine(bareStore{}); got != nil {
		t.Fatalf("expected nil engine for bare store")
	}
}

func TestShelfLifeDefaults(t *testing.T) {
	approved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ShelfLife(0).ExpiresAt(Batch{}, approved); !got.Equal(approved.Add(DefaultShelfLife)) {
		t.Fatalf("expected default shelf life, got %v", got)
	}
	if got := ShelfLife(time.Hour).ExpiresAt(Batch{}, approved); !got.Equal(approved.Add(time.Hour)) {
		t.Fatalf("expected one hour shelf life, got %v", got)
	}
}
