package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"milkbank/internal/infra/persistence/memory"
	"milkbank/pkg/domain"
)

func TestNewDefaultRulesEngineRegistersRules(t *testing.T) {
	engine := NewDefaultRulesEngine(nil)
	want := []string{"volume_conservation", "batch_status_consistency", "donor_eligibility", "lifecycle_transition"}
	got := engine.Rules()
	if len(got) != len(want) {
		t.Fatalf("expected rules %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected rules %v, got %v", want, got)
		}
	}
}

// seededService returns a service and its store with one approved batch.
func seededService(t *testing.T) (*Service, *memory.Store, Batch) {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine(nil))
	svc := NewService(store)
	batch := mustApprovedBatch(t, svc, 100)
	return svc, store, batch
}

func expectBlockedBy(t *testing.T, err error, rule string) {
	t.Helper()
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule && v.Severity == SeverityBlock {
			return
		}
	}
	t.Fatalf("expected %s to block, got %+v", rule, violation.Result.Violations)
}

func TestVolumeConservationBlocksUnrecordedDebit(t *testing.T) {
	_, store, batch := seededService(t)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateBatch(batch.ID, func(b *Batch) error {
			b.CurrentVolume = b.CurrentVolume.Sub(ml(10))
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "volume_conservation")
}

func TestVolumeConservationBlocksOverflow(t *testing.T) {
	_, store, batch := seededService(t)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateBatch(batch.ID, func(b *Batch) error {
			b.CurrentVolume = b.TotalVolume.Add(ml(1))
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "volume_conservation")
}

func TestVolumeConservationBlocksNegative(t *testing.T) {
	_, store, batch := seededService(t)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateDiscard(Discard{BatchID: batch.ID, Volume: ml(110), Reason: "x", Actor: "y"}); err != nil {
			return err
		}
		_, err := tx.UpdateBatch(batch.ID, func(b *Batch) error {
			b.CurrentVolume = ml(-10)
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "volume_conservation")
}

func TestBatchStatusConsistencyBlocksForcedApproval(t *testing.T) {
	svc := NewInMemoryService(nil)
	batch, _ := mustBatch(t, svc, 100)
	_, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateBatch(batch.ID, func(b *Batch) error {
			b.Status = domain.BatchStatusApproved
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "batch_status_consistency")
}

func TestDonorEligibilityBlocksInconsistentDonor(t *testing.T) {
	svc := NewInMemoryService(nil)
	donor := mustRegisterDonor(t, svc, DonorInput{})
	_, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateDonor(donor.ID, func(d *Donor) error {
			d.BloodTransfusionRisk = true
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "donor_eligibility")

	_, err = svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateDonor(donor.ID, func(d *Donor) error {
			d.Status = domain.DonorStatusRejected
			d.DonationType = domain.DonationTypeRejected
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "donor_eligibility")
}

func TestDonorEligibilityBlocksBottleFromIneligibleDonor(t *testing.T) {
	svc := NewInMemoryService(nil)
	donor := mustRegisterDonor(t, svc, DonorInput{AdminStatus: domain.DonorStatusInactive})
	_, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateBottle(Bottle{DonorID: donor.ID, Volume: ml(10), Status: domain.BottleStatusCollected})
		return err
	})
	expectBlockedBy(t, err, "donor_eligibility")

	_, err = svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateBottle(Bottle{DonorID: "ghost", Volume: ml(10), Status: domain.BottleStatusCollected})
		return err
	})
	expectBlockedBy(t, err, "donor_eligibility")
}

func TestLifecycleTransitionBlocksTerminalExit(t *testing.T) {
	svc := NewInMemoryService(nil)
	donor := mustRegisterDonor(t, svc, DonorInput{})
	bottle := mustCollect(t, svc, donor.ID, 50)
	if _, _, err := svc.DiscardBottle(context.Background(), bottle.ID, "leak", "tech"); err != nil {
		t.Fatalf("discard bottle: %v", err)
	}
	_, err := svc.Store().RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateBottle(bottle.ID, func(b *Bottle) error {
			b.Status = domain.BottleStatusCollected
			return nil
		})
		return err
	})
	expectBlockedBy(t, err, "lifecycle_transition")
}

func TestLifecycleTransitionBlocksUnknownState(t *testing.T) {
	rule := LifecycleTransitionRule()
	res, err := rule.Evaluate(context.Background(), nil, []Change{{
		Entity: EntityBatch,
		Action: ActionUpdate,
		Before: Batch{Base: domain.Base{ID: "b1"}, Status: domain.BatchStatusInProcess},
		After:  Batch{Base: domain.Base{ID: "b1"}, Status: BatchStatus("thawed")},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0].Message, "invalid state") {
		t.Fatalf("expected invalid state violation, got %+v", res.Violations)
	}

	res, err = rule.Evaluate(context.Background(), nil, []Change{{
		Entity: EntityBatch,
		Action: ActionUpdate,
		Before: Batch{Base: domain.Base{ID: "b1"}, Status: domain.BatchStatusApproved},
		After:  Batch{Base: domain.Base{ID: "b1"}, Status: domain.BatchStatusApproved},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("volume updates on an approved batch must pass, got %+v", res.Violations)
	}
}

func TestBlockedTransactionLeavesStateUnchanged(t *testing.T) {
	svc, store, batch := seededService(t)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateBatch(batch.ID, func(b *Batch) error {
			b.CurrentVolume = ml(0)
			return nil
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected blocked transaction")
	}
	got, err := svc.GetBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if !got.CurrentVolume.Equal(ml(100)) {
		t.Fatalf("expected volume to be untouched, got %s", got.CurrentVolume)
	}
}

func TestTouchedBatches(t *testing.T) {
	batchID := "b1"
	ids := touchedBatches([]Change{
		{Entity: EntityBottle, After: Bottle{BatchID: &batchID}},
		{Entity: EntityBatch, After: Batch{Base: domain.Base{ID: batchID}}},
		{Entity: EntityAdministration, After: Administration{BatchID: "b2"}},
		{Entity: EntityDiscard, After: Discard{BatchID: "b3"}},
		{Entity: EntityBottle, After: Bottle{}},
	})
	want := []string{"b1", "b2", "b3"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}
