package core

import (
	"context"
	"fmt"

	"milkbank/pkg/domain"
)

// VolumeConservationRule blocks commits that leave a batch outside
// 0 <= current <= total or whose debits do not account for the consumed volume.
func VolumeConservationRule() domain.Rule {
	return volumeConservationRule{}
}

type volumeConservationRule struct{}

func (volumeConservationRule) Name() string { return "volume_conservation" }

func (r volumeConservationRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	ids := touchedBatches(changes)
	if len(ids) == 0 {
		return res, nil
	}
	administrations := view.ListAdministrations()
	discards := view.ListDiscards()
	for _, id := range ids {
		batch, ok := view.FindBatch(id)
		if !ok {
			continue
		}
		block := func(msg string) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  msg,
				Entity:   domain.EntityBatch,
				EntityID: id,
			})
		}
		if batch.CurrentVolume.IsNegative() {
			block(fmt.Sprintf("batch %s current volume %s is negative", batch.Code, batch.CurrentVolume))
			continue
		}
		if batch.CurrentVolume.GreaterThan(batch.TotalVolume) {
			block(fmt.Sprintf("batch %s current volume %s exceeds total %s", batch.Code, batch.CurrentVolume, batch.TotalVolume))
			continue
		}
		consumed := batch.TotalVolume.Sub(batch.CurrentVolume)
		debited := domain.LedgerDebits(id, administrations, discards)
		if !consumed.Equal(debited) {
			block(fmt.Sprintf("batch %s consumed %s mL but ledger records %s mL", batch.Code, consumed, debited))
		}
	}
	return res, nil
}
