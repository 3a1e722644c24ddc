package core

import (
	"context"
	"fmt"

	"milkbank/pkg/domain"
)

// BatchStatusConsistencyRule blocks commits where a batch status disagrees
// with the fold over its member bottles. Administrative closures are exempt.
func BatchStatusConsistencyRule() domain.Rule {
	return batchStatusConsistencyRule{}
}

type batchStatusConsistencyRule struct{}

func (batchStatusConsistencyRule) Name() string { return "batch_status_consistency" }

func (r batchStatusConsistencyRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range touchedBatches(changes) {
		batch, ok := view.FindBatch(id)
		if !ok || domain.ManualBatchStatus(batch.Status) {
			continue
		}
		bottles := make([]domain.Bottle, 0, len(batch.BottleIDs))
		for _, bottleID := range batch.BottleIDs {
			if b, ok := view.FindBottle(bottleID); ok {
				bottles = append(bottles, b)
			}
		}
		if want := domain.RecomputeBatchStatus(batch, bottles); want != batch.Status {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %s is %s but its bottles fold to %s", batch.Code, batch.Status, want),
				Entity:   domain.EntityBatch,
				EntityID: id,
			})
		}
	}
	return res, nil
}
