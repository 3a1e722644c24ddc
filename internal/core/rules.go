package core

import (
	"milkbank/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
// A nil classifier uses the default eligibility policy.
func NewDefaultRulesEngine(classifier *domain.Classifier) *RulesEngine {
	if classifier == nil {
		classifier = domain.DefaultClassifier()
	}
	engine := NewRulesEngine()
	engine.Register(VolumeConservationRule())
	engine.Register(BatchStatusConsistencyRule())
	engine.Register(DonorEligibilityRule(classifier))
	engine.Register(LifecycleTransitionRule())
	return engine
}

// touchedBatches collects the ids of batches affected by changes, in first
// seen order.
func touchedBatches(changes []Change) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Batch:
			add(after.ID)
		case domain.Bottle:
			if after.BatchID != nil {
				add(*after.BatchID)
			}
		case domain.Administration:
			add(after.BatchID)
		case domain.Discard:
			add(after.BatchID)
		case domain.PhysicalInspection:
			add(after.BatchID)
		case domain.QualityControl:
			add(after.BatchID)
		}
	}
	return ids
}
