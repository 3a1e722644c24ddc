package core

import (
	"context"
	"fmt"

	"milkbank/pkg/domain"
)

// LifecycleTransitionRule blocks invalid states and moves out of terminal
// states on bottles and batches.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	entity    domain.EntityType
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	extractor func(value any) (id string, state string, ok bool)
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityBottle: {
		entity:   domain.EntityBottle,
		label:    "bottle",
		terminal: toSet(string(domain.BottleStatusRejected), string(domain.BottleStatusDiscarded)),
		valid: toSet(
			string(domain.BottleStatusCollected),
			string(domain.BottleStatusAssigned),
			string(domain.BottleStatusApproved),
			string(domain.BottleStatusRejected),
			string(domain.BottleStatusDiscarded),
		),
		extractor: func(value any) (string, string, bool) {
			bottle, ok := value.(domain.Bottle)
			if !ok {
				return "", "", false
			}
			return bottle.ID, string(bottle.Status), true
		},
	},
	domain.EntityBatch: {
		entity:   domain.EntityBatch,
		label:    "batch",
		terminal: toSet(string(domain.BatchStatusApproved), string(domain.BatchStatusRejected), string(domain.BatchStatusCancelled)),
		valid: toSet(
			string(domain.BatchStatusInProcess),
			string(domain.BatchStatusCompleted),
			string(domain.BatchStatusPendingQC),
			string(domain.BatchStatusApproved),
			string(domain.BatchStatusRejected),
			string(domain.BatchStatusCancelled),
		),
		extractor: func(value any) (string, string, bool) {
			batch, ok := value.(domain.Batch)
			if !ok {
				return "", "", false
			}
			return batch.ID, string(batch.Status), true
		},
	},
	domain.EntityDonor: {
		entity: domain.EntityDonor,
		label:  "donor",
		valid: toSet(
			string(domain.DonorStatusActive),
			string(domain.DonorStatusScreening),
			string(domain.DonorStatusRejected),
			string(domain.DonorStatusInactive),
			string(domain.DonorStatusSuspended),
		),
		extractor: func(value any) (string, string, bool) {
			donor, ok := value.(domain.Donor)
			if !ok {
				return "", "", false
			}
			return donor.ID, string(donor.Status), true
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (r lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}

		afterID, afterState, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if _, valid := machine.valid[afterState]; !valid {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %s is set to invalid state %q", machine.label, afterID, afterState),
				Entity:   machine.entity,
				EntityID: afterID,
			})
			continue
		}

		_, beforeState, ok := machine.extractor(change.Before)
		if !ok {
			continue
		}
		if _, terminal := machine.terminal[beforeState]; !terminal {
			continue
		}
		if afterState != beforeState {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move %s %s from terminal state %s to %s", machine.label, afterID, beforeState, afterState),
				Entity:   machine.entity,
				EntityID: afterID,
			})
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
