package core

import (
	"context"
	"fmt"

	"milkbank/pkg/domain"
)

// DonorEligibilityRule blocks donor writes whose derived status disagrees with
// the classifier, and bottle creation for donors that are not active.
func DonorEligibilityRule(classifier *domain.Classifier) domain.Rule {
	if classifier == nil {
		classifier = domain.DefaultClassifier()
	}
	return donorEligibilityRule{classifier: classifier}
}

type donorEligibilityRule struct {
	classifier *domain.Classifier
}

func (donorEligibilityRule) Name() string { return "donor_eligibility" }

func (r donorEligibilityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(entity domain.EntityType, id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Donor:
			verdict := r.classifier.Classify(after)
			rejected := after.Status == domain.DonorStatusRejected
			switch {
			case verdict.Rejected() && !rejected:
				block(domain.EntityDonor, after.ID, fmt.Sprintf("donor %s is %s but triggers: %s", after.ID, after.Status, verdict.Reason()))
			case !verdict.Rejected() && rejected:
				block(domain.EntityDonor, after.ID, fmt.Sprintf("donor %s is rejected without a triggered exclusion rule", after.ID))
			case rejected && after.DonationType != domain.DonationTypeRejected:
				block(domain.EntityDonor, after.ID, fmt.Sprintf("rejected donor %s must have donation type rejected", after.ID))
			}
		case domain.Bottle:
			if change.Action != domain.ActionCreate {
				continue
			}
			donor, ok := view.FindDonor(after.DonorID)
			if !ok {
				block(domain.EntityBottle, after.ID, fmt.Sprintf("bottle %s references unknown donor %s", after.ID, after.DonorID))
				continue
			}
			if !domain.CanCollect(donor) {
				block(domain.EntityBottle, after.ID, fmt.Sprintf("bottle %s collected from %s donor %s", after.ID, donor.Status, donor.ID))
			}
		}
	}
	return res, nil
}
