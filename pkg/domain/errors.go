package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EntityNotFoundError is returned when a referenced record does not exist.
type EntityNotFoundError struct {
	Entity EntityType
	ID     string
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// IneligibleDonorError is returned when collection is attempted for a donor
// that is not active.
type IneligibleDonorError struct {
	DonorID string
	Status  DonorStatus
}

func (e IneligibleDonorError) Error() string {
	return fmt.Sprintf("donor %q is not eligible for collection (status %s)", e.DonorID, e.Status)
}

// InsufficientVolumeError is returned when a debit exceeds the batch's
// current volume.
type InsufficientVolumeError struct {
	BatchID   string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e InsufficientVolumeError) Error() string {
	return fmt.Sprintf("batch %q has %s mL available, %s mL requested", e.BatchID, e.Available.String(), e.Requested.String())
}

// InvalidInspectionInputError is returned for malformed or out-of-order
// inspection submissions.
type InvalidInspectionInputError struct {
	BottleID string
	Reason   string
}

func (e InvalidInspectionInputError) Error() string {
	if e.BottleID == "" {
		return "invalid inspection input: " + e.Reason
	}
	return fmt.Sprintf("invalid inspection input for bottle %q: %s", e.BottleID, e.Reason)
}

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports an illegal state change.
type InvalidTransitionError struct {
	Entity EntityType
	ID     string
	From   string
	To     string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %q cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// BatchUnavailableError is returned when a batch cannot be administered.
type BatchUnavailableError struct {
	BatchID string
	Reason  string
}

func (e BatchUnavailableError) Error() string {
	return fmt.Sprintf("batch %q is not available: %s", e.BatchID, e.Reason)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var rules []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			rules = append(rules, v.Rule)
		}
	}
	if len(rules) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(rules, ", ")
}
