package domain

// CanCollect reports whether milk may be collected from d.
func CanCollect(d Donor) bool {
	return d.Status == DonorStatusActive
}

// CheckCollectable returns an IneligibleDonorError unless d is active.
func CheckCollectable(d Donor) error {
	if !CanCollect(d) {
		return IneligibleDonorError{DonorID: d.ID, Status: d.Status}
	}
	return nil
}

// CheckAssignable verifies that b can join a new batch.
func CheckAssignable(b Bottle) error {
	if b.Status != BottleStatusCollected || b.BatchID != nil {
		return InvalidTransitionError{Entity: EntityBottle, ID: b.ID, From: string(b.Status), To: string(BottleStatusAssigned)}
	}
	return nil
}

// CheckDiscardable verifies that b can be discarded before batch assignment.
func CheckDiscardable(b Bottle) error {
	if b.Status != BottleStatusCollected || b.BatchID != nil {
		return InvalidTransitionError{Entity: EntityBottle, ID: b.ID, From: string(b.Status), To: string(BottleStatusDiscarded)}
	}
	return nil
}
