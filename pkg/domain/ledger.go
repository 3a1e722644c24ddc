package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SumVolume totals the volume of the given bottles.
func SumVolume(bottles []Bottle) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bottles {
		total = total.Add(b.Volume)
	}
	return total
}

// ReduceVolume debits amount from the batch's current volume. TotalVolume is
// never touched.
func ReduceVolume(b Batch, amount decimal.Decimal) (Batch, error) {
	if !amount.IsPositive() {
		return Batch{}, ValidationError{Field: "volume", Reason: "must be greater than zero"}
	}
	if amount.GreaterThan(b.CurrentVolume) {
		return Batch{}, InsufficientVolumeError{BatchID: b.ID, Requested: amount, Available: b.CurrentVolume}
	}
	b.CurrentVolume = b.CurrentVolume.Sub(amount)
	return b, nil
}

// Expired reports whether the batch expiration has been reached at now.
func (b Batch) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// CheckAdministrable verifies that milk may be administered from b at now.
func CheckAdministrable(b Batch, now time.Time) error {
	switch {
	case b.Status != BatchStatusApproved:
		return BatchUnavailableError{BatchID: b.ID, Reason: "status is " + string(b.Status)}
	case !b.CurrentVolume.IsPositive():
		return BatchUnavailableError{BatchID: b.ID, Reason: "no volume remaining"}
	case b.Expired(now):
		return BatchUnavailableError{BatchID: b.ID, Reason: "expired"}
	}
	return nil
}

// AvailableBatches returns the batches that can be administered at now,
// ordered first-expired-first-out. Ties fall back to approval time then code.
func AvailableBatches(batches []Batch, now time.Time) []Batch {
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if CheckAdministrable(b, now) == nil {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := compareOptionalTime(a.ExpiresAt, b.ExpiresAt); c != 0 {
			return c < 0
		}
		if c := compareOptionalTime(a.ApprovedAt, b.ApprovedAt); c != 0 {
			return c < 0
		}
		return a.Code < b.Code
	})
	return out
}

// compareOptionalTime orders nil after any set time.
func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

// LedgerDebits totals the administrations and discards recorded for batchID.
func LedgerDebits(batchID string, administrations []Administration, discards []Discard) decimal.Decimal {
	total := decimal.Zero
	for _, a := range administrations {
		if a.BatchID == batchID {
			total = total.Add(a.Volume)
		}
	}
	for _, d := range discards {
		if d.BatchID == batchID {
			total = total.Add(d.Volume)
		}
	}
	return total
}
