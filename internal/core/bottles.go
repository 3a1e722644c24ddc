package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"milkbank/pkg/domain"
)

// BottleMetadata carries the optional collection details of a bottle.
type BottleMetadata struct {
	CollectedAt time.Time
	Location    string
	Notes       string
}

// CollectBottle records a bottle collected from an active donor.
func (s *Service) CollectBottle(ctx context.Context, donorID string, volume decimal.Decimal, meta BottleMetadata) (Bottle, Result, error) {
	var created Bottle
	res, err := s.run(ctx, "collect_bottle", func(tx Transaction) (string, error) {
		if !volume.IsPositive() {
			return "", domain.ValidationError{Field: "volume", Reason: "must be greater than zero"}
		}
		donor, ok := tx.FindDonor(donorID)
		if !ok {
			return "", domain.EntityNotFoundError{Entity: EntityDonor, ID: donorID}
		}
		// The stored status may predate the current classifier policy.
		s.classifier.Apply(&donor)
		if err := domain.CheckCollectable(donor); err != nil {
			return "", err
		}
		collectedAt := meta.CollectedAt
		if collectedAt.IsZero() {
			collectedAt = tx.Now()
		}
		var err error
		created, err = tx.CreateBottle(Bottle{
			DonorID:     donorID,
			Volume:      volume,
			CollectedAt: collectedAt.UTC(),
			Location:    meta.Location,
			Notes:       meta.Notes,
			Status:      domain.BottleStatusCollected,
		})
		return created.ID, err
	})
	return created, res, err
}

// DiscardBottle disposes of a bottle that has not been assigned to a batch.
func (s *Service) DiscardBottle(ctx context.Context, bottleID, reason, actor string) (Bottle, Result, error) {
	var updated Bottle
	res, err := s.run(ctx, "discard_bottle", func(tx Transaction) (string, error) {
		if strings.TrimSpace(reason) == "" {
			return bottleID, domain.ValidationError{Field: "reason", Reason: "must not be empty"}
		}
		if strings.TrimSpace(actor) == "" {
			return bottleID, domain.ValidationError{Field: "actor", Reason: "must not be empty"}
		}
		bottle, ok := tx.FindBottle(bottleID)
		if !ok {
			return bottleID, domain.EntityNotFoundError{Entity: EntityBottle, ID: bottleID}
		}
		if err := domain.CheckDiscardable(bottle); err != nil {
			return bottleID, err
		}
		var err error
		updated, err = tx.UpdateBottle(bottleID, func(b *Bottle) error {
			r := reason
			b.Status = domain.BottleStatusDiscarded
			b.DiscardReason = &r
			b.DiscardedBy = actor
			return nil
		})
		return bottleID, err
	})
	return updated, res, err
}

// GetBottle returns a bottle by id.
func (s *Service) GetBottle(ctx context.Context, id string) (Bottle, error) {
	var out Bottle
	err := s.view(ctx, "get_bottle", func(v TransactionView) error {
		b, ok := v.FindBottle(id)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityBottle, ID: id}
		}
		out = b
		return nil
	})
	return out, err
}

// ListBottles returns every bottle in collection order.
func (s *Service) ListBottles(ctx context.Context) ([]Bottle, error) {
	var out []Bottle
	err := s.view(ctx, "list_bottles", func(v TransactionView) error {
		out = v.ListBottles()
		return nil
	})
	return out, err
}

// FreeBottles returns the collected bottles not yet assigned to a batch.
func (s *Service) FreeBottles(ctx context.Context) ([]Bottle, error) {
	var out []Bottle
	err := s.view(ctx, "free_bottles", func(v TransactionView) error {
		for _, b := range v.ListBottles() {
			if domain.CheckAssignable(b) == nil {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, err
}
