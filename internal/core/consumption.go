package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"milkbank/pkg/domain"
)

// BatchLedger lists the debits recorded against a batch.
type BatchLedger struct {
	Batch           Batch
	Administrations []Administration
	Discards        []Discard
	Debited         decimal.Decimal
}

// Administer debits volume from an approved, unexpired batch to a recipient.
func (s *Service) Administer(ctx context.Context, recipientID, batchID string, volume decimal.Decimal, actor string) (Administration, Result, error) {
	var created Administration
	res, err := s.run(ctx, "administer", func(tx Transaction) (string, error) {
		if strings.TrimSpace(actor) == "" {
			return "", domain.ValidationError{Field: "actor", Reason: "must not be empty"}
		}
		if _, ok := tx.FindRecipient(recipientID); !ok {
			return "", domain.EntityNotFoundError{Entity: EntityRecipient, ID: recipientID}
		}
		batch, ok := tx.FindBatch(batchID)
		if !ok {
			return "", domain.EntityNotFoundError{Entity: EntityBatch, ID: batchID}
		}
		if err := domain.CheckAdministrable(batch, tx.Now()); err != nil {
			return "", err
		}
		if err := s.debit(tx, batch, volume); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateAdministration(Administration{
			BatchID:     batchID,
			RecipientID: recipientID,
			Volume:      volume,
			Actor:       actor,
			RecordedAt:  tx.Now(),
		})
		return created.ID, err
	})
	return created, res, err
}

// Discard debits volume from a batch for disposal. Any batch status is accepted.
func (s *Service) Discard(ctx context.Context, batchID string, volume decimal.Decimal, reason, actor string) (Discard, Result, error) {
	var created Discard
	res, err := s.run(ctx, "discard", func(tx Transaction) (string, error) {
		if strings.TrimSpace(reason) == "" {
			return "", domain.ValidationError{Field: "reason", Reason: "must not be empty"}
		}
		if strings.TrimSpace(actor) == "" {
			return "", domain.ValidationError{Field: "actor", Reason: "must not be empty"}
		}
		batch, ok := tx.FindBatch(batchID)
		if !ok {
			return "", domain.EntityNotFoundError{Entity: EntityBatch, ID: batchID}
		}
		if err := s.debit(tx, batch, volume); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateDiscard(Discard{
			BatchID:    batchID,
			Volume:     volume,
			Reason:     reason,
			Actor:      actor,
			RecordedAt: tx.Now(),
		})
		return created.ID, err
	})
	return created, res, err
}

// debit routes both consumption paths through the single volume primitive.
func (s *Service) debit(tx Transaction, batch Batch, volume decimal.Decimal) error {
	reduced, err := domain.ReduceVolume(batch, volume)
	if err != nil {
		return err
	}
	_, err = tx.UpdateBatch(batch.ID, func(b *Batch) error {
		b.CurrentVolume = reduced.CurrentVolume
		return nil
	})
	return err
}

// BatchLedger returns a batch with its administrations and discards in
// recording order.
func (s *Service) BatchLedger(ctx context.Context, batchID string) (BatchLedger, error) {
	var out BatchLedger
	err := s.view(ctx, "batch_ledger", func(v TransactionView) error {
		batch, ok := v.FindBatch(batchID)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityBatch, ID: batchID}
		}
		out.Batch = batch
		for _, a := range v.ListAdministrations() {
			if a.BatchID == batchID {
				out.Administrations = append(out.Administrations, a)
			}
		}
		for _, d := range v.ListDiscards() {
			if d.BatchID == batchID {
				out.Discards = append(out.Discards, d)
			}
		}
		out.Debited = domain.LedgerDebits(batchID, out.Administrations, out.Discards)
		return nil
	})
	return out, err
}
