package core

import (
	"context"
	"errors"
	"fmt"

	"milkbank/pkg/domain"
)

// batchCodeFormat renders the sequential human readable batch code.
const batchCodeFormat = "L-%06d"

// ConformBatch pools collected bottles into a new batch. Membership and total
// volume are fixed from this point on.
func (s *Service) ConformBatch(ctx context.Context, bottleIDs []string, batchType BatchType) (Batch, Result, error) {
	var created Batch
	res, err := s.run(ctx, "conform_batch", func(tx Transaction) (string, error) {
		if len(bottleIDs) == 0 {
			return "", domain.ValidationError{Field: "bottle_ids", Reason: "must not be empty"}
		}
		if !batchType.Valid() {
			return "", domain.ValidationError{Field: "type", Reason: "unknown batch type " + string(batchType)}
		}
		seen := make(map[string]struct{}, len(bottleIDs))
		bottles := make([]Bottle, 0, len(bottleIDs))
		for _, id := range bottleIDs {
			if _, dup := seen[id]; dup {
				return "", domain.ValidationError{Field: "bottle_ids", Reason: "duplicate bottle " + id}
			}
			seen[id] = struct{}{}
			b, ok := tx.FindBottle(id)
			if !ok {
				return "", domain.EntityNotFoundError{Entity: EntityBottle, ID: id}
			}
			if err := domain.CheckAssignable(b); err != nil {
				return "", err
			}
			bottles = append(bottles, b)
		}
		total := domain.SumVolume(bottles)
		batch, err := tx.CreateBatch(Batch{
			Code:          fmt.Sprintf(batchCodeFormat, len(tx.Snapshot().ListBatches())+1),
			Type:          batchType,
			BottleIDs:     append([]string(nil), bottleIDs...),
			TotalVolume:   total,
			CurrentVolume: total,
			Status:        domain.BatchStatusInProcess,
		})
		if err != nil {
			return "", err
		}
		batchID := batch.ID
		for _, id := range bottleIDs {
			if _, err := tx.UpdateBottle(id, func(b *Bottle) error {
				b.Status = domain.BottleStatusAssigned
				b.BatchID = &batchID
				return nil
			}); err != nil {
				return batchID, err
			}
		}
		created = batch
		return batchID, nil
	})
	return created, res, err
}

// RecordPhysicalInspection stores a physical inspection of one bottle and
// refolds the batch status.
func (s *Service) RecordPhysicalInspection(ctx context.Context, batchID, bottleID string, findings PhysicalFindings) (Bottle, Result, error) {
	return s.recordInspection(ctx, "record_physical_inspection", batchID, bottleID, domain.InspectionPhysical,
		func() (domain.Verdict, error) { return domain.PhysicalVerdict(findings) },
		func(tx Transaction, verdict domain.Verdict) (string, error) {
			rec, err := tx.CreatePhysicalInspection(PhysicalInspection{
				BatchID:          batchID,
				BottleID:         bottleID,
				PhysicalFindings: clonePhysicalFindings(findings),
				Verdict:          verdict,
				InspectedAt:      tx.Now(),
			})
			return rec.ID, err
		})
}

// RecordQualityControl stores a quality-control analysis of one bottle and
// refolds the batch status.
func (s *Service) RecordQualityControl(ctx context.Context, batchID, bottleID string, findings QualityFindings) (Bottle, Result, error) {
	return s.recordInspection(ctx, "record_quality_control", batchID, bottleID, domain.InspectionQualityControl,
		func() (domain.Verdict, error) { return domain.QualityControlVerdict(findings) },
		func(tx Transaction, verdict domain.Verdict) (string, error) {
			rec, err := tx.CreateQualityControl(QualityControl{
				BatchID:         batchID,
				BottleID:        bottleID,
				QualityFindings: findings,
				Verdict:         verdict,
				AnalyzedAt:      tx.Now(),
			})
			return rec.ID, err
		})
}

func (s *Service) recordInspection(
	ctx context.Context,
	op, batchID, bottleID string,
	kind domain.InspectionKind,
	verdictFn func() (domain.Verdict, error),
	create func(Transaction, domain.Verdict) (string, error),
) (Bottle, Result, error) {
	var updated Bottle
	res, err := s.run(ctx, op, func(tx Transaction) (string, error) {
		batch, ok := tx.FindBatch(batchID)
		if !ok {
			return "", domain.EntityNotFoundError{Entity: EntityBatch, ID: batchID}
		}
		bottle, ok := tx.FindBottle(bottleID)
		if !ok {
			return "", domain.EntityNotFoundError{Entity: EntityBottle, ID: bottleID}
		}
		if !bottle.InBatch(batchID) {
			return "", domain.InvalidInspectionInputError{BottleID: bottleID, Reason: "bottle is not a member of batch " + batch.Code}
		}
		if batch.Status == domain.BatchStatusCancelled {
			return "", domain.InvalidInspectionInputError{BottleID: bottleID, Reason: "batch " + batch.Code + " is cancelled"}
		}
		if err := domain.CheckInspectable(bottle, kind); err != nil {
			return "", err
		}
		verdict, err := verdictFn()
		if err != nil {
			var input domain.InvalidInspectionInputError
			if errors.As(err, &input) && input.BottleID == "" {
				input.BottleID = bottleID
				return "", input
			}
			return "", err
		}
		recordID, err := create(tx, verdict)
		if err != nil {
			return "", err
		}
		next, err := domain.RecordInspection(bottle, kind, recordID, verdict)
		if err != nil {
			return recordID, err
		}
		updated, err = tx.UpdateBottle(bottleID, func(b *Bottle) error {
			*b = next
			return nil
		})
		if err != nil {
			return recordID, err
		}
		return recordID, s.refoldBatch(tx, batch)
	})
	return updated, res, err
}

// refoldBatch recomputes the batch status from its current members and
// stamps approval and expiration on the transition to approved.
func (s *Service) refoldBatch(tx Transaction, batch Batch) error {
	bottles := make([]Bottle, 0, len(batch.BottleIDs))
	for _, id := range batch.BottleIDs {
		b, ok := tx.FindBottle(id)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityBottle, ID: id}
		}
		bottles = append(bottles, b)
	}
	status := domain.RecomputeBatchStatus(batch, bottles)
	if status == batch.Status {
		return nil
	}
	_, err := tx.UpdateBatch(batch.ID, func(b *Batch) error {
		b.Status = status
		if status == domain.BatchStatusApproved && b.ApprovedAt == nil {
			approvedAt := tx.Now()
			expiresAt := s.expiration.ExpiresAt(*b, approvedAt)
			b.ApprovedAt = &approvedAt
			b.ExpiresAt = &expiresAt
		}
		return nil
	})
	return err
}

// SetBatchStatus applies an administrative closure (completed or cancelled).
func (s *Service) SetBatchStatus(ctx context.Context, batchID string, status BatchStatus) (Batch, Result, error) {
	var updated Batch
	res, err := s.run(ctx, "set_batch_status", func(tx Transaction) (string, error) {
		batch, ok := tx.FindBatch(batchID)
		if !ok {
			return batchID, domain.EntityNotFoundError{Entity: EntityBatch, ID: batchID}
		}
		if err := domain.CheckManualTransition(batch, status); err != nil {
			return batchID, err
		}
		var err error
		updated, err = tx.UpdateBatch(batchID, func(b *Batch) error {
			b.Status = status
			return nil
		})
		return batchID, err
	})
	return updated, res, err
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, id string) (Batch, error) {
	var out Batch
	err := s.view(ctx, "get_batch", func(v TransactionView) error {
		b, ok := v.FindBatch(id)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityBatch, ID: id}
		}
		out = b
		return nil
	})
	return out, err
}

// ListBatches returns every batch in conformation order.
func (s *Service) ListBatches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := s.view(ctx, "list_batches", func(v TransactionView) error {
		out = v.ListBatches()
		return nil
	})
	return out, err
}

// BatchBottles returns the member bottles of a batch in membership order.
func (s *Service) BatchBottles(ctx context.Context, batchID string) ([]Bottle, error) {
	var out []Bottle
	err := s.view(ctx, "batch_bottles", func(v TransactionView) error {
		batch, ok := v.FindBatch(batchID)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityBatch, ID: batchID}
		}
		out = make([]Bottle, 0, len(batch.BottleIDs))
		for _, id := range batch.BottleIDs {
			b, ok := v.FindBottle(id)
			if !ok {
				return domain.EntityNotFoundError{Entity: EntityBottle, ID: id}
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

// AvailableBatches returns the batches milk can be administered from now,
// first-expired first.
func (s *Service) AvailableBatches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := s.view(ctx, "available_batches", func(v TransactionView) error {
		out = domain.AvailableBatches(v.ListBatches(), s.now())
		return nil
	})
	return out, err
}

func clonePhysicalFindings(f PhysicalFindings) PhysicalFindings {
	f.RejectionReasons = append([]string(nil), f.RejectionReasons...)
	return f
}
