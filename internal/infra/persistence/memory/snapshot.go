package memory

import (
	"context"
	"encoding/json"
	"fmt"
)

// Bucket names used by durable backends. Each bucket holds one collection and
// is always written as a full replacement.
const (
	BucketDonors              = "donors"
	BucketRecipients          = "recipients"
	BucketBottles             = "bottles"
	BucketBatches             = "batches"
	BucketPhysicalInspections = "physical_inspections"
	BucketQualityControls     = "quality_controls"
	BucketAdministrations     = "administrations"
	BucketDiscards            = "discards"
)

// Buckets lists every bucket in a stable order.
var Buckets = []string{
	BucketDonors,
	BucketRecipients,
	BucketBottles,
	BucketBatches,
	BucketPhysicalInspections,
	BucketQualityControls,
	BucketAdministrations,
	BucketDiscards,
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Donors              map[string]Donor              `json:"donors"`
	Recipients          map[string]Recipient          `json:"recipients"`
	Bottles             map[string]Bottle             `json:"bottles"`
	Batches             map[string]Batch              `json:"batches"`
	PhysicalInspections map[string]PhysicalInspection `json:"physical_inspections"`
	QualityControls     map[string]QualityControl     `json:"quality_controls"`
	Administrations     map[string]Administration     `json:"administrations"`
	Discards            map[string]Discard            `json:"discards"`
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state.clone()
	return Snapshot{
		Donors:              state.donors,
		Recipients:          state.recipients,
		Bottles:             state.bottles,
		Batches:             state.batches,
		PhysicalInspections: state.physical,
		QualityControls:     state.quality,
		Administrations:     state.administrations,
		Discards:            state.discards,
	}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := memoryState{
		donors:          snapshot.Donors,
		recipients:      snapshot.Recipients,
		bottles:         snapshot.Bottles,
		batches:         snapshot.Batches,
		physical:        snapshot.PhysicalInspections,
		quality:         snapshot.QualityControls,
		administrations: snapshot.Administrations,
		discards:        snapshot.Discards,
	}.clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// EncodeBuckets serializes each collection into its own JSON payload.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	values := map[string]any{
		BucketDonors:              nonNil(s.Donors),
		BucketRecipients:          nonNil(s.Recipients),
		BucketBottles:             nonNil(s.Bottles),
		BucketBatches:             nonNil(s.Batches),
		BucketPhysicalInspections: nonNil(s.PhysicalInspections),
		BucketQualityControls:     nonNil(s.QualityControls),
		BucketAdministrations:     nonNil(s.Administrations),
		BucketDiscards:            nonNil(s.Discards),
	}
	out := make(map[string][]byte, len(values))
	for _, bucket := range Buckets {
		payload, err := json.Marshal(values[bucket])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = payload
	}
	return out, nil
}

// DecodeBuckets rebuilds a snapshot from bucket payloads. Missing or empty
// buckets decode as empty collections; unknown buckets are rejected.
func DecodeBuckets(raw map[string][]byte) (Snapshot, error) {
	var snapshot Snapshot
	targets := map[string]any{
		BucketDonors:              &snapshot.Donors,
		BucketRecipients:          &snapshot.Recipients,
		BucketBottles:             &snapshot.Bottles,
		BucketBatches:             &snapshot.Batches,
		BucketPhysicalInspections: &snapshot.PhysicalInspections,
		BucketQualityControls:     &snapshot.QualityControls,
		BucketAdministrations:     &snapshot.Administrations,
		BucketDiscards:            &snapshot.Discards,
	}
	for bucket, payload := range raw {
		target, ok := targets[bucket]
		if !ok {
			return Snapshot{}, fmt.Errorf("unknown bucket %q", bucket)
		}
		if len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return snapshot, nil
}

func nonNil[T any](m map[string]T) map[string]T {
	if m == nil {
		return map[string]T{}
	}
	return m
}

// RestoreState replaces committed state with snap. The in-memory store has no
// durable side effects, so it never fails.
func (s *Store) RestoreState(_ context.Context, snap Snapshot) error {
	s.ImportState(snap)
	return nil
}
