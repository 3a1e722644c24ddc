package domain

import (
	"math"
	"strings"
)

// MaxAcidityDornic is the highest acceptable titratable acidity in Dornic degrees.
const MaxAcidityDornic = 8.0

// InspectionKind distinguishes the two inspection stages.
type InspectionKind string

// Inspection stages recorded per bottle.
const (
	InspectionPhysical       InspectionKind = "physical"
	InspectionQualityControl InspectionKind = "quality_control"
)

// PhysicalVerdict derives the physical inspection verdict. A rejection must
// carry at least one non-blank reason.
func PhysicalVerdict(f PhysicalFindings) (Verdict, error) {
	reasons := nonBlank(f.RejectionReasons)
	if f.LidOK && f.IntegrityOK && f.SealOK && f.LabelOK && len(reasons) == 0 {
		return VerdictApproved, nil
	}
	if len(reasons) == 0 {
		return "", InvalidInspectionInputError{Reason: "rejected physical inspection requires at least one rejection reason"}
	}
	return VerdictRejected, nil
}

// QualityControlVerdict derives the quality-control verdict from acidity and
// coliform presence. Other findings are informational.
func QualityControlVerdict(f QualityFindings) (Verdict, error) {
	if math.IsNaN(f.AcidityDornic) || math.IsInf(f.AcidityDornic, 0) || f.AcidityDornic < 0 {
		return "", InvalidInspectionInputError{Reason: "acidity must be a non-negative number"}
	}
	if f.AcidityDornic > MaxAcidityDornic || f.ColiformsPresence {
		return VerdictRejected, nil
	}
	return VerdictApproved, nil
}

// CheckInspectable verifies that a bottle can receive an inspection of kind.
func CheckInspectable(b Bottle, kind InspectionKind) error {
	switch b.Status {
	case BottleStatusRejected:
		return InvalidInspectionInputError{BottleID: b.ID, Reason: "bottle already rejected"}
	case BottleStatusAssigned:
	default:
		return InvalidTransitionError{Entity: EntityBottle, ID: b.ID, From: string(b.Status), To: "inspected"}
	}
	switch kind {
	case InspectionPhysical:
		if b.PhysicalInspectionID != nil {
			return InvalidInspectionInputError{BottleID: b.ID, Reason: "physical inspection already recorded"}
		}
	case InspectionQualityControl:
		if b.QualityControlID != nil {
			return InvalidInspectionInputError{BottleID: b.ID, Reason: "quality control already recorded"}
		}
	default:
		return InvalidInspectionInputError{BottleID: b.ID, Reason: "unknown inspection kind " + string(kind)}
	}
	return nil
}

// RecordInspection links an inspection to b and advances its status. Either
// rejection rejects the bottle; two approvals approve it.
func RecordInspection(b Bottle, kind InspectionKind, inspectionID string, verdict Verdict) (Bottle, error) {
	if err := CheckInspectable(b, kind); err != nil {
		return Bottle{}, err
	}
	id := inspectionID
	if kind == InspectionPhysical {
		b.PhysicalInspectionID = &id
	} else {
		b.QualityControlID = &id
	}
	switch {
	case verdict == VerdictRejected:
		b.Status = BottleStatusRejected
	case b.PhysicalInspectionID != nil && b.QualityControlID != nil:
		b.Status = BottleStatusApproved
	}
	return b, nil
}

// RecomputeBatchStatus folds the member bottles into a batch status:
// any rejection wins, then full approval, then pending quality control once a
// physical inspection exists. Otherwise the current status is kept.
func RecomputeBatchStatus(batch Batch, bottles []Bottle) BatchStatus {
	if len(bottles) == 0 {
		return batch.Status
	}
	allApproved := true
	anyPhysical := false
	for _, b := range bottles {
		if b.Status == BottleStatusRejected {
			return BatchStatusRejected
		}
		if b.PhysicalInspectionID != nil {
			anyPhysical = true
		}
		if b.Status != BottleStatusApproved || b.PhysicalInspectionID == nil || b.QualityControlID == nil {
			allApproved = false
		}
	}
	switch {
	case allApproved:
		return BatchStatusApproved
	case anyPhysical:
		return BatchStatusPendingQC
	default:
		return batch.Status
	}
}

// ManualBatchStatus reports whether status may only be reached by an explicit
// operator action rather than the inspection fold.
func ManualBatchStatus(status BatchStatus) bool {
	return status == BatchStatusCompleted || status == BatchStatusCancelled
}

// CheckManualTransition validates an operator-driven batch status change.
func CheckManualTransition(b Batch, to BatchStatus) error {
	fail := InvalidTransitionError{Entity: EntityBatch, ID: b.ID, From: string(b.Status), To: string(to)}
	if !ManualBatchStatus(to) {
		return fail
	}
	switch b.Status {
	case BatchStatusInProcess, BatchStatusCompleted, BatchStatusPendingQC:
		return nil
	default:
		return fail
	}
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
