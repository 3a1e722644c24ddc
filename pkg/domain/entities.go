// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by the milk bank lifecycle engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityDonor identifies a donor record.
	EntityDonor EntityType = "donor"
	// EntityRecipient identifies a patient receiving milk.
	EntityRecipient EntityType = "recipient"
	// EntityBottle identifies a single collected container.
	EntityBottle EntityType = "bottle"
	// EntityBatch identifies a pooled lot of bottles.
	EntityBatch EntityType = "batch"
	// EntityPhysicalInspection identifies a physical inspection record.
	EntityPhysicalInspection EntityType = "physical_inspection"
	// EntityQualityControl identifies a microbiological/acidity analysis record.
	EntityQualityControl EntityType = "quality_control"
	// EntityAdministration identifies a ledger debit to a recipient.
	EntityAdministration EntityType = "administration"
	// EntityDiscard identifies a ledger debit for disposal.
	EntityDiscard EntityType = "discard"
)

// DonorStatus is the derived eligibility status of a donor.
type DonorStatus string

// Donor statuses. Only DonorStatusActive donors may have milk collected.
const (
	DonorStatusActive    DonorStatus = "active"
	DonorStatusScreening DonorStatus = "screening"
	DonorStatusRejected  DonorStatus = "rejected"
	DonorStatusInactive  DonorStatus = "inactive"
	DonorStatusSuspended DonorStatus = "suspended"
)

// AdminStatusAllowed reports whether status may be set administratively.
// Rejection is always derived by the classifier.
func AdminStatusAllowed(status DonorStatus) bool {
	switch status {
	case DonorStatusActive, DonorStatusScreening, DonorStatusInactive, DonorStatusSuspended:
		return true
	default:
		return false
	}
}

// DonationType classifies the donation channel.
type DonationType string

// Donation types. DonationTypeRejected is forced by the classifier.
const (
	DonationTypeInternal DonationType = "internal"
	DonationTypeExternal DonationType = "external"
	DonationTypeRejected DonationType = "rejected"
)

// BottleStatus enumerates the per-bottle lifecycle.
type BottleStatus string

// Bottle lifecycle states. Rejected and discarded are terminal.
const (
	BottleStatusCollected BottleStatus = "collected"
	BottleStatusAssigned  BottleStatus = "assigned"
	BottleStatusApproved  BottleStatus = "approved"
	BottleStatusRejected  BottleStatus = "rejected"
	BottleStatusDiscarded BottleStatus = "discarded"
)

// BatchStatus enumerates the batch disposition.
type BatchStatus string

// Batch lifecycle states.
const (
	BatchStatusInProcess BatchStatus = "in_process"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPendingQC BatchStatus = "pending_qc"
	BatchStatusApproved  BatchStatus = "approved"
	BatchStatusRejected  BatchStatus = "rejected"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// BatchType categorises the milk in a batch by lactation phase.
type BatchType string

// Batch types.
const (
	BatchTypeColostrum    BatchType = "colostrum"
	BatchTypeTransitional BatchType = "transitional"
	BatchTypeMature       BatchType = "mature"
	BatchTypeMixed        BatchType = "mixed"
)

// Valid reports whether t is a known batch type.
func (t BatchType) Valid() bool {
	switch t {
	case BatchTypeColostrum, BatchTypeTransitional, BatchTypeMature, BatchTypeMixed:
		return true
	default:
		return false
	}
}

// Verdict is the outcome of an inspection.
type Verdict string

// Inspection verdicts.
const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PathologyDetail records a screened condition. MonthsSince is optional and
// only consulted by recency-aware classifier policies.
type PathologyDetail struct {
	Name        string `json:"name"`
	Present     bool   `json:"present"`
	Detail      string `json:"detail,omitempty"`
	MonthsSince *int   `json:"months_since,omitempty"`
}

// LabResult is a single serology result.
type LabResult struct {
	Performed bool   `json:"performed"`
	Outcome   string `json:"outcome,omitempty"`
}

// LabTestDetail groups the results of one test across the pregnancy timeline.
type LabTestDetail struct {
	Name            string    `json:"name"`
	BeforePregnancy LabResult `json:"before_pregnancy"`
	DuringPregnancy LabResult `json:"during_pregnancy"`
	AfterPregnancy  LabResult `json:"after_pregnancy"`
}

// Donor is a lactating person screened for eligibility. Status,
// RejectionReason and RejectionReasons are derived and never set by callers.
type Donor struct {
	Base
	Name                       string            `json:"name"`
	Document                   string            `json:"document,omitempty"`
	BirthDate                  *time.Time        `json:"birth_date,omitempty"`
	Phone                      string            `json:"phone,omitempty"`
	DonationType               DonationType      `json:"donation_type,omitempty"`
	ToxicSubstanceUse          bool              `json:"toxic_substance_use"`
	ChemicalExposure           bool              `json:"chemical_exposure"`
	RecentLiveVirusVaccination bool              `json:"recent_live_virus_vaccination"`
	BloodTransfusionRisk       bool              `json:"blood_transfusion_risk"`
	Pathologies                []PathologyDetail `json:"pathologies,omitempty"`
	LabTests                   []LabTestDetail   `json:"lab_tests,omitempty"`
	AdminStatus                DonorStatus       `json:"admin_status"`
	Status                     DonorStatus       `json:"status"`
	RejectionReason            string            `json:"rejection_reason,omitempty"`
	RejectionReasons           []string          `json:"rejection_reasons,omitempty"`
}

// Recipient is a patient receiving milk.
type Recipient struct {
	Base
	Name      string     `json:"name"`
	Document  string     `json:"document,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Ward      string     `json:"ward,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// Bottle is a single collected container of milk. Volume is immutable.
type Bottle struct {
	Base
	DonorID              string          `json:"donor_id"`
	Volume               decimal.Decimal `json:"volume"`
	CollectedAt          time.Time       `json:"collected_at"`
	Location             string          `json:"location,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	Status               BottleStatus    `json:"status"`
	BatchID              *string         `json:"batch_id,omitempty"`
	PhysicalInspectionID *string         `json:"physical_inspection_id,omitempty"`
	QualityControlID     *string         `json:"quality_control_id,omitempty"`
	DiscardReason        *string         `json:"discard_reason,omitempty"`
	DiscardedBy          string          `json:"discarded_by,omitempty"`
}

// InBatch reports whether the bottle is a member of batchID.
func (b Bottle) InBatch(batchID string) bool {
	return b.BatchID != nil && *b.BatchID == batchID
}

// Batch is a pooled lot of bottles. BottleIDs and TotalVolume are fixed at
// conformation; CurrentVolume only decreases.
type Batch struct {
	Base
	Code          string          `json:"code"`
	Type          BatchType       `json:"type"`
	BottleIDs     []string        `json:"bottle_ids"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	CurrentVolume decimal.Decimal `json:"current_volume"`
	Status        BatchStatus     `json:"status"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// PhysicalFindings are the inputs of a physical inspection.
type PhysicalFindings struct {
	LidOK            bool     `json:"lid_ok"`
	IntegrityOK      bool     `json:"integrity_ok"`
	SealOK           bool     `json:"seal_ok"`
	LabelOK          bool     `json:"label_ok"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
	Inspector        string   `json:"inspector,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// PhysicalInspection is an append-only inspection record for one bottle.
type PhysicalInspection struct {
	Base
	BatchID  string `json:"batch_id"`
	BottleID string `json:"bottle_id"`
	PhysicalFindings
	Verdict     Verdict   `json:"verdict"`
	InspectedAt time.Time `json:"inspected_at"`
}

// QualityFindings are the inputs of a quality-control analysis. Only
// AcidityDornic and ColiformsPresence drive the verdict.
type QualityFindings struct {
	AcidityDornic     float64  `json:"acidity_dornic"`
	ColiformsPresence bool     `json:"coliforms_presence"`
	Color             string   `json:"color,omitempty"`
	Flavor            string   `json:"flavor,omitempty"`
	Odor              string   `json:"odor,omitempty"`
	Packaging         string   `json:"packaging,omitempty"`
	Crematocrit       *float64 `json:"crematocrit,omitempty"`
	Analyst           string   `json:"analyst,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// QualityControl is an append-only analysis record for one bottle.
type QualityControl struct {
	Base
	BatchID  string `json:"batch_id"`
	BottleID string `json:"bottle_id"`
	QualityFindings
	Verdict    Verdict   `json:"verdict"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Administration is a ledger debit delivering milk to a recipient.
type Administration struct {
	Base
	BatchID     string          `json:"batch_id"`
	RecipientID string          `json:"recipient_id"`
	Volume      decimal.Decimal `json:"volume"`
	Actor       string          `json:"actor"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// Discard is a ledger debit removing milk for disposal.
type Discard struct {
	Base
	BatchID    string          `json:"batch_id"`
	Volume     decimal.Decimal `json:"volume"`
	Reason     string          `json:"reason"`
	Actor      string          `json:"actor"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
// Records are never hard-deleted, so there is no delete action.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
