package core

import "milkbank/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Donor              = domain.Donor
	DonorStatus        = domain.DonorStatus
	DonationType       = domain.DonationType
	PathologyDetail    = domain.PathologyDetail
	LabTestDetail      = domain.LabTestDetail
	LabResult          = domain.LabResult
	Recipient          = domain.Recipient
	Bottle             = domain.Bottle
	BottleStatus       = domain.BottleStatus
	Batch              = domain.Batch
	BatchStatus        = domain.BatchStatus
	BatchType          = domain.BatchType
	PhysicalFindings   = domain.PhysicalFindings
	PhysicalInspection = domain.PhysicalInspection
	QualityFindings    = domain.QualityFindings
	QualityControl     = domain.QualityControl
	Administration     = domain.Administration
	Discard            = domain.Discard
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityDonor              = domain.EntityDonor
	EntityRecipient          = domain.EntityRecipient
	EntityBottle             = domain.EntityBottle
	EntityBatch              = domain.EntityBatch
	EntityPhysicalInspection = domain.EntityPhysicalInspection
	EntityQualityControl     = domain.EntityQualityControl
	EntityAdministration     = domain.EntityAdministration
	EntityDiscard            = domain.EntityDiscard
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
