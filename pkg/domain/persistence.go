package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Records are append-only or updated in
// place; nothing is deleted.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time
	CreateDonor(Donor) (Donor, error)
	UpdateDonor(id string, mutator func(*Donor) error) (Donor, error)
	FindDonor(id string) (Donor, bool)
	CreateRecipient(Recipient) (Recipient, error)
	FindRecipient(id string) (Recipient, bool)
	CreateBottle(Bottle) (Bottle, error)
	UpdateBottle(id string, mutator func(*Bottle) error) (Bottle, error)
	FindBottle(id string) (Bottle, bool)
	CreateBatch(Batch) (Batch, error)
	UpdateBatch(id string, mutator func(*Batch) error) (Batch, error)
	FindBatch(id string) (Batch, bool)
	CreatePhysicalInspection(PhysicalInspection) (PhysicalInspection, error)
	CreateQualityControl(QualityControl) (QualityControl, error)
	CreateAdministration(Administration) (Administration, error)
	CreateDiscard(Discard) (Discard, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries. List results are ordered by creation time then ID.
type TransactionView interface {
	ListDonors() []Donor
	ListRecipients() []Recipient
	ListBottles() []Bottle
	ListBatches() []Batch
	ListPhysicalInspections() []PhysicalInspection
	ListQualityControls() []QualityControl
	ListAdministrations() []Administration
	ListDiscards() []Discard
	FindDonor(id string) (Donor, bool)
	FindRecipient(id string) (Recipient, bool)
	FindBottle(id string) (Bottle, bool)
	FindBatch(id string) (Batch, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Every
// mutating call is serialized and either commits fully or not at all.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
