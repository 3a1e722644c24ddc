// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments, and as the working set of the
// snapshot-backed durable stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"milkbank/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Donor aliases domain.Donor for in-memory persistence operations.
	Donor = domain.Donor
	// PathologyDetail aliases domain.PathologyDetail.
	PathologyDetail = domain.PathologyDetail
	// LabTestDetail aliases domain.LabTestDetail.
	LabTestDetail = domain.LabTestDetail
	// Recipient aliases domain.Recipient.
	Recipient = domain.Recipient
	// Bottle aliases domain.Bottle.
	Bottle = domain.Bottle
	// Batch aliases domain.Batch.
	Batch = domain.Batch
	// PhysicalInspection aliases domain.PhysicalInspection.
	PhysicalInspection = domain.PhysicalInspection
	// QualityControl aliases domain.QualityControl.
	QualityControl = domain.QualityControl
	// Administration aliases domain.Administration.
	Administration = domain.Administration
	// Discard aliases domain.Discard.
	Discard = domain.Discard
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	donors          map[string]Donor
	recipients      map[string]Recipient
	bottles         map[string]Bottle
	batches         map[string]Batch
	physical        map[string]PhysicalInspection
	quality         map[string]QualityControl
	administrations map[string]Administration
	discards        map[string]Discard
}

func newMemoryState() memoryState {
	return memoryState{
		donors:          make(map[string]Donor),
		recipients:      make(map[string]Recipient),
		bottles:         make(map[string]Bottle),
		batches:         make(map[string]Batch),
		physical:        make(map[string]PhysicalInspection),
		quality:         make(map[string]QualityControl),
		administrations: make(map[string]Administration),
		discards:        make(map[string]Discard),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.donors {
		out.donors[k] = cloneDonor(v)
	}
	for k, v := range s.recipients {
		out.recipients[k] = cloneRecipient(v)
	}
	for k, v := range s.bottles {
		out.bottles[k] = cloneBottle(v)
	}
	for k, v := range s.batches {
		out.batches[k] = cloneBatch(v)
	}
	for k, v := range s.physical {
		out.physical[k] = clonePhysical(v)
	}
	for k, v := range s.quality {
		out.quality[k] = cloneQuality(v)
	}
	for k, v := range s.administrations {
		out.administrations[k] = v
	}
	for k, v := range s.discards {
		out.discards[k] = v
	}
	return out
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn succeeds and no blocking rule
// violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp assigned to records written by this transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

// CreateDonor stores a new donor.
func (tx *transaction) CreateDonor(d Donor) (Donor, error) {
	tx.stamp(&d.Base)
	if _, exists := tx.state.donors[d.ID]; exists {
		return Donor{}, fmt.Errorf("donor %q already exists", d.ID)
	}
	tx.state.donors[d.ID] = cloneDonor(d)
	tx.recordChange(Change{Entity: domain.EntityDonor, Action: domain.ActionCreate, After: cloneDonor(d)})
	return cloneDonor(d), nil
}

// UpdateDonor mutates a donor using the provided mutator function.
func (tx *transaction) UpdateDonor(id string, mutator func(*Donor) error) (Donor, error) {
	current, ok := tx.state.donors[id]
	if !ok {
		return Donor{}, domain.EntityNotFoundError{Entity: domain.EntityDonor, ID: id}
	}
	before := cloneDonor(current)
	current = cloneDonor(current)
	if err := mutator(&current); err != nil {
		return Donor{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.donors[id] = cloneDonor(current)
	tx.recordChange(Change{Entity: domain.EntityDonor, Action: domain.ActionUpdate, Before: before, After: cloneDonor(current)})
	return cloneDonor(current), nil
}

// FindDonor looks up a donor within the transaction scope.
func (tx *transaction) FindDonor(id string) (Donor, bool) {
	d, ok := tx.state.donors[id]
	if !ok {
		return Donor{}, false
	}
	return cloneDonor(d), true
}

// CreateRecipient stores a new recipient.
func (tx *transaction) CreateRecipient(r Recipient) (Recipient, error) {
	tx.stamp(&r.Base)
	if _, exists := tx.state.recipients[r.ID]; exists {
		return Recipient{}, fmt.Errorf("recipient %q already exists", r.ID)
	}
	tx.state.recipients[r.ID] = cloneRecipient(r)
	tx.recordChange(Change{Entity: domain.EntityRecipient, Action: domain.ActionCreate, After: cloneRecipient(r)})
	return cloneRecipient(r), nil
}

// FindRecipient looks up a recipient within the transaction scope.
func (tx *transaction) FindRecipient(id string) (Recipient, bool) {
	r, ok := tx.state.recipients[id]
	if !ok {
		return Recipient{}, false
	}
	return cloneRecipient(r), true
}

// CreateBottle stores a newly collected bottle.
func (tx *transaction) CreateBottle(b Bottle) (Bottle, error) {
	tx.stamp(&b.Base)
	if _, exists := tx.state.bottles[b.ID]; exists {
		return Bottle{}, fmt.Errorf("bottle %q already exists", b.ID)
	}
	tx.state.bottles[b.ID] = cloneBottle(b)
	tx.recordChange(Change{Entity: domain.EntityBottle, Action: domain.ActionCreate, After: cloneBottle(b)})
	return cloneBottle(b), nil
}

// UpdateBottle mutates a bottle. Volume and donor are immutable.
func (tx *transaction) UpdateBottle(id string, mutator func(*Bottle) error) (Bottle, error) {
	current, ok := tx.state.bottles[id]
	if !ok {
		return Bottle{}, domain.EntityNotFoundError{Entity: domain.EntityBottle, ID: id}
	}
	before := cloneBottle(current)
	current = cloneBottle(current)
	if err := mutator(&current); err != nil {
		return Bottle{}, err
	}
	if !current.Volume.Equal(before.Volume) || current.DonorID != before.DonorID {
		return Bottle{}, fmt.Errorf("bottle %q volume and donor are immutable", id)
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.bottles[id] = cloneBottle(current)
	tx.recordChange(Change{Entity: domain.EntityBottle, Action: domain.ActionUpdate, Before: before, After: cloneBottle(current)})
	return cloneBottle(current), nil
}

// FindBottle looks up a bottle within the transaction scope.
func (tx *transaction) FindBottle(id string) (Bottle, bool) {
	b, ok := tx.state.bottles[id]
	if !ok {
		return Bottle{}, false
	}
	return cloneBottle(b), true
}

// CreateBatch stores a newly conformed batch.
func (tx *transaction) CreateBatch(b Batch) (Batch, error) {
	tx.stamp(&b.Base)
	if _, exists := tx.state.batches[b.ID]; exists {
		return Batch{}, fmt.Errorf("batch %q already exists", b.ID)
	}
	tx.state.batches[b.ID] = cloneBatch(b)
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionCreate, After: cloneBatch(b)})
	return cloneBatch(b), nil
}

// UpdateBatch mutates a batch. Bottle membership and total volume are immutable.
func (tx *transaction) UpdateBatch(id string, mutator func(*Batch) error) (Batch, error) {
	current, ok := tx.state.batches[id]
	if !ok {
		return Batch{}, domain.EntityNotFoundError{Entity: domain.EntityBatch, ID: id}
	}
	before := cloneBatch(current)
	current = cloneBatch(current)
	if err := mutator(&current); err != nil {
		return Batch{}, err
	}
	if !current.TotalVolume.Equal(before.TotalVolume) || !sameStrings(current.BottleIDs, before.BottleIDs) {
		return Batch{}, fmt.Errorf("batch %q membership and total volume are immutable", id)
	}
	current.ID = id
	current.Code = before.Code
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.batches[id] = cloneBatch(current)
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionUpdate, Before: before, After: cloneBatch(current)})
	return cloneBatch(current), nil
}

// FindBatch looks up a batch within the transaction scope.
func (tx *transaction) FindBatch(id string) (Batch, bool) {
	b, ok := tx.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return cloneBatch(b), true
}

// CreatePhysicalInspection appends a physical inspection record.
func (tx *transaction) CreatePhysicalInspection(p PhysicalInspection) (PhysicalInspection, error) {
	tx.stamp(&p.Base)
	if _, exists := tx.state.physical[p.ID]; exists {
		return PhysicalInspection{}, fmt.Errorf("physical inspection %q already exists", p.ID)
	}
	tx.state.physical[p.ID] = clonePhysical(p)
	tx.recordChange(Change{Entity: domain.EntityPhysicalInspection, Action: domain.ActionCreate, After: clonePhysical(p)})
	return clonePhysical(p), nil
}

// CreateQualityControl appends a quality-control record.
func (tx *transaction) CreateQualityControl(q QualityControl) (QualityControl, error) {
	tx.stamp(&q.Base)
	if _, exists := tx.state.quality[q.ID]; exists {
		return QualityControl{}, fmt.Errorf("quality control %q already exists", q.ID)
	}
	tx.state.quality[q.ID] = cloneQuality(q)
	tx.recordChange(Change{Entity: domain.EntityQualityControl, Action: domain.ActionCreate, After: cloneQuality(q)})
	return cloneQuality(q), nil
}

// CreateAdministration appends an administration debit.
func (tx *transaction) CreateAdministration(a Administration) (Administration, error) {
	tx.stamp(&a.Base)
	if _, exists := tx.state.administrations[a.ID]; exists {
		return Administration{}, fmt.Errorf("administration %q already exists", a.ID)
	}
	tx.state.administrations[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityAdministration, Action: domain.ActionCreate, After: a})
	return a, nil
}

// CreateDiscard appends a discard debit.
func (tx *transaction) CreateDiscard(d Discard) (Discard, error) {
	tx.stamp(&d.Base)
	if _, exists := tx.state.discards[d.ID]; exists {
		return Discard{}, fmt.Errorf("discard %q already exists", d.ID)
	}
	tx.state.discards[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityDiscard, Action: domain.ActionCreate, After: d})
	return d, nil
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListDonors returns all donors in creation order.
func (v transactionView) ListDonors() []Donor {
	return listSorted(v.state.donors, cloneDonor, func(d Donor) domain.Base { return d.Base })
}

// ListRecipients returns all recipients in creation order.
func (v transactionView) ListRecipients() []Recipient {
	return listSorted(v.state.recipients, cloneRecipient, func(r Recipient) domain.Base { return r.Base })
}

// ListBottles returns all bottles in creation order.
func (v transactionView) ListBottles() []Bottle {
	return listSorted(v.state.bottles, cloneBottle, func(b Bottle) domain.Base { return b.Base })
}

// ListBatches returns all batches in creation order.
func (v transactionView) ListBatches() []Batch {
	return listSorted(v.state.batches, cloneBatch, func(b Batch) domain.Base { return b.Base })
}

// ListPhysicalInspections returns all physical inspections in creation order.
func (v transactionView) ListPhysicalInspections() []PhysicalInspection {
	return listSorted(v.state.physical, clonePhysical, func(p PhysicalInspection) domain.Base { return p.Base })
}

// ListQualityControls returns all quality-control records in creation order.
func (v transactionView) ListQualityControls() []QualityControl {
	return listSorted(v.state.quality, cloneQuality, func(q QualityControl) domain.Base { return q.Base })
}

// ListAdministrations returns all administrations in creation order.
func (v transactionView) ListAdministrations() []Administration {
	return listSorted(v.state.administrations, identity[Administration], func(a Administration) domain.Base { return a.Base })
}

// ListDiscards returns all discards in creation order.
func (v transactionView) ListDiscards() []Discard {
	return listSorted(v.state.discards, identity[Discard], func(d Discard) domain.Base { return d.Base })
}

// FindDonor retrieves a donor by ID from the snapshot.
func (v transactionView) FindDonor(id string) (Donor, bool) {
	d, ok := v.state.donors[id]
	if !ok {
		return Donor{}, false
	}
	return cloneDonor(d), true
}

// FindRecipient retrieves a recipient by ID from the snapshot.
func (v transactionView) FindRecipient(id string) (Recipient, bool) {
	r, ok := v.state.recipients[id]
	if !ok {
		return Recipient{}, false
	}
	return cloneRecipient(r), true
}

// FindBottle retrieves a bottle by ID from the snapshot.
func (v transactionView) FindBottle(id string) (Bottle, bool) {
	b, ok := v.state.bottles[id]
	if !ok {
		return Bottle{}, false
	}
	return cloneBottle(b), true
}

// FindBatch retrieves a batch by ID from the snapshot.
func (v transactionView) FindBatch(id string) (Batch, bool) {
	b, ok := v.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return cloneBatch(b), true
}

func listSorted[T any](items map[string]T, clone func(T) T, base func(T) domain.Base) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, clone(item))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := base(out[i]), base(out[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func identity[T any](v T) T { return v }

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
