package core

import (
	"context"
	"time"

	"milkbank/internal/infra/persistence/memory"
	"milkbank/pkg/domain"
)

// DefaultShelfLife is the validity of an approved batch when no policy is configured.
const DefaultShelfLife = 180 * 24 * time.Hour

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the function result in UTC, or the system time when fn is nil.
func (fn ClockFunc) Now() time.Time {
	if fn == nil {
		return time.Now().UTC()
	}
	return fn().UTC()
}

// Logger is the structured key/value logger used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus captures the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating service operation.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives one entry per mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ExpirationPolicy assigns the expiration of a batch at approval time.
type ExpirationPolicy interface {
	ExpiresAt(batch Batch, approvedAt time.Time) time.Time
}

// ShelfLife expires batches a fixed duration after approval. A non-positive
// value falls back to DefaultShelfLife.
type ShelfLife time.Duration

// ExpiresAt implements ExpirationPolicy.
func (s ShelfLife) ExpiresAt(_ Batch, approvedAt time.Time) time.Time {
	d := time.Duration(s)
	if d <= 0 {
		d = DefaultShelfLife
	}
	return approvedAt.Add(d)
}

type serviceOptions struct {
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	classifier *domain.Classifier
	expiration ExpirationPolicy
}

// Option customises a Service.
type Option func(*serviceOptions)

// WithClock overrides the time source used for record stamps, expiration and audit.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClassifier replaces the eligibility classifier.
func WithClassifier(classifier *domain.Classifier) Option {
	return func(o *serviceOptions) {
		if classifier != nil {
			o.classifier = classifier
		}
	}
}

// WithExpirationPolicy replaces the batch expiration policy.
func WithExpirationPolicy(policy ExpirationPolicy) Option {
	return func(o *serviceOptions) {
		if policy != nil {
			o.expiration = policy
		}
	}
}

func defaultOptions() serviceOptions {
	return serviceOptions{
		logger:     noopLogger{},
		audit:      noopAuditRecorder{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		classifier: domain.DefaultClassifier(),
		expiration: ShelfLife(DefaultShelfLife),
	}
}

// Service exposes the milk bank lifecycle operations. Every mutating call runs
// inside a single store transaction so a failure leaves committed state
// unchanged.
type Service struct {
	store      PersistentStore
	engine     *RulesEngine
	clock      Clock
	now        func() time.Time
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	classifier *domain.Classifier
	expiration ExpirationPolicy
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type nowFuncSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store. When a clock
// is supplied and the store accepts one, the store stamps records with it too.
func NewService(store PersistentStore, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock != nil {
		if setter, ok := store.(nowFuncSetter); ok {
			setter.SetNowFunc(o.clock.Now)
		}
	}
	return &Service{
		store:      store,
		engine:     extractRulesEngine(store),
		clock:      o.clock,
		now:        selectNowFunc(store, o.clock),
		logger:     o.logger,
		audit:      o.audit,
		metrics:    o.metrics,
		tracer:     o.tracer,
		classifier: o.classifier,
		expiration: o.expiration,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine installs the default rule set for the configured classifier.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		o := defaultOptions()
		for _, opt := range opts {
			opt(&o)
		}
		engine = NewDefaultRulesEngine(o.classifier)
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// RulesEngine returns the engine evaluated by the store, when it exposes one.
func (s *Service) RulesEngine() *RulesEngine {
	return s.engine
}

// Classifier returns the eligibility classifier in use.
func (s *Service) Classifier() *domain.Classifier {
	return s.classifier
}

func extractRulesEngine(store PersistentStore) *RulesEngine {
	if p, ok := store.(rulesEngineProvider); ok {
		return p.RulesEngine()
	}
	return nil
}

func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if p, ok := store.(nowFuncProvider); ok {
		if fn := p.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

type operationMeta struct {
	entity EntityType
	action Action
}

var operationCatalog = map[string]operationMeta{
	"register_donor":             {EntityDonor, ActionCreate},
	"update_donor":               {EntityDonor, ActionUpdate},
	"set_donor_admin_status":     {EntityDonor, ActionUpdate},
	"register_recipient":         {EntityRecipient, ActionCreate},
	"collect_bottle":             {EntityBottle, ActionCreate},
	"discard_bottle":             {EntityBottle, ActionUpdate},
	"conform_batch":              {EntityBatch, ActionCreate},
	"record_physical_inspection": {EntityPhysicalInspection, ActionCreate},
	"record_quality_control":     {EntityQualityControl, ActionCreate},
	"set_batch_status":           {EntityBatch, ActionUpdate},
	"administer":                 {EntityAdministration, ActionCreate},
	"discard":                    {EntityDiscard, ActionCreate},
}

// run executes fn in a store transaction and reports the outcome to the
// tracer, metrics, audit and logger sinks. fn returns the id of the primary
// record it touched.
func (s *Service) run(ctx context.Context, op string, fn func(Transaction) (string, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	duration := time.Since(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)
	for _, v := range res.Violations {
		s.logger.Info("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
	}
	if err != nil {
		s.logger.Warn("operation failed", "operation", op, "entity_id", entityID, "error", err.Error())
		s.recordAuditError(ctx, op, entityID, duration, err)
		return res, err
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration_ms", duration.Milliseconds())
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return res, nil
}

// view runs a read-only query with tracing and metrics.
func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	err := s.store.View(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	span.End(err)
	return err
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := operationCatalog[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
