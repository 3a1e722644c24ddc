package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"milkbank/pkg/domain"
)

type metricsCall struct {
	operation string
	success   bool
}

type captureMetrics struct {
	calls []metricsCall
}

func (m *captureMetrics) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	m.calls = append(m.calls, metricsCall{operation: operation, success: success})
}

type captureTracer struct {
	started []string
	ended   []error
}

func (c *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	c.started = append(c.started, operation)
	return ctx, captureSpan{tracer: c}
}

type captureSpan struct {
	tracer *captureTracer
}

func (s captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, err)
}

func TestServiceReportsToObservabilitySinks(t *testing.T) {
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	audit := &auditRecorderStub{}
	logger := &captureLogger{}
	svc := NewInMemoryService(nil,
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditRecorder(audit),
		WithLogger(logger),
	)
	ctx := context.Background()

	donor := mustRegisterDonor(t, svc, DonorInput{AdminStatus: domain.DonorStatusScreening})
	if _, _, err := svc.CollectBottle(ctx, donor.ID, ml(10), BottleMetadata{}); err == nil {
		t.Fatalf("expected collection to fail")
	}
	if _, err := svc.ListDonors(ctx); err != nil {
		t.Fatalf("list donors: %v", err)
	}

	wantOps := []string{"register_donor", "collect_bottle", "list_donors"}
	if len(metrics.calls) != len(wantOps) || len(tracer.started) != len(wantOps) {
		t.Fatalf("expected %d observations, got metrics=%d spans=%d", len(wantOps), len(metrics.calls), len(tracer.started))
	}
	for i, op := range wantOps {
		if metrics.calls[i].operation != op || tracer.started[i] != op {
			t.Fatalf("unexpected operation order: %+v %v", metrics.calls, tracer.started)
		}
	}
	if !metrics.calls[0].success || metrics.calls[1].success {
		t.Fatalf("unexpected outcomes %+v", metrics.calls)
	}
	if tracer.ended[0] != nil || tracer.ended[1] == nil {
		t.Fatalf("unexpected span errors %v", tracer.ended)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("reads must not be audited, got %d entries", len(audit.entries))
	}
	if audit.entries[0].Status != AuditStatusSuccess || audit.entries[0].EntityID != donor.ID {
		t.Fatalf("unexpected success entry %+v", audit.entries[0])
	}
	failed := audit.entries[1]
	if failed.Status != AuditStatusError || failed.Entity != EntityBottle || failed.Action != ActionCreate || failed.Error == "" {
		t.Fatalf("unexpected error entry %+v", failed)
	}

	if logger.count("warn", "operation failed") != 1 {
		t.Fatalf("expected one failure log line")
	}
	if logger.count("debug", "operation completed") != 1 {
		t.Fatalf("expected one completion log line")
	}
}

func TestServiceLogsRuleViolations(t *testing.T) {
	logger := &captureLogger{}
	blocking := NewRulesEngine()
	blocking.Register(staticRule{name: "always_block", severity: SeverityBlock})
	svc := NewInMemoryService(blocking, WithLogger(logger))

	_, _, err := svc.RegisterDonor(context.Background(), DonorInput{Name: "Ana"})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if logger.count("info", "rule violation") != 1 {
		t.Fatalf("expected violation to be logged")
	}
}

type staticRule struct {
	name     string
	severity Severity
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: r.severity, Message: "static"}}}, nil
}

func TestWarnViolationsDoNotBlock(t *testing.T) {
	engine := NewDefaultRulesEngine(nil)
	engine.Register(staticRule{name: "advisory", severity: SeverityWarn})
	svc := NewInMemoryService(engine)

	_, res, err := svc.RegisterDonor(context.Background(), DonorInput{Name: "Ana"})
	if err != nil {
		t.Fatalf("register donor: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "advisory" {
		t.Fatalf("expected advisory violation in result, got %+v", res.Violations)
	}
}

func TestRecordAuditSuccessUsesMetadata(t *testing.T) {
	fixed := time.Date(2024, 10, 1, 8, 30, 0, 0, time.UTC)
	recorder := &auditRecorderStub{}
	svc := NewInMemoryService(nil,
		WithAuditRecorder(recorder),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)

	svc.recordAuditSuccess(context.Background(), "administer", "adm-1", 42*time.Millisecond)
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Entity != EntityAdministration || entry.Action != ActionCreate {
		t.Fatalf("unexpected metadata %s/%s", entry.Entity, entry.Action)
	}
	if entry.EntityID != "adm-1" || entry.Duration != 42*time.Millisecond {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if !entry.Timestamp.Equal(fixed) {
		t.Fatalf("expected timestamp %v, got %v", fixed, entry.Timestamp)
	}
}

func TestRecordAuditIgnoresUnknownOperation(t *testing.T) {
	recorder := &auditRecorderStub{}
	svc := NewInMemoryService(nil, WithAuditRecorder(recorder))
	svc.recordAuditSuccess(context.Background(), "unknown_operation", "entity", time.Second)
	svc.recordAuditError(context.Background(), "unknown_operation", "entity", time.Second, errors.New("boom"))
	if len(recorder.entries) != 0 {
		t.Fatalf("expected no audit entries for unknown operation, got %d", len(recorder.entries))
	}
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	svc := NewInMemoryService(nil,
		WithClock(nil),
		WithLogger(nil),
		WithAuditRecorder(nil),
		WithMetricsRecorder(nil),
		WithTracer(nil),
		WithClassifier(nil),
		WithExpirationPolicy(nil),
	)
	if svc.Classifier() != domain.DefaultClassifier() {
		t.Fatalf("expected default classifier")
	}
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("expected noop logger, got %T", svc.logger)
	}
	if _, ok := svc.expiration.(ShelfLife); !ok {
		t.Fatalf("expected shelf life policy, got %T", svc.expiration)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "milkbank_service_metrics_") {
		t.Fatalf("unexpected generated name %s", rec.Name())
	}
	svc := NewInMemoryService(nil, WithMetricsRecorder(rec))
	mustRegisterDonor(t, svc, DonorInput{})
	if _, _, err := svc.RegisterDonor(context.Background(), DonorInput{}); err == nil {
		t.Fatalf("expected validation error")
	}
	rec.Observe(context.Background(), "", true, time.Second)

	if got := rec.Count("register_donor", true); got != 1 {
		t.Fatalf("expected 1 success, got %d", got)
	}
	if got := rec.Count("register_donor", false); got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
	if got := rec.Count("administer", true); got != 0 {
		t.Fatalf("expected no administer calls, got %d", got)
	}
	if rec.DurationMS("register_donor") < 0 {
		t.Fatalf("expected non-negative duration")
	}
	if rec.DurationMS("missing") != 0 {
		t.Fatalf("expected zero duration for unseen operation")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := NewInMemoryService(nil, WithMetricsRecorder(MultiMetricsRecorder{rec, nil}))
	mustRegisterDonor(t, svc, DonorInput{})
	mustRegisterDonor(t, svc, DonorInput{})

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("register_donor", "success")); got != 2 {
		t.Fatalf("expected 2 successful registrations, got %v", got)
	}
	if got := testutil.CollectAndCount(rec.durations); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if _, err := NewPrometheusMetricsRecorder(nil); err != nil {
		t.Fatalf("unregistered recorder: %v", err)
	}
}

func TestJSONTracerWritesEntries(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := NewInMemoryService(nil, WithTracer(tracer))
	mustRegisterDonor(t, svc, DonorInput{})
	if _, err := svc.GetDonor(context.Background(), "missing"); err == nil {
		t.Fatalf("expected missing donor")
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "register_donor" || entries[0].Status != "success" {
		t.Fatalf("unexpected first span %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("unexpected second span %+v", entries[1])
	}

	dec := json.NewDecoder(&buf)
	var decoded TraceEntry
	if err := dec.Decode(&decoded); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if decoded.Operation != "register_donor" {
		t.Fatalf("unexpected decoded span %+v", decoded)
	}

	silent := NewJSONTracer(nil)
	_, span := silent.Start(context.Background(), "op")
	span.End(nil)
	if len(silent.Entries()) != 1 {
		t.Fatalf("expected retained span without writer")
	}
}

func TestNoopLogger(_ *testing.T) {
	logger := noopLogger{}
	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")
	noopSpan{}.End(nil)
	noopAuditRecorder{}.Record(context.Background(), AuditEntry{})
	noopMetricsRecorder{}.Observe(context.Background(), "op", true, 0)
}
