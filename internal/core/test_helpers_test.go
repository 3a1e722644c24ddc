package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"milkbank/pkg/domain"
)

type auditRecorderStub struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *auditRecorderStub) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type loggedLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []loggedLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, loggedLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			n++
		}
	}
	return n
}

// mutableClock lets tests move time forward between operations.
type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ml(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func approvedPhysical() PhysicalFindings {
	return PhysicalFindings{LidOK: true, IntegrityOK: true, SealOK: true, LabelOK: true, Inspector: "inspector"}
}

func rejectedPhysical(reason string) PhysicalFindings {
	return PhysicalFindings{LidOK: false, IntegrityOK: true, SealOK: true, LabelOK: true, RejectionReasons: []string{reason}}
}

func qualityWithAcidity(acidity float64) QualityFindings {
	return QualityFindings{AcidityDornic: acidity, Analyst: "analyst"}
}

func mustRegisterDonor(t *testing.T, svc *Service, in DonorInput) Donor {
	t.Helper()
	if in.Name == "" {
		in.Name = "Donor"
	}
	donor, _, err := svc.RegisterDonor(context.Background(), in)
	if err != nil {
		t.Fatalf("register donor: %v", err)
	}
	return donor
}

func mustRegisterRecipient(t *testing.T, svc *Service, name string) Recipient {
	t.Helper()
	recipient, _, err := svc.RegisterRecipient(context.Background(), Recipient{Name: name})
	if err != nil {
		t.Fatalf("register recipient: %v", err)
	}
	return recipient
}

func mustCollect(t *testing.T, svc *Service, donorID string, volume int64) Bottle {
	t.Helper()
	bottle, _, err := svc.CollectBottle(context.Background(), donorID, ml(volume), BottleMetadata{Location: "fridge-1"})
	if err != nil {
		t.Fatalf("collect bottle: %v", err)
	}
	return bottle
}

// mustBatch collects one bottle per volume from a fresh active donor and
// conforms them into a mature batch.
func mustBatch(t *testing.T, svc *Service, volumes ...int64) (Batch, []Bottle) {
	t.Helper()
	donor := mustRegisterDonor(t, svc, DonorInput{Name: "Batch Donor"})
	ids := make([]string, 0, len(volumes))
	for _, v := range volumes {
		ids = append(ids, mustCollect(t, svc, donor.ID, v).ID)
	}
	batch, _, err := svc.ConformBatch(context.Background(), ids, domain.BatchTypeMature)
	if err != nil {
		t.Fatalf("conform batch: %v", err)
	}
	bottles, err := svc.BatchBottles(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("batch bottles: %v", err)
	}
	return batch, bottles
}

// mustApprovedBatch drives every member bottle through both inspections.
func mustApprovedBatch(t *testing.T, svc *Service, volumes ...int64) Batch {
	t.Helper()
	ctx := context.Background()
	batch, bottles := mustBatch(t, svc, volumes...)
	for _, b := range bottles {
		if _, _, err := svc.RecordPhysicalInspection(ctx, batch.ID, b.ID, approvedPhysical()); err != nil {
			t.Fatalf("physical inspection: %v", err)
		}
		if _, _, err := svc.RecordQualityControl(ctx, batch.ID, b.ID, qualityWithAcidity(6)); err != nil {
			t.Fatalf("quality control: %v", err)
		}
	}
	approved, err := svc.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if approved.Status != domain.BatchStatusApproved {
		t.Fatalf("expected approved batch, got %s", approved.Status)
	}
	return approved
}

func requireErrorAs[E error](t *testing.T, err error) E {
	t.Helper()
	var target E
	if !errors.As(err, &target) {
		t.Fatalf("expected %T, got %v", target, err)
	}
	return target
}
