package domain

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestClassifyCleanDonorIsActive(t *testing.T) {
	res := Classify(Donor{Name: "Ana"})
	if res.Status != DonorStatusActive || res.Rejected() {
		t.Fatalf("expected active verdict, got %+v", res)
	}
}

func TestClassifyAccumulatesReasonsInRuleOrder(t *testing.T) {
	d := Donor{
		ToxicSubstanceUse:          true,
		ChemicalExposure:           true,
		RecentLiveVirusVaccination: true,
		BloodTransfusionRisk:       true,
		Pathologies: []PathologyDetail{
			{Name: "piercings", Present: true},
			{Name: "Tattoos", Present: true},
		},
		LabTests: []LabTestDetail{
			{Name: "Hepatitis C", AfterPregnancy: LabResult{Performed: true, Outcome: "Positivo"}},
			{Name: "HIV", AfterPregnancy: LabResult{Performed: true, Outcome: "REACTIVO"}},
		},
	}
	res := Classify(d)
	want := []string{
		ReasonToxicSubstanceUse,
		ReasonChemicalExposure,
		ReasonRecentVaccination,
		ReasonTransfusionRisk,
		ReasonTattoos,
		ReasonPiercings,
		SerologyReason(LabTestHIV),
		SerologyReason(LabTestHepatitisC),
	}
	if res.Status != DonorStatusRejected {
		t.Fatalf("expected rejected, got %s", res.Status)
	}
	if !reflect.DeepEqual(res.Reasons, want) {
		t.Fatalf("unexpected reasons:\n got %v\nwant %v", res.Reasons, want)
	}
}

func TestClassifySerologyOnlyCountsAfterPregnancy(t *testing.T) {
	cases := []struct {
		name   string
		test   LabTestDetail
		reject bool
	}{
		{"before pregnancy reactive", LabTestDetail{Name: "VDRL", BeforePregnancy: LabResult{Performed: true, Outcome: "REACTIVO"}}, false},
		{"during pregnancy reactive", LabTestDetail{Name: "VDRL", DuringPregnancy: LabResult{Performed: true, Outcome: "REACTIVO"}}, false},
		{"after pregnancy reactive without performed flag", LabTestDetail{Name: "VDRL", AfterPregnancy: LabResult{Outcome: "REACTIVO"}}, true},
		{"after pregnancy non reactive", LabTestDetail{Name: "VDRL", AfterPregnancy: LabResult{Outcome: "No reactivo"}}, false},
		{"after pregnancy reactive", LabTestDetail{Name: "VDRL", AfterPregnancy: LabResult{Performed: true, Outcome: "reactivo"}}, true},
		{"unscreened test", LabTestDetail{Name: "Toxoplasmosis", AfterPregnancy: LabResult{Performed: true, Outcome: "POSITIVE"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Classify(Donor{LabTests: []LabTestDetail{tc.test}})
			if res.Rejected() != tc.reject {
				t.Fatalf("expected rejected=%v, got %+v", tc.reject, res)
			}
		})
	}
}

func TestIsReactive(t *testing.T) {
	cases := map[string]bool{
		"REACTIVO":     true,
		"Reactive":     true,
		"positivo":     true,
		"POSITIVE":     true,
		"+":            true,
		"No reactivo":  false,
		"NO_REACTIVO":  false,
		"Non-reactive": false,
		"nonreactive":  false,
		"not reactive": false,
		"Negativo":     false,
		"NEGATIVE":     false,
		"":             false,
		"pending":      false,

		"POSITIVO (confirmatorio); tamizaje NEGATIVO": true,
		"Negativo, control REACTIVO":                  true,
		"No reactivo / Negativo":                      false,
	}
	for outcome, want := range cases {
		if got := IsReactive(outcome); got != want {
			t.Fatalf("IsReactive(%q) = %v, want %v", outcome, got, want)
		}
	}
}

func TestClassifyIgnoresAbsentPathologies(t *testing.T) {
	res := Classify(Donor{Pathologies: []PathologyDetail{{Name: "Tattoos", Present: false}}})
	if res.Rejected() {
		t.Fatalf("absent pathology must not reject: %+v", res)
	}
}

func TestClassifierBodyModificationWindow(t *testing.T) {
	c := NewClassifier(ClassifierPolicy{BodyModificationWindowMonths: 12})
	cases := []struct {
		name        string
		monthsSince *int
		reject      bool
	}{
		{"unknown recency", nil, true},
		{"recent", intPtr(3), true},
		{"at window", intPtr(12), false},
		{"old", intPtr(30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Donor{Pathologies: []PathologyDetail{{Name: "Tattoos", Present: true, MonthsSince: tc.monthsSince}}}
			if got := c.Classify(d).Rejected(); got != tc.reject {
				t.Fatalf("expected rejected=%v, got %v", tc.reject, got)
			}
		})
	}
	if !Classify(Donor{Pathologies: []PathologyDetail{{Name: "Tattoos", Present: true, MonthsSince: intPtr(60)}}}).Rejected() {
		t.Fatalf("default policy must flag tattoos unconditionally")
	}
}

func TestClassifierApplyForcesAndClearsDonationType(t *testing.T) {
	c := DefaultClassifier()
	d := Donor{DonationType: DonationTypeInternal, AdminStatus: DonorStatusActive, BloodTransfusionRisk: true}
	c.Apply(&d)
	if d.Status != DonorStatusRejected || d.DonationType != DonationTypeRejected {
		t.Fatalf("expected forced rejection, got status=%s type=%s", d.Status, d.DonationType)
	}
	if d.RejectionReason != ReasonTransfusionRisk {
		t.Fatalf("unexpected rejection reason %q", d.RejectionReason)
	}

	d.BloodTransfusionRisk = false
	c.Apply(&d)
	if d.Status != DonorStatusActive {
		t.Fatalf("expected active after clearing flag, got %s", d.Status)
	}
	if d.DonationType != "" || d.RejectionReason != "" || len(d.RejectionReasons) != 0 {
		t.Fatalf("expected rejection artifacts cleared, got %+v", d)
	}
}

func TestClassifierApplyKeepsAdministrativeHold(t *testing.T) {
	d := Donor{AdminStatus: DonorStatusScreening}
	DefaultClassifier().Apply(&d)
	if d.Status != DonorStatusScreening {
		t.Fatalf("expected screening, got %s", d.Status)
	}
	empty := Donor{}
	DefaultClassifier().Apply(&empty)
	if empty.Status != DonorStatusActive || empty.AdminStatus != DonorStatusActive {
		t.Fatalf("expected default active, got %+v", empty)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	d := Donor{ChemicalExposure: true, LabTests: []LabTestDetail{{Name: "HIV", AfterPregnancy: LabResult{Performed: true, Outcome: "+"}}}}
	first := Classify(d)
	DefaultClassifier().Apply(&d)
	second := Classify(d)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("classification changed after apply: %+v vs %+v", first, second)
	}
}

func TestClassifierRuleNames(t *testing.T) {
	names := DefaultClassifier().RuleNames()
	if len(names) != 10 || names[0] != "toxic_substance_use" || names[9] != "serology_hepatitis_c" {
		t.Fatalf("unexpected rule names %v", names)
	}
	if !AdminStatusAllowed(DonorStatusSuspended) || AdminStatusAllowed(DonorStatusRejected) {
		t.Fatalf("unexpected admin status allow-list")
	}
}

func TestCollectionGate(t *testing.T) {
	for _, status := range []DonorStatus{DonorStatusScreening, DonorStatusRejected, DonorStatusInactive, DonorStatusSuspended} {
		d := Donor{Base: Base{ID: "d1"}, Status: status}
		if CanCollect(d) {
			t.Fatalf("status %s must not allow collection", status)
		}
		err := CheckCollectable(d)
		ineligible, ok := err.(IneligibleDonorError)
		if !ok || ineligible.DonorID != "d1" || ineligible.Status != status {
			t.Fatalf("expected IneligibleDonorError, got %v", err)
		}
	}
	if err := CheckCollectable(Donor{Status: DonorStatusActive}); err != nil {
		t.Fatalf("active donor should be collectable: %v", err)
	}
}
