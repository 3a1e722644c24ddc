package domain

import "strings"

// Rejection reasons reported by the eligibility classifier.
const (
	ReasonToxicSubstanceUse = "toxic substance use"
	ReasonChemicalExposure  = "chemical exposure"
	ReasonRecentVaccination = "recent vaccination"
	ReasonTransfusionRisk   = "transfusion risk"
	ReasonTattoos           = "tattoos"
	ReasonPiercings         = "piercings"
)

// Pathology and serology names screened by the classifier.
const (
	PathologyTattoos   = "Tattoos"
	PathologyPiercings = "Piercings"

	LabTestHIV        = "HIV"
	LabTestVDRL       = "VDRL"
	LabTestHepatitisB = "Hepatitis B"
	LabTestHepatitisC = "Hepatitis C"
)

// ScreenedLabTests lists the serology tests checked after pregnancy.
var ScreenedLabTests = []string{LabTestHIV, LabTestVDRL, LabTestHepatitisB, LabTestHepatitisC}

// SerologyReason formats the rejection reason for a reactive test.
func SerologyReason(test string) string {
	return "reactive serology: " + test
}

// ClassifierPolicy tunes the eligibility rules.
type ClassifierPolicy struct {
	// BodyModificationWindowMonths limits tattoo and piercing exclusions to
	// entries more recent than the window. Zero flags every present entry.
	BodyModificationWindowMonths int
}

// Classification is the classifier verdict for a donor.
type Classification struct {
	Status  DonorStatus
	Reasons []string
}

// Rejected reports whether any rule fired.
func (c Classification) Rejected() bool { return len(c.Reasons) > 0 }

// Reason joins the reasons into a single display string.
func (c Classification) Reason() string { return strings.Join(c.Reasons, "; ") }

type eligibilityRule struct {
	name   string
	reason string
	fires  func(Donor) bool
}

// Classifier evaluates the donor exclusion rules. It is pure and safe for
// concurrent use.
type Classifier struct {
	policy ClassifierPolicy
	rules  []eligibilityRule
}

// NewClassifier builds a classifier for the given policy.
func NewClassifier(policy ClassifierPolicy) *Classifier {
	c := &Classifier{policy: policy}
	c.rules = []eligibilityRule{
		{name: "toxic_substance_use", reason: ReasonToxicSubstanceUse, fires: func(d Donor) bool { return d.ToxicSubstanceUse }},
		{name: "chemical_exposure", reason: ReasonChemicalExposure, fires: func(d Donor) bool { return d.ChemicalExposure }},
		{name: "recent_vaccination", reason: ReasonRecentVaccination, fires: func(d Donor) bool { return d.RecentLiveVirusVaccination }},
		{name: "transfusion_risk", reason: ReasonTransfusionRisk, fires: func(d Donor) bool { return d.BloodTransfusionRisk }},
		{name: "tattoos", reason: ReasonTattoos, fires: c.bodyModification(PathologyTattoos)},
		{name: "piercings", reason: ReasonPiercings, fires: c.bodyModification(PathologyPiercings)},
	}
	for _, test := range ScreenedLabTests {
		c.rules = append(c.rules, eligibilityRule{
			name:   "serology_" + strings.ToLower(strings.ReplaceAll(test, " ", "_")),
			reason: SerologyReason(test),
			fires:  reactiveAfterPregnancy(test),
		})
	}
	return c
}

var defaultClassifier = NewClassifier(ClassifierPolicy{})

// DefaultClassifier returns the classifier with the default policy.
func DefaultClassifier() *Classifier { return defaultClassifier }

// Classify evaluates d with the default policy.
func Classify(d Donor) Classification { return defaultClassifier.Classify(d) }

// Policy returns the classifier's policy.
func (c *Classifier) Policy() ClassifierPolicy { return c.policy }

// Classify evaluates every rule independently and accumulates the reasons in
// rule order.
func (c *Classifier) Classify(d Donor) Classification {
	var reasons []string
	for _, rule := range c.rules {
		if rule.fires(d) {
			reasons = append(reasons, rule.reason)
		}
	}
	if len(reasons) > 0 {
		return Classification{Status: DonorStatusRejected, Reasons: reasons}
	}
	return Classification{Status: DonorStatusActive}
}

// Apply classifies d and writes the derived fields. A rejected donor has its
// donation type forced to rejected; a donor that is no longer rejected falls
// back to its administrative status and loses the forced donation type.
func (c *Classifier) Apply(d *Donor) Classification {
	res := c.Classify(*d)
	if res.Rejected() {
		d.Status = DonorStatusRejected
		d.DonationType = DonationTypeRejected
		d.RejectionReasons = append([]string(nil), res.Reasons...)
		d.RejectionReason = res.Reason()
		return res
	}
	if d.AdminStatus == "" {
		d.AdminStatus = DonorStatusActive
	}
	if d.DonationType == DonationTypeRejected {
		d.DonationType = ""
	}
	d.Status = d.AdminStatus
	d.RejectionReasons = nil
	d.RejectionReason = ""
	return res
}

func (c *Classifier) bodyModification(name string) func(Donor) bool {
	return func(d Donor) bool {
		for _, p := range d.Pathologies {
			if !p.Present || !strings.EqualFold(strings.TrimSpace(p.Name), name) {
				continue
			}
			window := c.policy.BodyModificationWindowMonths
			if window <= 0 || p.MonthsSince == nil || *p.MonthsSince < window {
				return true
			}
		}
		return false
	}
}

func reactiveAfterPregnancy(test string) func(Donor) bool {
	return func(d Donor) bool {
		for _, lt := range d.LabTests {
			if !strings.EqualFold(strings.TrimSpace(lt.Name), test) {
				continue
			}
			if IsReactive(lt.AfterPregnancy.Outcome) {
				return true
			}
		}
		return false
	}
}

var (
	negatedOutcomes = []string{"NO REACTIVO", "NO_REACTIVO", "NOREACTIVO", "NON-REACTIVE", "NONREACTIVE", "NON REACTIVE", "NOT REACTIVE", "NEGATIVO", "NEGATIVE"}
	reactiveMarkers = []string{"REACTIVO", "POSITIVO", "REACTIVE", "POSITIVE", "+"}
)

// IsReactive reports whether a free-text serology outcome denotes a reactive
// result. A negated phrase such as "No reactivo" only cancels itself, so a
// reactive marker elsewhere in the text still counts.
func IsReactive(outcome string) bool {
	norm := strings.ToUpper(strings.TrimSpace(outcome))
	if norm == "" {
		return false
	}
	for _, neg := range negatedOutcomes {
		norm = strings.ReplaceAll(norm, neg, " ")
	}
	for _, marker := range reactiveMarkers {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}

// RuleNames lists the classifier rules in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, 0, len(c.rules))
	for _, rule := range c.rules {
		names = append(names, rule.name)
	}
	return names
}
