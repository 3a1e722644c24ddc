package core

import (
	"context"
	"strings"
	"time"

	"milkbank/pkg/domain"
)

// DonorInput carries the caller-supplied fields of a new donor. Status and
// rejection reasons are always derived.
type DonorInput struct {
	Name                       string
	Document                   string
	BirthDate                  *time.Time
	Phone                      string
	DonationType               DonationType
	ToxicSubstanceUse          bool
	ChemicalExposure           bool
	RecentLiveVirusVaccination bool
	BloodTransfusionRisk       bool
	Pathologies                []PathologyDetail
	LabTests                   []LabTestDetail
	AdminStatus                DonorStatus
}

// DonorPatch is a partial donor update; nil fields are left untouched.
type DonorPatch struct {
	Name                       *string
	Document                   *string
	BirthDate                  *time.Time
	Phone                      *string
	DonationType               *DonationType
	ToxicSubstanceUse          *bool
	ChemicalExposure           *bool
	RecentLiveVirusVaccination *bool
	BloodTransfusionRisk       *bool
	Pathologies                *[]PathologyDetail
	LabTests                   *[]LabTestDetail
}

func (p DonorPatch) apply(d *Donor) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Document != nil {
		d.Document = *p.Document
	}
	if p.BirthDate != nil {
		bd := *p.BirthDate
		d.BirthDate = &bd
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.DonationType != nil {
		d.DonationType = *p.DonationType
	}
	if p.ToxicSubstanceUse != nil {
		d.ToxicSubstanceUse = *p.ToxicSubstanceUse
	}
	if p.ChemicalExposure != nil {
		d.ChemicalExposure = *p.ChemicalExposure
	}
	if p.RecentLiveVirusVaccination != nil {
		d.RecentLiveVirusVaccination = *p.RecentLiveVirusVaccination
	}
	if p.BloodTransfusionRisk != nil {
		d.BloodTransfusionRisk = *p.BloodTransfusionRisk
	}
	if p.Pathologies != nil {
		d.Pathologies = append([]PathologyDetail(nil), (*p.Pathologies)...)
	}
	if p.LabTests != nil {
		d.LabTests = append([]LabTestDetail(nil), (*p.LabTests)...)
	}
}

func validateDonationType(t DonationType) error {
	switch t {
	case "", domain.DonationTypeInternal, domain.DonationTypeExternal:
		return nil
	default:
		return domain.ValidationError{Field: "donation_type", Reason: "must be internal or external"}
	}
}

// RegisterDonor classifies and stores a new donor.
func (s *Service) RegisterDonor(ctx context.Context, in DonorInput) (Donor, Result, error) {
	var created Donor
	res, err := s.run(ctx, "register_donor", func(tx Transaction) (string, error) {
		if strings.TrimSpace(in.Name) == "" {
			return "", domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if err := validateDonationType(in.DonationType); err != nil {
			return "", err
		}
		if in.AdminStatus != "" && !domain.AdminStatusAllowed(in.AdminStatus) {
			return "", domain.ValidationError{Field: "admin_status", Reason: "cannot be set to " + string(in.AdminStatus)}
		}
		d := Donor{
			Name:                       in.Name,
			Document:                   in.Document,
			BirthDate:                  in.BirthDate,
			Phone:                      in.Phone,
			DonationType:               in.DonationType,
			ToxicSubstanceUse:          in.ToxicSubstanceUse,
			ChemicalExposure:           in.ChemicalExposure,
			RecentLiveVirusVaccination: in.RecentLiveVirusVaccination,
			BloodTransfusionRisk:       in.BloodTransfusionRisk,
			Pathologies:                append([]PathologyDetail(nil), in.Pathologies...),
			LabTests:                   append([]LabTestDetail(nil), in.LabTests...),
			AdminStatus:                in.AdminStatus,
		}
		s.classifier.Apply(&d)
		var err error
		created, err = tx.CreateDonor(d)
		return created.ID, err
	})
	return created, res, err
}

// UpdateDonor merges patch into the stored donor and re-runs the classifier
// against the merged record, so any edit picks up the current policy.
func (s *Service) UpdateDonor(ctx context.Context, id string, patch DonorPatch) (Donor, Result, error) {
	var updated Donor
	res, err := s.run(ctx, "update_donor", func(tx Transaction) (string, error) {
		if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
			return id, domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if patch.DonationType != nil {
			if err := validateDonationType(*patch.DonationType); err != nil {
				return id, err
			}
		}
		var err error
		updated, err = tx.UpdateDonor(id, func(d *Donor) error {
			patch.apply(d)
			s.classifier.Apply(d)
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// SetDonorAdminStatus places or lifts an administrative hold. A donor the
// classifier rejects stays rejected whatever the administrative status.
func (s *Service) SetDonorAdminStatus(ctx context.Context, id string, status DonorStatus) (Donor, Result, error) {
	var updated Donor
	res, err := s.run(ctx, "set_donor_admin_status", func(tx Transaction) (string, error) {
		if !domain.AdminStatusAllowed(status) {
			return id, domain.ValidationError{Field: "admin_status", Reason: "cannot be set to " + string(status)}
		}
		var err error
		updated, err = tx.UpdateDonor(id, func(d *Donor) error {
			d.AdminStatus = status
			s.classifier.Apply(d)
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// RegisterRecipient stores a patient that can receive milk.
func (s *Service) RegisterRecipient(ctx context.Context, recipient Recipient) (Recipient, Result, error) {
	var created Recipient
	res, err := s.run(ctx, "register_recipient", func(tx Transaction) (string, error) {
		if strings.TrimSpace(recipient.Name) == "" {
			return "", domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		var err error
		created, err = tx.CreateRecipient(recipient)
		return created.ID, err
	})
	return created, res, err
}

// GetDonor returns a donor by id.
func (s *Service) GetDonor(ctx context.Context, id string) (Donor, error) {
	var out Donor
	err := s.view(ctx, "get_donor", func(v TransactionView) error {
		d, ok := v.FindDonor(id)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityDonor, ID: id}
		}
		out = d
		return nil
	})
	return out, err
}

// ListDonors returns every donor in registration order.
func (s *Service) ListDonors(ctx context.Context) ([]Donor, error) {
	var out []Donor
	err := s.view(ctx, "list_donors", func(v TransactionView) error {
		out = v.ListDonors()
		return nil
	})
	return out, err
}

// GetRecipient returns a recipient by id.
func (s *Service) GetRecipient(ctx context.Context, id string) (Recipient, error) {
	var out Recipient
	err := s.view(ctx, "get_recipient", func(v TransactionView) error {
		r, ok := v.FindRecipient(id)
		if !ok {
			return domain.EntityNotFoundError{Entity: EntityRecipient, ID: id}
		}
		out = r
		return nil
	})
	return out, err
}

// ListRecipients returns every recipient in registration order.
func (s *Service) ListRecipients(ctx context.Context) ([]Recipient, error) {
	var out []Recipient
	err := s.view(ctx, "list_recipients", func(v TransactionView) error {
		out = v.ListRecipients()
		return nil
	})
	return out, err
}
