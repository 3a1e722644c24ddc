package memory

func cloneDonor(d Donor) Donor {
	cp := d
	if d.BirthDate != nil {
		t := *d.BirthDate
		cp.BirthDate = &t
	}
	if d.Pathologies != nil {
		cp.Pathologies = make([]PathologyDetail, len(d.Pathologies))
		for i, p := range d.Pathologies {
			cp.Pathologies[i] = p
			cp.Pathologies[i].MonthsSince = cloneInt(p.MonthsSince)
		}
	}
	if d.LabTests != nil {
		cp.LabTests = append([]LabTestDetail(nil), d.LabTests...)
	}
	if d.RejectionReasons != nil {
		cp.RejectionReasons = append([]string(nil), d.RejectionReasons...)
	}
	return cp
}

func cloneRecipient(r Recipient) Recipient {
	cp := r
	if r.BirthDate != nil {
		t := *r.BirthDate
		cp.BirthDate = &t
	}
	return cp
}

func cloneBottle(b Bottle) Bottle {
	cp := b
	cp.BatchID = cloneString(b.BatchID)
	cp.PhysicalInspectionID = cloneString(b.PhysicalInspectionID)
	cp.QualityControlID = cloneString(b.QualityControlID)
	cp.DiscardReason = cloneString(b.DiscardReason)
	return cp
}

func cloneBatch(b Batch) Batch {
	cp := b
	if b.BottleIDs != nil {
		cp.BottleIDs = append([]string(nil), b.BottleIDs...)
	}
	if b.ApprovedAt != nil {
		t := *b.ApprovedAt
		cp.ApprovedAt = &t
	}
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		cp.ExpiresAt = &t
	}
	return cp
}

func clonePhysical(p PhysicalInspection) PhysicalInspection {
	cp := p
	if p.RejectionReasons != nil {
		cp.RejectionReasons = append([]string(nil), p.RejectionReasons...)
	}
	return cp
}

func cloneQuality(q QualityControl) QualityControl {
	cp := q
	if q.Crematocrit != nil {
		v := *q.Crematocrit
		cp.Crematocrit = &v
	}
	return cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
