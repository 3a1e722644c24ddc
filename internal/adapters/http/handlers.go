package httpadapter

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"milkbank/internal/core"
)

type donorRequest struct {
	Name                       string                 `json:"name"`
	Document                   string                 `json:"document"`
	BirthDate                  *time.Time             `json:"birth_date"`
	Phone                      string                 `json:"phone"`
	DonationType               core.DonationType      `json:"donation_type"`
	ToxicSubstanceUse          bool                   `json:"toxic_substance_use"`
	ChemicalExposure           bool                   `json:"chemical_exposure"`
	RecentLiveVirusVaccination bool                   `json:"recent_live_virus_vaccination"`
	BloodTransfusionRisk       bool                   `json:"blood_transfusion_risk"`
	Pathologies                []core.PathologyDetail `json:"pathologies"`
	LabTests                   []core.LabTestDetail   `json:"lab_tests"`
	AdminStatus                core.DonorStatus       `json:"admin_status"`
}

type donorPatchRequest struct {
	Name                       *string                 `json:"name"`
	Document                   *string                 `json:"document"`
	BirthDate                  *time.Time              `json:"birth_date"`
	Phone                      *string                 `json:"phone"`
	DonationType               *core.DonationType      `json:"donation_type"`
	ToxicSubstanceUse          *bool                   `json:"toxic_substance_use"`
	ChemicalExposure           *bool                   `json:"chemical_exposure"`
	RecentLiveVirusVaccination *bool                   `json:"recent_live_virus_vaccination"`
	BloodTransfusionRisk       *bool                   `json:"blood_transfusion_risk"`
	Pathologies                *[]core.PathologyDetail `json:"pathologies"`
	LabTests                   *[]core.LabTestDetail   `json:"lab_tests"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type collectRequest struct {
	DonorID     string          `json:"donor_id"`
	Volume      decimal.Decimal `json:"volume"`
	CollectedAt time.Time       `json:"collected_at"`
	Location    string          `json:"location"`
	Notes       string          `json:"notes"`
}

type discardBottleRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type conformRequest struct {
	BottleIDs []string       `json:"bottle_ids"`
	Type      core.BatchType `json:"type"`
}

type administerRequest struct {
	RecipientID string          `json:"recipient_id"`
	Volume      decimal.Decimal `json:"volume"`
	Actor       string          `json:"actor"`
}

type discardRequest struct {
	Volume decimal.Decimal `json:"volume"`
	Reason string          `json:"reason"`
	Actor  string          `json:"actor"`
}

type restoreRequest struct {
	Key string `json:"key"`
}

func (s *Server) listDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := s.svc.ListDonors(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, donors)
}

func (s *Server) registerDonor(w http.ResponseWriter, r *http.Request) {
	var req donorRequest
	if !decode(w, r, &req) {
		return
	}
	donor, res, err := s.svc.RegisterDonor(r.Context(), core.DonorInput{
		Name:                       req.Name,
		Document:                   req.Document,
		BirthDate:                  req.BirthDate,
		Phone:                      req.Phone,
		DonationType:               req.DonationType,
		ToxicSubstanceUse:          req.ToxicSubstanceUse,
		ChemicalExposure:           req.ChemicalExposure,
		RecentLiveVirusVaccination: req.RecentLiveVirusVaccination,
		BloodTransfusionRisk:       req.BloodTransfusionRisk,
		Pathologies:                req.Pathologies,
		LabTests:                   req.LabTests,
		AdminStatus:                req.AdminStatus,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, donor, res)
}

func (s *Server) getDonor(w http.ResponseWriter, r *http.Request) {
	donor, err := s.svc.GetDonor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, donor)
}

func (s *Server) updateDonor(w http.ResponseWriter, r *http.Request) {
	var req donorPatchRequest
	if !decode(w, r, &req) {
		return
	}
	donor, res, err := s.svc.UpdateDonor(r.Context(), chi.URLParam(r, "id"), core.DonorPatch{
		Name:                       req.Name,
		Document:                   req.Document,
		BirthDate:                  req.BirthDate,
		Phone:                      req.Phone,
		DonationType:               req.DonationType,
		ToxicSubstanceUse:          req.ToxicSubstanceUse,
		ChemicalExposure:           req.ChemicalExposure,
		RecentLiveVirusVaccination: req.RecentLiveVirusVaccination,
		BloodTransfusionRisk:       req.BloodTransfusionRisk,
		Pathologies:                req.Pathologies,
		LabTests:                   req.LabTests,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, donor, res)
}

func (s *Server) setDonorStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	donor, res, err := s.svc.SetDonorAdminStatus(r.Context(), chi.URLParam(r, "id"), core.DonorStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, donor, res)
}

func (s *Server) listRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := s.svc.ListRecipients(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, recipients)
}

func (s *Server) registerRecipient(w http.ResponseWriter, r *http.Request) {
	var req core.Recipient
	if !decode(w, r, &req) {
		return
	}
	recipient, res, err := s.svc.RegisterRecipient(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, recipient, res)
}

func (s *Server) getRecipient(w http.ResponseWriter, r *http.Request) {
	recipient, err := s.svc.GetRecipient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, recipient)
}

func (s *Server) listBottles(w http.ResponseWriter, r *http.Request) {
	bottles, err := s.svc.ListBottles(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, bottles)
}

func (s *Server) freeBottles(w http.ResponseWriter, r *http.Request) {
	bottles, err := s.svc.FreeBottles(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, bottles)
}

func (s *Server) collectBottle(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if !decode(w, r, &req) {
		return
	}
	bottle, res, err := s.svc.CollectBottle(r.Context(), req.DonorID, req.Volume, core.BottleMetadata{
		CollectedAt: req.CollectedAt,
		Location:    req.Location,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, bottle, res)
}

func (s *Server) getBottle(w http.ResponseWriter, r *http.Request) {
	bottle, err := s.svc.GetBottle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, bottle)
}

func (s *Server) discardBottle(w http.ResponseWriter, r *http.Request) {
	var req discardBottleRequest
	if !decode(w, r, &req) {
		return
	}
	bottle, res, err := s.svc.DiscardBottle(r.Context(), chi.URLParam(r, "id"), req.Reason, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, bottle, res)
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.svc.ListBatches(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, batches)
}

func (s *Server) availableBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.svc.AvailableBatches(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, batches)
}

func (s *Server) conformBatch(w http.ResponseWriter, r *http.Request) {
	var req conformRequest
	if !decode(w, r, &req) {
		return
	}
	batch, res, err := s.svc.ConformBatch(r.Context(), req.BottleIDs, req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, batch, res)
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.svc.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, batch)
}

func (s *Server) setBatchStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	batch, res, err := s.svc.SetBatchStatus(r.Context(), chi.URLParam(r, "id"), core.BatchStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, batch, res)
}

func (s *Server) batchBottles(w http.ResponseWriter, r *http.Request) {
	bottles, err := s.svc.BatchBottles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, bottles)
}

type ledgerJSON struct {
	Batch           core.Batch            `json:"batch"`
	Administrations []core.Administration `json:"administrations"`
	Discards        []core.Discard        `json:"discards"`
	Debited         decimal.Decimal       `json:"debited"`
}

func (s *Server) batchLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.svc.BatchLedger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, ledgerJSON(ledger))
}

func (s *Server) recordPhysical(w http.ResponseWriter, r *http.Request) {
	var req core.PhysicalFindings
	if !decode(w, r, &req) {
		return
	}
	bottle, res, err := s.svc.RecordPhysicalInspection(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bottleID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, bottle, res)
}

func (s *Server) recordQuality(w http.ResponseWriter, r *http.Request) {
	var req core.QualityFindings
	if !decode(w, r, &req) {
		return
	}
	bottle, res, err := s.svc.RecordQualityControl(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bottleID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusOK, bottle, res)
}

func (s *Server) administer(w http.ResponseWriter, r *http.Request) {
	var req administerRequest
	if !decode(w, r, &req) {
		return
	}
	admin, res, err := s.svc.Administer(r.Context(), req.RecipientID, chi.URLParam(r, "id"), req.Volume, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, admin, res)
}

func (s *Server) discard(w http.ResponseWriter, r *http.Request) {
	var req discardRequest
	if !decode(w, r, &req) {
		return
	}
	d, res, err := s.svc.Discard(r.Context(), chi.URLParam(r, "id"), req.Volume, req.Reason, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeMutation(w, http.StatusCreated, d, res)
}

func (s *Server) listArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := s.archive.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, infos)
}

func (s *Server) createArchive(w http.ResponseWriter, r *http.Request) {
	info, err := s.archive.Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, info)
}

func (s *Server) restoreArchive(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := s.archive.Restore(r.Context(), req.Key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Warn("store state restored from archive", zap.String("key", req.Key), zap.Time("created_at", doc.CreatedAt))
	writeData(w, http.StatusOK, map[string]any{
		"format":     doc.Format,
		"created_at": doc.CreatedAt,
		"donors":     len(doc.State.Donors),
		"bottles":    len(doc.State.Bottles),
		"batches":    len(doc.State.Batches),
	})
}
