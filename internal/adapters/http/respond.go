package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"milkbank/internal/archive"
	"milkbank/internal/blob"
	"milkbank/internal/core"
	"milkbank/pkg/domain"
)

const maxBodyBytes = 1 << 20

type violationJSON struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entity   string `json:"entity,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

func violations(res core.Result) []violationJSON {
	out := make([]violationJSON, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, violationJSON{
			Rule:     v.Rule,
			Severity: string(v.Severity),
			Message:  v.Message,
			Entity:   string(v.Entity),
			EntityID: v.EntityID,
		})
	}
	return out
}

type mutationResponse struct {
	Data       any             `json:"data"`
	Violations []violationJSON `json:"violations"`
}

type errorResponse struct {
	Error      string          `json:"error"`
	Violations []violationJSON `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeMutation(w http.ResponseWriter, status int, data any, res core.Result) {
	writeJSON(w, status, mutationResponse{Data: data, Violations: violations(res)})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound   domain.EntityNotFoundError
		validation domain.ValidationError
		transition domain.InvalidTransitionError
		ineligible domain.IneligibleDonorError
		volume     domain.InsufficientVolumeError
		unavail    domain.BatchUnavailableError
		inspection domain.InvalidInspectionInputError
		blocked    domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, blob.ErrNotFound), errors.Is(err, archive.ErrNoArchive):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &transition), errors.As(err, &ineligible),
		errors.As(err, &volume), errors.As(err, &unavail), errors.Is(err, blob.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &inspection):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Violations: violations(blocked.Result)})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body into dst, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body required")
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
