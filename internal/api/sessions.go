package api

import (
	"net/http"

	"claimsflow/internal/common/validation"
	"claimsflow/internal/intake"
	"claimsflow/internal/models"

	"github.com/go-chi/chi/v5"
)

type accidentTypeRequest struct {
	AccidentType models.AccidentType `json:"accidentType"`
}

type photoUploadRequest struct {
	Photos []models.ClaimPhoto `json:"photos"`
}

type finalizeResponse struct {
	Created bool          `json:"created"`
	ClaimID string        `json:"claimId"`
	Claim   *models.Claim `json:"claim"`
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.intake.StartSession(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.intake.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := a.intake.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	var in intake.StepInput
	if err := decode(r, validation.StepInputSchema, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.intake.SubmitStepInput(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleSelectAccidentType(w http.ResponseWriter, r *http.Request) {
	var req accidentTypeRequest
	if err := decode(r, validation.AccidentTypeSchema, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.intake.SelectAccidentType(r.Context(), chi.URLParam(r, "id"), req.AccidentType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleUploadPhotos(w http.ResponseWriter, r *http.Request) {
	var req photoUploadRequest
	if err := decode(r, validation.PhotoUploadSchema, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	s, err := a.intake.UploadPhotos(r.Context(), chi.URLParam(r, "id"), req.Photos)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// handleFinalize answers 201 when this call created the claim and 200 when
// the session had already been finalized.
func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := a.intake.Finalize(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if c != nil {
		writeJSON(w, http.StatusCreated, finalizeResponse{Created: true, ClaimID: c.ID, Claim: c})
		return
	}

	s, err := a.intake.GetSession(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	existing, err := a.claims.Get(r.Context(), s.ClaimID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{ClaimID: existing.ID, Claim: existing})
}
