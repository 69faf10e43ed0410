package api

import (
	"net/http"
	"strconv"

	"claimsflow/internal/claims"
	"claimsflow/internal/claims/search"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/validation"
	"claimsflow/internal/models"
	"claimsflow/internal/triage"

	"github.com/go-chi/chi/v5"
)

const maxListLimit = 200

type claimListResponse struct {
	Total  int               `json:"total"`
	Source string            `json:"source"`
	Claims []search.Document `json:"claims"`
}

type claimView struct {
	*models.Claim
	Insights []string `json:"insights,omitempty"`
}

type notificationRequest struct {
	Type    models.NotificationType `json:"type"`
	Message string                  `json:"message"`
}

type notificationListResponse struct {
	Notifications []models.ClaimNotification `json:"notifications"`
	Unread        int                        `json:"unread"`
}

type routingRequest struct {
	Scores *models.ClaimScores `json:"scores,omitempty"`
}

func parseFilter(r *http.Request) (claims.Filter, error) {
	q := r.URL.Query()
	f := claims.Filter{
		Status: models.ClaimStatus(q.Get("status")),
		Tier:   models.AdjusterTier(q.Get("tier")),
		Limit:  50,
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, apperrors.NewValidationFailedError("status", "unknown status "+string(f.Status))
	}
	if f.Tier != "" && !f.Tier.Valid() {
		return f, apperrors.NewValidationFailedError("tier", "unknown adjuster tier "+string(f.Tier))
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			return f, apperrors.NewValidationFailedError("limit", "limit must be between 1 and 200")
		}
		f.Limit = n
	}
	return f, nil
}

// handleListClaims serves the dashboard. The search index is preferred;
// the store answers when no index is configured or the index is down.
func (a *API) handleListClaims(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.searcher != nil {
		res, err := a.searcher.Search(r.Context(), f)
		if err == nil {
			writeJSON(w, http.StatusOK, claimListResponse{Total: res.Total, Source: "search", Claims: res.Documents})
			return
		}
		a.logger.Warn("claim search failed, listing from store", map[string]interface{}{"error": err.Error()})
	}

	list, err := a.claims.List(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	docs := make([]search.Document, 0, len(list))
	for _, c := range list {
		docs = append(docs, search.NewDocument(c))
	}
	writeJSON(w, http.StatusOK, claimListResponse{Total: len(docs), Source: "store", Claims: docs})
}

func (a *API) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	c, err := a.claims.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view := claimView{Claim: c}
	if c.Scores != nil {
		view.Insights = triage.Insights(c, *c.Scores)
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUpdateClaim(w http.ResponseWriter, r *http.Request) {
	var patch models.ClaimPatch
	if err := decode(r, validation.ClaimPatchSchema, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		a.writeError(w, r, apperrors.NewValidationFailedError("status", "unknown status "+string(*patch.Status)))
		return
	}
	c, err := a.claims.UpdateClaim(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	var read *bool
	if raw := r.URL.Query().Get("read"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			a.writeError(w, r, apperrors.NewValidationFailedError("read", "read must be true or false"))
			return
		}
		read = &v
	}
	list, unread, err := a.claims.Notifications(r.Context(), chi.URLParam(r, "id"), read)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: list, Unread: unread})
}

func (a *API) handleAddNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := decode(r, validation.NotificationSchema, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	n, err := a.claims.AddNotification(r.Context(), chi.URLParam(r, "id"), req.Type, req.Message)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (a *API) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	c, err := a.claims.MarkAllRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: c.Notifications, Unread: c.UnreadNotifications()})
}

func (a *API) handleComputeScores(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	score := a.triage.ComputeScores
	if recompute, _ := strconv.ParseBool(r.URL.Query().Get("recompute")); recompute {
		score = a.triage.Rescore
	}
	scores, err := score(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (a *API) handleComputeRouting(w http.ResponseWriter, r *http.Request) {
	var req routingRequest
	if err := decode(r, nil, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	rec, err := a.triage.ComputeRouting(r.Context(), chi.URLParam(r, "id"), req.Scores)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	c, err := a.triage.Assign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	c, err := a.triage.Triage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
