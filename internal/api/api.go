// Package api exposes intake sessions, claims and triage over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"claimsflow/internal/claims"
	"claimsflow/internal/claims/search"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/metrics"
	"claimsflow/internal/intake"
	"claimsflow/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Intake is the FNOL session surface.
type Intake interface {
	StartSession(ctx context.Context) (*models.FNOLSession, error)
	GetSession(ctx context.Context, id string) (*models.FNOLSession, error)
	SubmitStepInput(ctx context.Context, id string, in intake.StepInput) (*models.FNOLSession, error)
	SelectAccidentType(ctx context.Context, id string, t models.AccidentType) (*models.FNOLSession, error)
	UploadPhotos(ctx context.Context, id string, photos []models.ClaimPhoto) (*models.FNOLSession, error)
	Finalize(ctx context.Context, id string) (*models.Claim, error)
	Abandon(ctx context.Context, id string) error
}

// Claims is the claim repository surface.
type Claims interface {
	Get(ctx context.Context, id string) (*models.Claim, error)
	List(ctx context.Context, filter claims.Filter) ([]*models.Claim, error)
	UpdateClaim(ctx context.Context, id string, patch models.ClaimPatch) (*models.Claim, error)
	AddNotification(ctx context.Context, id string, typ models.NotificationType, message string) (models.ClaimNotification, error)
	Notifications(ctx context.Context, id string, read *bool) ([]models.ClaimNotification, int, error)
	MarkAllRead(ctx context.Context, id string) (*models.Claim, error)
}

// Triage is the scoring, routing and assignment surface.
type Triage interface {
	ComputeScores(ctx context.Context, claimID string) (*models.ClaimScores, error)
	Rescore(ctx context.Context, claimID string) (*models.ClaimScores, error)
	ComputeRouting(ctx context.Context, claimID string, scores *models.ClaimScores) (*models.RoutingRecommendation, error)
	Assign(ctx context.Context, claimID string) (*models.Claim, error)
	Triage(ctx context.Context, claimID string) (*models.Claim, error)
}

// Searcher serves the claim dashboard from the search index.
type Searcher interface {
	Search(ctx context.Context, f claims.Filter) (*search.Result, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type API struct {
	logger   logger.Logger
	intake   Intake
	claims   Claims
	triage   Triage
	searcher Searcher
	checks   map[string]ReadinessCheck
}

type Option func(*API)

// WithSearcher lists claims from the search index instead of the store.
func WithSearcher(s Searcher) Option {
	return func(a *API) { a.searcher = s }
}

// WithReadinessCheck adds a dependency check to /ready.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(a *API) { a.checks[name] = check }
}

func New(log logger.Logger, in Intake, cl Claims, tr Triage, opts ...Option) *API {
	if in == nil || cl == nil || tr == nil {
		panic("api: intake, claims and triage are required")
	}
	a := &API{
		logger: log.WithFields(map[string]interface{}{"component": "http-api"}),
		intake: in,
		claims: cl,
		triage: tr,
		checks: make(map[string]ReadinessCheck),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the full HTTP handler including health and metrics.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Get("/health", a.handleHealth)
	r.Get("/ready", a.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", a.handleStartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetSession)
				r.Delete("/", a.handleAbandonSession)
				r.Post("/input", a.handleSubmitInput)
				r.Post("/accident-type", a.handleSelectAccidentType)
				r.Post("/photos", a.handleUploadPhotos)
				r.Post("/finalize", a.handleFinalize)
			})
		})

		r.Route("/claims", func(r chi.Router) {
			r.Get("/", a.handleListClaims)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetClaim)
				r.Patch("/", a.handleUpdateClaim)
				r.Get("/notifications", a.handleListNotifications)
				r.Post("/notifications", a.handleAddNotification)
				r.Post("/notifications/read", a.handleMarkAllRead)
				r.Post("/scores", a.handleComputeScores)
				r.Post("/routing", a.handleComputeRouting)
				r.Post("/assign", a.handleAssign)
				r.Post("/triage", a.handleTriage)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{"ready": status == http.StatusOK, "checks": results})
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
		a.logger.Debug("http request", map[string]interface{}{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"durationMs": elapsed.Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		})
	})
}
