package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/Flexing/internal/audit"
	"github.com/MikeSquared-Agency/Flexing/internal/events"
	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
	"github.com/MikeSquared-Agency/Flexing/internal/narrative"
	"github.com/MikeSquared-Agency/Flexing/internal/recalc"
	"github.com/MikeSquared-Agency/Flexing/internal/store"
)

// Recalculator runs a batch pass unless one is already in flight. Last is
// the most recent summary produced by this process, nil before the first.
type Recalculator interface {
	TryRun(ctx context.Context, trigger string) (*recalc.Summary, error)
	Last() *recalc.Summary
}

type Auditor interface {
	Audit(ctx context.Context) (*audit.Summary, error)
}

// Deps are the collaborators the HTTP API is built from. Events, Narrative
// and Metrics may be nil.
type Deps struct {
	Store        store.Store
	Events       events.Client
	Recalculator Recalculator
	Auditor      Auditor
	Narrative    narrative.Client
	Metrics      *metrics.Metrics

	AdminToken         string
	JWTSecret          string
	RateLimitPerMinute int
	Tolerance          float64
}

func NewRouter(d Deps, logger *slog.Logger) http.Handler {
	if d.RateLimitPerMinute <= 0 {
		d.RateLimitPerMinute = 120
	}
	if d.Tolerance <= 0 {
		d.Tolerance = recalc.DefaultOptions().Tolerance
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(RateLimitMiddleware(d.RateLimitPerMinute, d.JWTSecret == ""))

	scoringH := NewScoringHandler(d.Store, d.Metrics)
	candidates := NewCandidatesHandler(d.Store)
	evaluations := NewEvaluationsHandler(d.Store, d.Events, d.Narrative, d.Metrics, d.Tolerance, logger)
	rankingH := NewRankingHandler(d.Store)
	admin := NewAdminHandler(d.Store, d.Recalculator, d.Auditor, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(EvaluatorAuthMiddleware(d.JWTSecret))

			r.Post("/scoring/preview", scoringH.Preview)
			r.Post("/scoring/preview/form", scoringH.PreviewForm)

			r.Get("/candidates", candidates.List)
			r.Get("/candidates/{id}", candidates.Get)

			r.Post("/evaluations", evaluations.Create)
			r.Get("/evaluations", evaluations.List)
			r.Get("/evaluations/{id}", evaluations.Get)
			r.Get("/evaluations/{id}/explain", evaluations.Explain)
			r.Get("/evaluations/{id}/narrative", evaluations.Narrative)

			r.Get("/ranking", rankingH.Ranking)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.AdminToken))

			r.Post("/candidates", candidates.Create)
			r.Put("/candidates/{id}", candidates.Update)

			r.Post("/recalculate", admin.Recalculate)
			r.Get("/recalculate/runs", admin.RecalcRuns)
			r.Get("/recalculate/last", admin.LastRecalc)
			r.Get("/audit/high-scorers", admin.HighScorers)
		})
	})

	return r
}

func NewMetricsRouter(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", m.Handler())
	return r
}
