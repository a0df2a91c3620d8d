package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/academix-erp/academix/internal/accounting"
	"github.com/academix-erp/academix/internal/ar"
	"github.com/academix-erp/academix/internal/auth"
	"github.com/academix-erp/academix/internal/observability"
	"github.com/academix-erp/academix/internal/pricing"
	"github.com/academix-erp/academix/internal/reporting"
	"github.com/academix-erp/academix/internal/vouchers"
	"github.com/academix-erp/academix/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthService       *auth.Service
	AccountingHandler *accounting.Handler
	VouchersHandler   *vouchers.Handler
	ARHandler         *ar.Handler
	PricingHandler    *pricing.Handler
	ReportingHandler  *reporting.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the service defaults. Everything
// under /api/v1 requires a valid API token; health and metrics do not.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if params.AuthService != nil {
			api.Use(auth.Middleware(params.AuthService))
		}
		if params.AccountingHandler != nil {
			params.AccountingHandler.MountRoutes(api)
		}
		if params.VouchersHandler != nil {
			params.VouchersHandler.MountRoutes(api)
		}
		if params.ARHandler != nil {
			params.ARHandler.MountRoutes(api)
		}
		if params.PricingHandler != nil {
			params.PricingHandler.MountRoutes(api)
		}
		if params.ReportingHandler != nil {
			params.ReportingHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobHandler.MountRoutes(jr)
			})
		}
	})

	return r
}
