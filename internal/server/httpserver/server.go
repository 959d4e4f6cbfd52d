// Package httpserver exposes the carbon tracker JSON API over net/http.
package httpserver

import (
	"net/http"
	"time"

	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/observability"
	"github.com/and161185/carbon-tracker/internal/service"
	"go.uber.org/zap"
)

// ServerConfig contains tunables for the HTTP server.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates *http.Server with provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Handler wires services into HTTP handlers.
type Handler struct {
	auth       service.AuthService
	activities service.ActivityService
	dashboard  service.DashboardService
	table      *emissions.Table
	log        *zap.Logger
	now        func() time.Time
}

// New constructs a Handler. A nil table uses emissions.Default.
func New(
	auth service.AuthService,
	activities service.ActivityService,
	dashboard service.DashboardService,
	table *emissions.Table,
	log *zap.Logger,
) *Handler {
	if table == nil {
		table = emissions.Default
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, activities: activities, dashboard: dashboard, table: table, log: log, now: time.Now}
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		setRoute(r.Context(), pattern)
		fn(w, r)
	})
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	h.handle(mux, "GET /api/health", h.health)
	h.handle(mux, "GET /api/factors", h.factors)
	h.handle(mux, "GET /api/activities/options/{category}", h.options)

	h.handle(mux, "POST /api/auth/register", h.register)
	h.handle(mux, "POST /api/auth/login", h.login)
	h.handle(mux, "GET /api/auth/me", h.me)

	h.handle(mux, "POST /api/activities", h.submitActivity)
	h.handle(mux, "GET /api/activities", h.listActivities)
	h.handle(mux, "DELETE /api/activities/{id}", h.deleteActivity)
	h.handle(mux, "GET /api/activities/weekly-summary", h.weeklySummary)
	h.handle(mux, "POST /api/activities/reconcile", h.reconcile)

	h.handle(mux, "GET /api/dashboard/stats", h.stats)
	h.handle(mux, "GET /api/dashboard/category-breakdown", h.categoryBreakdown)
	h.handle(mux, "GET /api/dashboard/leaderboard", h.leaderboard)
	h.handle(mux, "GET /api/dashboard/community-average", h.communityAverage)

	h.handle(mux, "GET /metrics", observability.Handler().ServeHTTP)
	return mux
}

// Router returns the routes behind recover, metrics, logging and auth, outermost first.
func (h *Handler) Router(tokens TokenParser) http.Handler {
	return Chain(h.Routes(), Recover(h.log), Metrics, Logging(h.log), Auth(tokens))
}
