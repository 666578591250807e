package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"installments/internal/auth"
	"installments/internal/cache"
	"installments/internal/core"
	applog "installments/internal/log"
	"installments/internal/middleware/ratelimit"
	"installments/internal/middleware/security"
	"installments/internal/middleware/trace"
	"installments/internal/services"
	appweb "installments/web"
)

// Dependencies are the services the handlers call. Sessions and Auth are
// optional; without them every page is open.
type Dependencies struct {
	Catalog  *services.Catalog
	Status   *services.StatusResolver
	Totals   *services.Aggregator
	CashFlow *services.CashFlowAggregator

	Sessions *auth.Sessions
	Auth     *auth.Authenticator

	// Ping reports backend health for /readyz.
	Ping   func(ctx context.Context) error
	Logger *applog.Logger
	Now    func() time.Time
}

// appMetrics counts domain operations for /metrics.
type appMetrics struct {
	installmentsCreated atomic.Int64
	installmentsDeleted atomic.Int64
	statusToggles       atomic.Int64
	cashFlowsCreated    atomic.Int64
	forecastHits        atomic.Int64
	forecastMisses      atomic.Int64
	uptime              time.Time
}

// Server is the HTMX web front end.
type Server struct {
	http.Server
	templates *template.Template
	deps      Dependencies
	logger    *applog.Logger
	now       func() time.Time

	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter

	// Forecast series keyed by the month they start in; writes purge it.
	forecastCache *cache.LRUCache[core.Period, []core.ForecastPoint]
	caches        *cache.Manager

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	if deps.Catalog == nil || deps.Status == nil || deps.Totals == nil || deps.CashFlow == nil {
		return nil, errors.New("http server requires catalog, status, totals and cash flow services")
	}
	if (deps.Sessions == nil) != (deps.Auth == nil) {
		return nil, errors.New("sessions and authenticator must be configured together")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		templates:        t,
		deps:             deps,
		logger:           logger,
		now:              deps.Now,
		securityDetector: security.NewDetector(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		forecastCache:    cache.NewLRUCache[core.Period, []core.ForecastPoint](24, 5*time.Minute),
		caches:           cache.NewManager(),
	}
	s.appMetrics.uptime = time.Now()
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)
	s.caches.Register(s.forecastCache)
	s.caches.StartCleanup(10 * time.Minute)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Page not found").Write(w)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})
	s.routes(router)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(r *mux.Router) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	if s.deps.Auth != nil {
		r.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
		r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
		r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet, http.MethodPost)
	}

	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/ui/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/ui/forecast", s.handleForecast).Methods(http.MethodGet)
	r.HandleFunc("/toggle-card-status/{card_id}/{year}/{month}", s.handleToggleStatus).Methods(http.MethodPost)

	r.HandleFunc("/installments", s.handleInstallmentsPage).Methods(http.MethodGet)
	r.HandleFunc("/installments", s.handleCreateInstallment).Methods(http.MethodPost)
	r.HandleFunc("/ui/installments", s.handleInstallmentList).Methods(http.MethodGet)
	r.HandleFunc("/installments/{id}", s.handleDeleteInstallment).Methods(http.MethodDelete)

	r.HandleFunc("/settings", s.handleSettingsPage).Methods(http.MethodGet)
	r.HandleFunc("/settings/cards", s.handleCreateCard).Methods(http.MethodPost)
	r.HandleFunc("/settings/cards/{id}", s.handleDeleteCard).Methods(http.MethodDelete)
	r.HandleFunc("/settings/payees", s.handleCreatePayee).Methods(http.MethodPost)
	r.HandleFunc("/settings/payees/{id}", s.handleDeletePayee).Methods(http.MethodDelete)
	r.HandleFunc("/settings/categories", s.handleCreateCategory).Methods(http.MethodPost)
	r.HandleFunc("/settings/categories/{id}", s.handleDeleteCategory).Methods(http.MethodDelete)

	r.HandleFunc("/cashflow", s.handleCashFlowPage).Methods(http.MethodGet)
	r.HandleFunc("/cashflow", s.handleCreateCashFlow).Methods(http.MethodPost)
	r.HandleFunc("/ui/cashflow", s.handleCashFlowList).Methods(http.MethodGet)
	r.HandleFunc("/cashflow/{id}", s.handleDeleteCashFlow).Methods(http.MethodDelete)
}

// middleware wraps the router outermost first: tracing, probe blocking,
// security headers, POST rate limiting, the request logger, then sessions.
func (s *Server) middleware(router http.Handler) http.Handler {
	h := router
	if s.deps.Sessions != nil {
		h = s.deps.Sessions.Middleware("/login", "/healthz", "/readyz", "/static/")(h)
	}
	h = applog.Middleware(s.logger, trace.GetRequestID)(h)
	h = s.limitWrites(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

// limitWrites applies the per-IP budget to mutating requests only.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodDelete, http.MethodPut, http.MethodPatch:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// invalidateForecast drops cached series after any write that moves totals.
func (s *Server) invalidateForecast() {
	s.forecastCache.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
