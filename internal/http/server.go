// Package http serves the finetrail pages and the JSON API on top of
// services.FinanceService.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"finetrail/internal/config"
	"finetrail/internal/log"
	"finetrail/internal/middleware/ratelimit"
	"finetrail/internal/middleware/security"
	"finetrail/internal/middleware/trace"
	"finetrail/internal/services"
	appweb "finetrail/web"
)

const (
	readyTimeout   = 2 * time.Second
	staticMaxAge   = 3600
	maxBodyBytes   = 1 << 20
	defaultTimeout = 15 * time.Second
)

type Server struct {
	http.Server
	svc         *services.FinanceService
	templates   *template.Template
	logger      *log.Logger
	userHeader  string
	defaultUser string
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, cfg *config.Config, svc *services.FinanceService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		svc:         svc,
		logger:      logger,
		userHeader:  cfg.UserHeader,
		defaultUser: strings.TrimSpace(cfg.DefaultUserID),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		now:      time.Now,
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       defaultTimeout,
		WriteTimeout:      defaultTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Pages
	mux.HandleFunc("GET /{$}", s.withUser(s.handleDashboardPage))
	mux.HandleFunc("GET /wallets", s.withUser(s.handleWalletsPage))
	mux.HandleFunc("POST /wallets", s.withUser(s.handleWalletForm))
	mux.HandleFunc("POST /wallets/{id}/delete", s.withUser(s.handleWalletDeleteForm))
	mux.HandleFunc("GET /categories", s.withUser(s.handleCategoriesPage))
	mux.HandleFunc("POST /categories", s.withUser(s.handleCategoryForm))
	mux.HandleFunc("POST /categories/{id}/delete", s.withUser(s.handleCategoryDeleteForm))
	mux.HandleFunc("GET /budgets", s.withUser(s.handleBudgetsPage))
	mux.HandleFunc("POST /budgets", s.withUser(s.handleBudgetForm))
	mux.HandleFunc("POST /budgets/{id}/delete", s.withUser(s.handleBudgetDeleteForm))
	mux.HandleFunc("GET /transactions", s.withUser(s.handleTransactionsPage))
	mux.HandleFunc("POST /transactions", s.withUser(s.handleTransactionForm))
	mux.HandleFunc("POST /transactions/{id}/delete", s.withUser(s.handleTransactionDeleteForm))

	// JSON API
	mux.HandleFunc("GET /api/dashboard", s.withUser(s.handleAPIDashboard))
	mux.HandleFunc("GET /api/wallets", s.withUser(s.handleAPIListWallets))
	mux.HandleFunc("POST /api/wallets", s.withUser(s.handleAPICreateWallet))
	mux.HandleFunc("DELETE /api/wallets/{id}", s.withUser(s.handleAPIDeleteWallet))
	mux.HandleFunc("GET /api/categories", s.withUser(s.handleAPIListCategories))
	mux.HandleFunc("POST /api/categories", s.withUser(s.handleAPICreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withUser(s.handleAPIDeleteCategory))
	mux.HandleFunc("GET /api/budgets", s.withUser(s.handleAPIListBudgets))
	mux.HandleFunc("POST /api/budgets", s.withUser(s.handleAPICreateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.withUser(s.handleAPIDeleteBudget))
	mux.HandleFunc("GET /api/transactions", s.withUser(s.handleAPIListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withUser(s.handleAPICreateTransaction))
	mux.HandleFunc("GET /api/transactions/export", s.withUser(s.handleAPIExportTransactions))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withUser(s.handleAPIUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withUser(s.handleAPIDeleteTransaction))
}

// middleware wraps h, outermost first: context logger, tracing, scanner
// detection, security headers, rate limiting of writes.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, nil)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		tm, rm, dm := s.tracer.GetMetrics(), s.limiter.GetMetrics(), s.detector.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopped",
			log.FieldOperation, log.OpShutdown,
			"requests", tm.TotalRequests, "server_errors", tm.ServerErrors,
			"rate_limited", rm.TotalHits, "suspicious", dm.SuspiciousRequests)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 503 while the ledger store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
