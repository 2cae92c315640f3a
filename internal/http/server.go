package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/metrics"
	"carteira/internal/middleware/owner"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the ledger services the handlers call.
type Services struct {
	Ledger  *services.LedgerService
	Goals   *services.GoalService
	Wallets *services.WalletService
	Budget  *services.BudgetService
	Reports *services.ReportService
}

type Options struct {
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	Metrics            *metrics.Metrics
	Cache              *cache.Manager
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc      Services
	ready    Pinger
	owners   *owner.Resolver
	limiter  *ratelimit.Limiter
	detector *security.Detector
	metrics  *metrics.Metrics
	cache    *cache.Manager
	log      *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services, ready Pinger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.ForComponent(log.ComponentHTTP)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	cfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		cfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		svc:      svc,
		ready:    ready,
		owners:   owner.NewResolver(opts.JWTSecret),
		limiter:  ratelimit.NewLimiter(cfg),
		detector: security.NewDetector(),
		metrics:  m,
		cache:    opts.Cache,
		log:      logger,
	}
	s.detector.OnSuspicious(func(r *http.Request) {
		s.metrics.SuspiciousRequests.Inc()
		s.log.WarnContext(r.Context(), "Suspicious request rejected",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, s.detector.ExtractClientIP(r))
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.metrics, s.log.WithComponent(log.ComponentTrace))
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Use(tracer.Middleware)
	r.Use(log.Middleware(s.log))
	r.Use(log.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", owner.Header, trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(headers.Middleware)
	r.Use(s.rejectSuspicious)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.owners.Middleware(s.ownerError))
		r.Use(s.limiter.Middleware(s.rateLimitKey, s.rateLimited))

		r.Route("/transactions", func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentLedger))
			r.Post("/", s.handleCreateTransaction)
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Patch("/{id}", s.handleEditTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentWallets))
			r.Post("/", s.handleCreateWallet)
			r.Get("/", s.handleListWallets)
			r.Post("/bootstrap", s.handleBootstrapWallets)
			r.Get("/{id}", s.handleGetWallet)
			r.Put("/{id}/balance", s.handleOverrideBalance)
			r.Delete("/{id}", s.handleDeleteWallet)
			r.Get("/{id}/reconcile", s.handleReconcileWallet)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentGoals))
			r.Post("/", s.handleCreateGoal)
			r.Get("/", s.handleListGoals)
			r.Get("/stats", s.handleGoalsStats)
			r.Get("/{id}", s.handleGetGoal)
			r.Patch("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeactivateGoal)
			r.Post("/{id}/contributions", s.handleContribute)
			r.Get("/{id}/progress", s.handleGoalProgress)
		})

		r.Route("/budget-snapshots", func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentBudget))
			r.Post("/", s.handleSubmitBudget)
			r.Get("/latest", s.handleLatestSnapshot)
		})

		reports := r.With(log.ComponentMiddleware(log.ComponentReports))
		reports.Get("/reports/monthly", s.handleMonthlyReport)
		reports.Get("/dashboard", s.handleDashboard)
	})

	return r
}

// requestLog wraps the logger the log middlewares stored for this request,
// tagged with its request id and route component.
func (s *Server) requestLog(r *http.Request) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContext(r.Context()))
}

func (s *Server) rejectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			BadRequestError("request rejected").Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitKey(r *http.Request) string {
	return owner.Key(r, s.detector.ExtractClientIP)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited.Inc()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldOwnerID, owner.FromContext(r.Context()),
		log.FieldPath, r.URL.Path)
	RateLimitedError().Write(w)
}

func (s *Server) ownerError(w http.ResponseWriter, r *http.Request, err error) {
	s.requestLog(r).LogRejected(r.Context(), "Owner resolution failed", err, KindUnauthorized,
		log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)))
	msg := "invalid token"
	if errors.Is(err, owner.ErrMissingToken) {
		msg = "missing bearer token"
	}
	UnauthorizedError(msg).Write(w)
}

// fail writes err as an error envelope and logs it: caller mistakes at Warn,
// everything else at Error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	fields := log.NewFields().
		WithOperation(op).
		WithOwner(owner.FromContext(r.Context()))

	if errors.Is(err, errBadRequest) {
		s.requestLog(r).LogRejected(r.Context(), "Malformed request", err, KindBadRequest, fields)
		BadRequestError(err.Error()).Write(w)
		return
	}
	if IsClientError(err) {
		s.requestLog(r).LogRejected(r.Context(), "Request rejected", err, string(core.KindOf(err)), fields)
	} else {
		s.requestLog(r).LogError(r.Context(), "Request failed", err, op, fields.WithErrorKind(string(core.KindOf(err))))
	}
	ErrorResponse(err).Write(w)
}

// record counts a ledger operation and returns err unchanged.
func (s *Server) record(op string, err error) error {
	s.metrics.RecordOperation(op, err)
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	DataResponse(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.log.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(core.Unavailable("ping", err)).Write(w)
			return
		}
	}
	DataResponse(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.cache != nil {
			s.cache.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
