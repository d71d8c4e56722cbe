package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"shiire/internal/log"
	"shiire/internal/middleware/ratelimit"
	"shiire/internal/middleware/security"
	"shiire/internal/middleware/trace"
	"shiire/internal/services"
	"shiire/internal/view"
)

const (
	// HeaderViewID identifies the client view whose expand state a request uses.
	HeaderViewID = "X-View-ID"

	readTimeout    = 7 * time.Second
	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20
)

// Pinger reports whether the data store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API. Every field is required.
type Deps struct {
	Sessions *services.SessionService
	Products *services.ProductService
	Analysis *services.AnalysisService
	Reports  *services.ReportService
	Exporter *services.Exporter
	Views    *view.Registry
	Store    Pinger
}

// Options tune the middleware stack. Zero values use the defaults.
type Options struct {
	Logger         *log.Logger
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	deps Deps

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	metrics  *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	s := &Server{
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		metrics:  newAppMetrics(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = s.limitWrites(mux)
	handler = log.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/expand", s.handleExpandSession)
	mux.HandleFunc("POST /api/sessions/{id}/collapse", s.handleCollapseSession)
	mux.HandleFunc("GET /api/sessions/{id}/analysis", s.handleSessionAnalysis)
	mux.HandleFunc("GET /api/sessions/{id}/registration", s.handleSessionRegistration)

	mux.HandleFunc("GET /api/sessions/{id}/purchases", s.handleListPurchases)
	mux.HandleFunc("POST /api/sessions/{id}/purchases", s.handleAddPurchase)
	mux.HandleFunc("POST /api/sessions/{id}/import", s.handleImportPurchases)
	mux.HandleFunc("PUT /api/purchases/{id}", s.handleUpdatePurchase)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.handleDeletePurchase)

	mux.HandleFunc("GET /api/stores", s.handleListStores)
	mux.HandleFunc("POST /api/stores", s.handleCreateStore)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("PUT /api/products/{id}", s.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)

	mux.HandleFunc("GET /api/reports", s.handleReport)
	mux.HandleFunc("POST /api/reports/export", s.handleExport)
}

// limitWrites applies the rate limiter to mutating requests only.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops background work and then the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// viewState returns the state for the request's view, assigning a new view
// id when the client sent none. The id is echoed in the response.
func (s *Server) viewState(w http.ResponseWriter, r *http.Request) (*view.State, string) {
	id := r.Header.Get(HeaderViewID)
	if id == "" || len(id) > 64 {
		id = view.NewViewID()
	}
	w.Header().Set(HeaderViewID, id)
	return s.deps.Views.Get(r.Context(), id), id
}

func readContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), readTimeout)
}
