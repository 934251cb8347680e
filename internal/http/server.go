package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"

	"svinn/internal/auth"
	"svinn/internal/core"
	"svinn/internal/dashboard"
	"svinn/internal/gateway"
	"svinn/internal/log"
	"svinn/internal/middleware/ratelimit"
	"svinn/internal/middleware/security"
	"svinn/internal/middleware/trace"
	"svinn/internal/services"
	appweb "svinn/web"
)

// Options wires the server to the application services.
type Options struct {
	Addr       string
	Backend    gateway.Pinger
	Auth       *auth.Provider
	Tokens     *auth.Tokens
	Gate       *auth.ApprovalGate
	Dashboards *dashboard.Registry
	Clicks     *services.ClickService
	Scheme     core.Scheme

	// Empty keys are replaced with random ones; sessions then do not
	// survive a restart.
	SessionKey    []byte
	CSRFKey       []byte
	SecureCookies bool
	SessionMaxAge time.Duration

	// IngestAPIKey enables POST /api/clicks when set.
	IngestAPIKey      string
	RequestsPerMinute int
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string

	Logger *log.Logger
}

var errTemplatesMissing = errors.New("templates not loaded")

type Server struct {
	http.Server

	templates  *template.Template
	backend    gateway.Pinger
	auth       *auth.Provider
	tokens     *auth.Tokens
	gate       *auth.ApprovalGate
	dashboards *dashboard.Registry
	clicks     *services.ClickService
	scheme     core.Scheme
	ingestKey  string

	sessions         *sessionManager
	csrfKey          []byte
	secureCookies    bool
	logger           *log.Logger
	events           *log.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	if len(opts.SessionKey) == 0 {
		logger.Warn("SESSION_KEY not set, generating an ephemeral key")
		opts.SessionKey = securecookie.GenerateRandomKey(32)
	}
	if len(opts.CSRFKey) == 0 {
		logger.Warn("CSRF_KEY not set, generating an ephemeral key")
		opts.CSRFKey = securecookie.GenerateRandomKey(32)
	}
	if opts.SessionMaxAge <= 0 {
		opts.SessionMaxAge = 12 * time.Hour
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 120
	}

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		logger.Warn("Ignoring trusted proxies", log.FieldError, err)
		detector, _ = security.NewDetector()
	}
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		backend:          opts.Backend,
		auth:             opts.Auth,
		tokens:           opts.Tokens,
		gate:             opts.Gate,
		dashboards:       opts.Dashboards,
		clicks:           opts.Clicks,
		scheme:           opts.Scheme,
		ingestKey:        opts.IngestAPIKey,
		sessions:         newSessionManager(opts.SessionKey, opts.SecureCookies, opts.SessionMaxAge),
		csrfKey:          opts.CSRFKey,
		secureCookies:    opts.SecureCookies,
		logger:           logger,
		events:           log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(log.NewStructuredLogger(logger), detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", "error", err)
	} else {
		s.templates = t
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.flagSuspicious)
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit))

		r.Route("/api", func(r chi.Router) {
			r.Post("/token", s.handleIssueToken)
			r.With(s.requireToken).Get("/view", s.handleAPIView)
			r.With(s.requireIngestKey).Post("/clicks", s.handleRecordClick)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.csrfMiddleware())
			r.Get("/login", s.handleLoginPage)
			r.Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)
				r.Get("/", s.handleIndex)
				r.Get("/ui/dashboard", s.handleDashboardPartial)
				r.Post("/ui/refresh", s.handleRefresh)
				r.Get("/export.pdf", s.handleExport)
				r.Post("/logout", s.handleLogout)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Sidan finns inte").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError(allowedMethods(r.URL.Path)).Write(w)
	})
	return r
}

func allowedMethods(path string) string {
	switch path {
	case "/login":
		return "GET, POST"
	case "/logout", "/ui/refresh", "/api/token", "/api/clicks":
		return "POST"
	default:
		return "GET"
	}
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	html, err := s.renderString(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			"template", name, log.FieldOperation, log.OpRender, log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(html).Write(w)
}

func (s *Server) renderString(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errTemplatesMissing
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
