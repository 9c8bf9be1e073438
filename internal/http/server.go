package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tutorkasse/internal/auth"
	"tutorkasse/internal/export"
	"tutorkasse/internal/log"
	"tutorkasse/internal/middleware/ratelimit"
	"tutorkasse/internal/middleware/security"
	"tutorkasse/internal/middleware/trace"
	"tutorkasse/internal/services"
	appweb "tutorkasse/web"
)

// staticMaxAge is the Cache-Control max-age of embedded assets in seconds.
const staticMaxAge = 3600

// Options configures optional server collaborators. Zero values get defaults.
type Options struct {
	Auth           *auth.Authenticator
	Ready          func(ctx context.Context) error
	Logger         *log.Logger
	RateLimit      *ratelimit.Config
	Headers        *security.HeadersConfig
	TrustedProxies []string
	Now            func() time.Time
}

type Server struct {
	http.Server
	svc       *services.LedgerService
	auth      *auth.Authenticator
	templates *template.Template
	ready     func(ctx context.Context) error
	now       func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimit != nil {
		rlConfig = *opts.RateLimit
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		svc:      svc,
		auth:     opts.Auth,
		ready:    opts.Ready,
		now:      now,
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			slog.Warn("Ignoring invalid trusted proxy", "component", "http", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(log.ComponentHTTP), s.detector.ExtractClientIP)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "component", "http", "error", err)
	}
	s.templates = t

	s.Addr = addr
	s.Handler = s.routes(security.NewHeadersMiddleware(headers))
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = 60 * time.Second
	s.WriteTimeout = 60 * time.Second
	s.IdleTimeout = 120 * time.Second
	return s
}

func (s *Server) routes(headers *security.HeadersMiddleware) http.Handler {
	r := chi.NewRouter()

	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(headers.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}))

	if static, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticAssetMiddleware(staticMaxAge)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Get("/", s.handleIndex)
	r.Post("/entries", s.handleCreateEntry)
	r.Get("/ui/settlements", s.handleSettlementsPartial)

	r.Route("/api", func(r chi.Router) {
		r.Get("/balance", s.handleBalanceJSON)
		r.Get("/settlements", s.handleSettlementsJSON)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.requireAdminEnabled)
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleAdmin)
			r.Get("/entries", s.handleEntriesJSON)
			r.Put("/entries", s.handleReplaceEntries)
			r.Post("/entries/{id}", s.handleUpdateEntry)
			r.Post("/settle-all", s.handleSettleAll)
			r.Get("/export.csv", s.handleExport(export.FormatCSV))
			r.Get("/export.xlsx", s.handleExport(export.FormatXLSX))
		})
	})

	return r
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports whether the ledger store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "component", "http", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a named template into a buffer and writes it with status,
// so a template failure still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "component", "http", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "component", "http", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
