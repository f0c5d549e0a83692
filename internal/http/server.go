package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/charts"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	appweb "fintrack/web"
)

// DefaultWidgetTimeout bounds the queries of a single dashboard widget.
const DefaultWidgetTimeout = 7 * time.Second

type (
	// Accounts stores logins.
	Accounts interface {
		CreateAccount(ctx context.Context, username, passwordHash string) (core.Account, error)
		AccountByUsername(ctx context.Context, username string) (core.Account, error)
	}

	// Transactions writes and lists ledger entries.
	Transactions interface {
		AddTransaction(ctx context.Context, t core.Transaction) (int64, error)
		Import(ctx context.Context, filename string, ts []core.Transaction) (services.ImportResult, error)
		Recent(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error)
	}

	// Widgets renders dashboard sections by name.
	Widgets interface {
		Render(ctx context.Context, name string, p charts.Params) (template.HTML, bool)
	}

	// Check is a readiness check.
	Check func(ctx context.Context) error
)

// Deps are the collaborators of the web server.
type Deps struct {
	Accounts     Accounts
	Transactions Transactions
	Widgets      Widgets
	Issuer       *auth.Issuer
	Users        config.UserDirectory
	// Period returns the default reporting year and month.
	Period         func(now time.Time) (year, month int)
	Checks         map[string]Check
	Logger         *log.Logger
	UploadMaxBytes int64
	WidgetTimeout  time.Duration
	SecureCookies  bool
}

type Server struct {
	http.Server
	deps  Deps
	pages map[string]*template.Template

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	events   *log.StructuredLogger
	started  time.Time

	shutdownOnce sync.Once
}

// pageFiles are rendered inside layout.html.
var pageFiles = []string{
	"home.html",
	"login.html",
	"signup.html",
	"dashboard.html",
	"transaction_form.html",
	"upload.html",
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if deps.Period == nil {
		deps.Period = func(now time.Time) (int, int) { return now.Year(), int(now.Month()) }
	}
	if deps.WidgetTimeout <= 0 {
		deps.WidgetTimeout = DefaultWidgetTimeout
	}
	if deps.UploadMaxBytes <= 0 {
		deps.UploadMaxBytes = 10 << 20
	}

	pages, err := parsePages(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:     deps,
		pages:    pages,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
		events:   log.NewStructuredLogger(deps.Logger),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ClientIP)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"monthName": func(m int) string { return time.Month(m).String() },
	}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, page := range pageFiles {
		t, err := template.New(page).Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		pages[page] = t
	}
	return pages, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /signup", s.handleSignupForm)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /dashboard", s.requireSession(s.handleDashboard))
	mux.Handle("GET /ui/widgets/{name}", s.requireSession(s.handleWidget))
	mux.Handle("GET /transactions/new", s.requireSession(s.handleTransactionForm))
	mux.Handle("POST /transactions", s.requireSession(s.handleCreateTransaction))
	mux.Handle("GET /upload", s.requireSession(s.handleUploadForm))
	mux.Handle("POST /upload", s.requireSession(s.handleUpload))
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// renderPage executes a page template; failures become a 500.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := s.pages[page]
	if !ok {
		InternalServerError("template not found").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		s.events.LogError(r.Context(), "Template execution failed", err, log.OpRender,
			log.LogFields{"template": page})
	}
}
