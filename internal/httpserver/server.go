package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	custommw "github.com/alfeusrudyanta/simple-social-media/internal/httpserver/middleware"
	"github.com/alfeusrudyanta/simple-social-media/internal/login"
	"github.com/alfeusrudyanta/simple-social-media/internal/messages"
	"github.com/alfeusrudyanta/simple-social-media/public"
)

const defaultRequestTimeout = 60 * time.Second

// Config holds runtime options for the HTTP server.
type Config struct {
	Address           string
	HomePath          string
	LoginPath         string
	LogoutPath        string
	RegisterURL       string
	MinPasswordLength int
	RequestTimeout    time.Duration

	AuthClient    login.AuthClient
	Authenticator custommw.Authenticator
	Sessions      custommw.SessionStore
	Logger        *zap.Logger
	Catalog       *messages.Catalog
	Now           func() time.Time

	CSRFCookieName   string
	CSRFCookieSecure bool
	CSRFHeaderName   string
}

// New constructs the HTTP server with its middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	if cfg.AuthClient == nil {
		return nil, errors.New("httpserver: auth client is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("httpserver: session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = messages.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	homePath := normalizePath(cfg.HomePath, "/")
	loginPath := normalizePath(cfg.LoginPath, "/login")
	logoutPath := normalizePath(cfg.LogoutPath, "/logout")
	registerURL := firstNonEmpty(cfg.RegisterURL, "/register")

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(custommw.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(timeout))

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embed static: %w", err)
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))
	router.Get("/healthz", healthz)

	formOpts := []login.Option{
		login.WithLogger(logger.Named("login")),
		login.WithCatalog(catalog),
		login.WithMinPasswordLength(cfg.MinPasswordLength),
		login.WithHomePath(homePath),
	}
	loginH := &loginHandlers{
		registry: login.NewRegistry(func() *login.Form {
			return login.New(cfg.AuthClient, formOpts...)
		}),
		catalog:     catalog,
		homePath:    homePath,
		loginPath:   loginPath,
		registerURL: registerURL,
		minLength:   cfg.MinPasswordLength,
		now:         now,
	}
	homeH := &homeHandlers{logoutPath: logoutPath}

	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = custommw.PassthroughAuthenticator()
	}
	csrfCfg := custommw.CSRFConfig{
		CookieName: cfg.CSRFCookieName,
		HeaderName: cfg.CSRFHeaderName,
		Secure:     cfg.CSRFCookieSecure,
	}

	router.Group(func(r chi.Router) {
		r.Use(custommw.Session(cfg.Sessions))
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.CSRF(csrfCfg))

		r.Get(loginPath, loginH.LoginForm)
		r.Post(loginPath, loginH.LoginSubmit)
		r.Post(logoutPath, loginH.Logout)

		r.Group(func(r chi.Router) {
			r.Use(custommw.RequireAuth(authenticator, loginPath))
			r.Get(homePath, homeH.Home)
		})
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

func normalizePath(path, fallback string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
