package testutil

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alfeusrudyanta/simple-social-media/internal/authclient"
	"github.com/alfeusrudyanta/simple-social-media/internal/httpserver"
	"github.com/alfeusrudyanta/simple-social-media/internal/httpserver/middleware"
	"github.com/alfeusrudyanta/simple-social-media/internal/login"
	appsession "github.com/alfeusrudyanta/simple-social-media/internal/session"
)

// DemoEmail and DemoPassword are accepted by the default test server.
const (
	DemoEmail    = "demo@example.com"
	DemoPassword = "password123"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithAuthClient overrides the backend the login form talks to.
func WithAuthClient(client login.AuthClient) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.AuthClient = client
	}
}

// WithAuthenticator overrides the token verifier guarding the home page.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithRegisterURL sets the sign-up link target.
func WithRegisterURL(url string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.RegisterURL = url
	}
}

// NewServer constructs an httptest server running the HTTP stack with a static
// account table and fixed session keys.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	sessions, err := appsession.NewManager(appsession.Config{
		HashKey:  []byte("test-hash-key-test-hash-key-0123"),
		BlockKey: []byte("test-block-key-0"),
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	cfg := httpserver.Config{
		Address:           ":0",
		HomePath:          "/",
		LoginPath:         "/login",
		LogoutPath:        "/logout",
		RegisterURL:       "/register",
		MinPasswordLength: 8,
		AuthClient:        authclient.NewStaticClient(map[string]string{DemoEmail: DemoPassword}),
		Sessions:          sessions,
		CSRFCookieName:    "csrf_token",
		CSRFHeaderName:    "X-CSRF-Token",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// NewBrowser returns a client that keeps cookies and does not follow redirects.
func NewBrowser(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
