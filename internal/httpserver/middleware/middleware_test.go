package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	appsession "github.com/alfeusrudyanta/simple-social-media/internal/session"
)

type mockAuthenticator struct {
	token string
	user  *User
	err   error
}

func (m *mockAuthenticator) Authenticate(_ context.Context, token string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if token != m.token {
		return nil, ErrUnauthorized
	}
	return m.user, nil
}

func newTestManager(t *testing.T) *appsession.Manager {
	t.Helper()
	mgr, err := appsession.NewManager(appsession.Config{HashKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr
}

func sessionCookie(t *testing.T, mgr *appsession.Manager, mutate func(*appsession.Session)) *http.Cookie {
	t.Helper()
	sess := mgr.New()
	mutate(sess)
	rr := httptest.NewRecorder()
	if err := mgr.Save(rr, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "ssm_session" {
			return c
		}
	}
	t.Fatalf("session cookie not written")
	return nil
}

func TestRequireAuth(t *testing.T) {
	mgr := newTestManager(t)
	auth := &mockAuthenticator{token: "valid", user: &User{UID: "user-1"}}

	handler := HTMX()(Session(mgr)(RequireAuth(auth, "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Fatalf("expected user in context")
		}
		_, _ = w.Write([]byte(user.Identifier))
	}))))

	t.Run("missing token redirects", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rr.Code)
		}
		if location := rr.Header().Get("Location"); location != "/login" {
			t.Fatalf("expected redirect to /login, got %s", location)
		}
	})

	t.Run("htmx unauthorized returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if rr.Header().Get("HX-Redirect") != "/login" {
			t.Fatalf("expected HX-Redirect header to /login")
		}
	})

	t.Run("session token passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(sessionCookie(t, mgr, func(s *appsession.Session) {
			s.SetAuth("valid", "a@b.com", s.CreatedAt())
		}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if body := rr.Body.String(); body != "a@b.com" {
			t.Fatalf("expected identifier from session, got %q", body)
		}
	})

	t.Run("forged bearer without session redirects", func(t *testing.T) {
		passthrough := HTMX()(Session(mgr)(RequireAuth(PassthroughAuthenticator(), "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("handler must not run for a header-only token")
		}))))
		for name, h := range map[string]http.Handler{"verifying": handler, "passthrough": passthrough} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer valid")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusSeeOther {
				t.Fatalf("%s: expected 303, got %d", name, rr.Code)
			}
			if location := rr.Header().Get("Location"); location != "/login" {
				t.Fatalf("%s: expected redirect to /login, got %s", name, location)
			}
		}
	})

	t.Run("expired token redirects with reason", func(t *testing.T) {
		auth.err = NewAuthError(ReasonTokenExpired, errors.New("expired"))
		defer func() { auth.err = nil }()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(sessionCookie(t, mgr, func(s *appsession.Session) {
			s.SetAuth("valid", "a@b.com", s.CreatedAt())
		}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rr.Code)
		}
		if location := rr.Header().Get("Location"); location != "/login?reason=expired" {
			t.Fatalf("unexpected location %s", location)
		}

		// The rejected token must not survive in the rewritten cookie.
		next := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rr.Result().Cookies() {
			next.AddCookie(c)
		}
		sess, err := mgr.Load(next)
		if err != nil {
			t.Fatalf("load session: %v", err)
		}
		if sess.SignedIn() {
			t.Fatalf("expected auth to be cleared")
		}
	})
}

func TestCSRFMiddleware(t *testing.T) {
	mw := CSRF(CSRFConfig{CookieName: "csrf", HeaderName: "X-CSRF-Token"})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CSRFTokenFromContext(r.Context()) == "" {
			t.Fatalf("expected token in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("issues cookie on GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		rr := httptest.NewRecorder()
		mw(ok).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		found := false
		for _, c := range rr.Result().Cookies() {
			if c.Name == "csrf" && c.Value != "" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected csrf cookie")
		}
	})

	t.Run("rejects POST without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.AddCookie(&http.Cookie{Name: "csrf", Value: "token"})
		rr := httptest.NewRecorder()
		mw(ok).ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("accepts matching header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.AddCookie(&http.Cookie{Name: "csrf", Value: "token"})
		req.Header.Set("X-CSRF-Token", "token")
		rr := httptest.NewRecorder()
		mw(ok).ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("accepts matching form field", func(t *testing.T) {
		form := url.Values{CSRFFormField: {"token"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: "csrf", Value: "token"})
		rr := httptest.NewRecorder()
		mw(ok).ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("rejects mismatched form field", func(t *testing.T) {
		form := url.Values{CSRFFormField: {"other"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: "csrf", Value: "token"})
		rr := httptest.NewRecorder()
		mw(ok).ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})
}

func TestSessionMiddlewareWritesCookieBeforeBody(t *testing.T) {
	mgr := newTestManager(t)
	handler := Session(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatalf("expected session in context")
		}
		sess.AddFlash(appsession.ToneSuccess, "hello")
		_, _ = w.Write([]byte("body"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "ssm_session" {
		t.Fatalf("expected session cookie, got %#v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	flashes := sess.PopFlashes()
	if len(flashes) != 1 || flashes[0].Message != "hello" {
		t.Fatalf("unexpected flashes %#v", flashes)
	}
}

func TestHTMXHelpers(t *testing.T) {
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := TriggerToasts(w, Toast{Message: "first", Tone: "info"}, Toast{Message: "Login successful.", Tone: "success"}); err != nil {
			t.Fatalf("trigger: %v", err)
		}
		Redirect(w, r, "/")
	}))

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rr.Code)
		}
		if rr.Header().Get("HX-Redirect") != "/" {
			t.Fatalf("expected HX-Redirect to /")
		}
		var payload map[string]Toast
		if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &payload); err != nil {
			t.Fatalf("decode trigger: %v", err)
		}
		if payload["toast"].Message != "Login successful." {
			t.Fatalf("unexpected toast %#v", payload)
		}
	})

	t.Run("plain request gets 303", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rr.Code)
		}
		if rr.Header().Get("Location") != "/" {
			t.Fatalf("expected Location /")
		}
	})
}

func TestNoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	NoStore()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))

	if got := rr.Header().Get("Cache-Control"); got != "no-store, max-age=0" {
		t.Fatalf("unexpected Cache-Control %q", got)
	}
	if got := rr.Header().Get("Pragma"); got != "no-cache" {
		t.Fatalf("unexpected Pragma %q", got)
	}
}
