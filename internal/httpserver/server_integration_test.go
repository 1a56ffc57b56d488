package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/alfeusrudyanta/simple-social-media/internal/login"
	"github.com/alfeusrudyanta/simple-social-media/internal/testutil"
)

type page struct {
	status int
	header http.Header
	doc    *goquery.Document
}

func get(t *testing.T, client *http.Client, target string) page {
	t.Helper()

	resp, err := client.Get(target)
	require.NoError(t, err)
	return readPage(t, resp)
}

func readPage(t *testing.T, resp *http.Response) page {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return page{status: resp.StatusCode, header: resp.Header, doc: testutil.ParseHTML(t, body)}
}

// csrfToken loads the login page and returns the token embedded in the form.
func csrfToken(t *testing.T, client *http.Client, base string) string {
	t.Helper()

	p := get(t, client, base+"/login")
	require.Equal(t, http.StatusOK, p.status)
	token := p.doc.Find(`form#login-form input[name="_csrf"]`).AttrOr("value", "")
	require.NotEmpty(t, token)
	return token
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values, htmx bool) page {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return readPage(t, resp)
}

func credentials(csrf, email, password string) url.Values {
	return url.Values{"_csrf": {csrf}, "email": {email}, "password": {password}}
}

func TestHomeRedirectsWithoutAuth(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	p := get(t, testutil.NewBrowser(t), ts.URL+"/")

	require.Equal(t, http.StatusSeeOther, p.status)
	require.Equal(t, "/login", p.header.Get("Location"))
}

func TestLoginPageRenders(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithRegisterURL("/signup"))
	p := get(t, testutil.NewBrowser(t), ts.URL+"/login")

	require.Equal(t, http.StatusOK, p.status)
	require.Equal(t, "no-store, max-age=0", p.header.Get("Cache-Control"))
	require.Equal(t, 1, p.doc.Find(`input[name="email"][type="email"]`).Length())
	require.Equal(t, 1, p.doc.Find(`input[name="password"][type="password"]`).Length())
	require.Equal(t, "/signup", p.doc.Find("a[data-register-link]").AttrOr("href", ""))
}

func TestLoginSuccessRedirectsHomeWithToast(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	browser := testutil.NewBrowser(t)
	csrf := csrfToken(t, browser, ts.URL)

	p := postForm(t, browser, ts.URL+"/login", credentials(csrf, testutil.DemoEmail, testutil.DemoPassword), false)
	require.Equal(t, http.StatusSeeOther, p.status)
	require.Equal(t, "/", p.header.Get("Location"))

	home := get(t, browser, ts.URL+"/")
	require.Equal(t, http.StatusOK, home.status)
	require.Equal(t, testutil.DemoEmail, strings.TrimSpace(home.doc.Find("[data-identifier]").Text()))
	toast := home.doc.Find("#toast-region [data-toast]")
	require.Equal(t, 1, toast.Length())
	require.Equal(t, "success", toast.AttrOr("data-tone", ""))
	require.Equal(t, "Login successful.", strings.TrimSpace(toast.Text()))

	again := get(t, browser, ts.URL+"/")
	require.Equal(t, 0, again.doc.Find("#toast-region [data-toast]").Length(), "flash toasts show once")

	loginAgain := get(t, browser, ts.URL+"/login")
	require.Equal(t, http.StatusSeeOther, loginAgain.status, "signed-in users skip the form")
}

func TestLoginFailureResponses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{name: "short password", email: testutil.DemoEmail, password: "short", status: http.StatusUnprocessableEntity, message: "Password must be at least 8 characters."},
		{name: "wrong password", email: testutil.DemoEmail, password: "password124", status: http.StatusUnauthorized, message: "Invalid credentials. Please try again."},
		{name: "unknown email", email: "nobody@example.com", password: "password123", status: http.StatusUnauthorized, message: "Invalid credentials. Please try again."},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := testutil.NewServer(t)
			browser := testutil.NewBrowser(t)
			csrf := csrfToken(t, browser, ts.URL)

			p := postForm(t, browser, ts.URL+"/login", credentials(csrf, tc.email, tc.password), false)
			require.Equal(t, tc.status, p.status)
			require.Equal(t, tc.message, strings.TrimSpace(p.doc.Find("[data-login-error]").Text()))
			require.Equal(t, tc.message, strings.TrimSpace(p.doc.Find("#toast-region [data-toast]").Text()))
			require.Equal(t, tc.email, p.doc.Find(`input[name="email"]`).AttrOr("value", ""), "email is kept")
			_, hasValue := p.doc.Find(`input[name="password"]`).Attr("value")
			require.False(t, hasValue, "password is cleared")

			home := get(t, browser, ts.URL+"/")
			require.Equal(t, http.StatusSeeOther, home.status, "no session is stored")
		})
	}
}

type erroringClient struct{}

func (erroringClient) Login(context.Context, login.Credentials) (login.Result, error) {
	return login.Result{}, errors.New("dial tcp: connection refused")
}

func TestLoginTransportErrorRespondsBadGateway(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t, testutil.WithAuthClient(erroringClient{}))
	browser := testutil.NewBrowser(t)
	csrf := csrfToken(t, browser, ts.URL)

	p := postForm(t, browser, ts.URL+"/login", credentials(csrf, "a@b.com", "longenough1"), false)
	require.Equal(t, http.StatusBadGateway, p.status)
	require.Equal(t, "Login failed. Please check your credentials.", strings.TrimSpace(p.doc.Find("[data-login-error]").Text()))
}

func TestLoginHTMX(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	browser := testutil.NewBrowser(t)
	csrf := csrfToken(t, browser, ts.URL)

	failed := postForm(t, browser, ts.URL+"/login", credentials(csrf, testutil.DemoEmail, "password124"), true)
	require.Equal(t, http.StatusUnauthorized, failed.status)
	require.Equal(t, 0, failed.doc.Find("title").Length(), "htmx receives the form fragment only")
	require.Equal(t, 1, failed.doc.Find("form#login-form").Length())

	var trigger map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(failed.header.Get("HX-Trigger")), &trigger))
	require.Equal(t, "Invalid credentials. Please try again.", trigger["toast"]["message"])
	require.Equal(t, "error", trigger["toast"]["tone"])

	ok := postForm(t, browser, ts.URL+"/login", credentials(csrf, testutil.DemoEmail, testutil.DemoPassword), true)
	require.Equal(t, http.StatusNoContent, ok.status)
	require.Equal(t, "/", ok.header.Get("HX-Redirect"))
}

func TestLoginRequiresCSRF(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	browser := testutil.NewBrowser(t)
	_ = csrfToken(t, browser, ts.URL)

	p := postForm(t, browser, ts.URL+"/login", credentials("forged", testutil.DemoEmail, testutil.DemoPassword), false)
	require.Equal(t, http.StatusForbidden, p.status)
}

type blockingClient struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (c *blockingClient) Login(ctx context.Context, creds login.Credentials) (login.Result, error) {
	c.calls.Add(1)
	c.started <- struct{}{}
	select {
	case <-c.release:
	case <-ctx.Done():
		return login.Result{}, ctx.Err()
	}
	return login.Result{Token: "tok-" + creds.Email}, nil
}

func TestConcurrentSubmitIsRejectedWhilePending(t *testing.T) {
	t.Parallel()

	client := &blockingClient{started: make(chan struct{}, 1), release: make(chan struct{})}
	ts := testutil.NewServer(t, testutil.WithAuthClient(client))
	browser := testutil.NewBrowser(t)
	csrf := csrfToken(t, browser, ts.URL)

	first := make(chan page, 1)
	go func() {
		first <- postForm(t, browser, ts.URL+"/login", credentials(csrf, "a@b.com", "longenough1"), false)
	}()

	select {
	case <-client.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first submission never reached the backend")
	}

	second := postForm(t, browser, ts.URL+"/login", credentials(csrf, "a@b.com", "longenough1"), false)
	require.Equal(t, http.StatusConflict, second.status)
	require.Equal(t, "Login is already in progress.", strings.TrimSpace(second.doc.Find("[data-login-error]").Text()))

	close(client.release)
	select {
	case p := <-first:
		require.Equal(t, http.StatusSeeOther, p.status)
	case <-time.After(5 * time.Second):
		t.Fatal("first submission never completed")
	}
	require.Equal(t, int32(1), client.calls.Load())
}

func TestLogout(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)
	browser := testutil.NewBrowser(t)
	csrf := csrfToken(t, browser, ts.URL)

	p := postForm(t, browser, ts.URL+"/login", credentials(csrf, testutil.DemoEmail, testutil.DemoPassword), false)
	require.Equal(t, http.StatusSeeOther, p.status)

	out := postForm(t, browser, ts.URL+"/logout", url.Values{"_csrf": {csrf}}, false)
	require.Equal(t, http.StatusSeeOther, out.status)
	require.Equal(t, "/login?status=logged_out", out.header.Get("Location"))

	notice := get(t, browser, ts.URL+"/login?status=logged_out")
	require.Equal(t, "You have been logged out.", strings.TrimSpace(notice.doc.Find("[data-login-notice]").Text()))

	home := get(t, browser, ts.URL+"/")
	require.Equal(t, http.StatusSeeOther, home.status)
}

func TestHealthzAndStatic(t *testing.T) {
	t.Parallel()

	ts := testutil.NewServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	for _, asset := range []string{"app.css", "form.js", "toast.js"} {
		resp, err = http.Get(ts.URL + "/public/static/" + asset)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, asset)
	}

	p := get(t, testutil.NewBrowser(t), ts.URL+"/login")
	p.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		require.True(t, strings.HasPrefix(src, "/public/static/"), "script %q is not served by this binary", src)
	})
}
