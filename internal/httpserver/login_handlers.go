package httpserver

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "github.com/alfeusrudyanta/simple-social-media/internal/httpserver/middleware"
	"github.com/alfeusrudyanta/simple-social-media/internal/login"
	"github.com/alfeusrudyanta/simple-social-media/internal/messages"
	"github.com/alfeusrudyanta/simple-social-media/internal/observability"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/auth"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/partials"
)

type loginHandlers struct {
	registry    *login.Registry
	catalog     *messages.Catalog
	homePath    string
	loginPath   string
	registerURL string
	minLength   int
	now         func() time.Time
}

func (h *loginHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess.SignedIn() {
		http.Redirect(w, r, h.homePath, http.StatusSeeOther)
		return
	}

	data := h.pageData(r, "")
	data.Notice = h.noticeForQuery(r.URL.Query())
	h.render(w, r, data, http.StatusOK)
}

func (h *loginHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	sess, ok := custommw.SessionFromContext(ctx)
	if !ok {
		logger.Error("login submit without session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		logger.Warn("login form parse failed", zap.Error(err))
		data := h.pageData(r, "")
		data.Error = h.catalog.Text(messages.FormInvalid)
		h.render(w, r, data, http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	form, release := h.registry.Acquire(sess.ID())
	defer release()

	notifier := &toastNotifier{}
	nav := &redirector{}
	outcome := form.Submit(ctx, email, password, login.Effects{
		Sessions:  sessionWriter{sess: sess, now: h.now},
		Navigator: nav,
		Notifier:  notifier,
	})
	if outcome == login.Busy {
		notifier.Error(h.catalog.Text(messages.LoginInProgress))
	}

	if outcome == login.Succeeded {
		notifier.persist(sess)
		target := nav.target
		if target == "" {
			target = h.homePath
		}
		custommw.Redirect(w, r, target)
		return
	}

	if custommw.IsHTMXRequest(ctx) {
		if err := custommw.TriggerToasts(w, notifier.triggers()...); err != nil {
			logger.Warn("toast trigger encode failed", zap.Error(err))
		}
	}

	data := h.pageData(r, email)
	data.Error = notifier.lastError()
	data.Toasts = append(data.Toasts, notifier.toasts...)
	h.render(w, r, data, statusForOutcome(outcome))
}

func statusForOutcome(outcome login.Outcome) int {
	switch outcome {
	case login.Rejected:
		return http.StatusUnprocessableEntity
	case login.Failed:
		return http.StatusUnauthorized
	case login.Errored:
		return http.StatusBadGateway
	case login.Busy:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

func (h *loginHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.Destroy()
	}
	custommw.Redirect(w, r, h.loginURLWithParams(map[string]string{"status": "logged_out"}))
}

func (h *loginHandlers) pageData(r *http.Request, email string) auth.LoginPageData {
	var toasts []partials.Toast
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		toasts = flashesToToasts(sess.PopFlashes())
	}
	return auth.LoginPageData{
		Email:             email,
		LoginPath:         h.loginPath,
		RegisterURL:       h.registerURL,
		CSRFToken:         custommw.CSRFTokenFromContext(r.Context()),
		MinPasswordLength: h.minLength,
		Toasts:            toasts,
	}
}

// render sends htmx requests just the form; everyone else gets the full page.
func (h *loginHandlers) render(w http.ResponseWriter, r *http.Request, data auth.LoginPageData, status int) {
	var component templ.Component
	if custommw.IsHTMXRequest(r.Context()) {
		component = auth.LoginForm(data)
	} else {
		component = auth.LoginPage(data)
	}
	templ.Handler(component, templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *loginHandlers) noticeForQuery(q url.Values) string {
	if q.Get("status") == "logged_out" {
		return h.catalog.Text(messages.LoggedOut)
	}
	switch q.Get("reason") {
	case "expired", custommw.ReasonTokenExpired:
		return h.catalog.Text(messages.SessionExpired)
	case custommw.ReasonMissingToken:
		return h.catalog.Text(messages.LoginRequired)
	default:
		return ""
	}
}

func (h *loginHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
