package httpserver

import (
	"net/http"

	"github.com/a-h/templ"

	custommw "github.com/alfeusrudyanta/simple-social-media/internal/httpserver/middleware"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/home"
)

type homeHandlers struct {
	logoutPath string
}

func (h *homeHandlers) Home(w http.ResponseWriter, r *http.Request) {
	data := home.PageData{
		LogoutPath: h.logoutPath,
		CSRFToken:  custommw.CSRFTokenFromContext(r.Context()),
	}
	if user, ok := custommw.UserFromContext(r.Context()); ok {
		data.Identifier = user.Identifier
	}
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		if data.Identifier == "" {
			data.Identifier = sess.Identifier()
		}
		data.Toasts = flashesToToasts(sess.PopFlashes())
	}
	templ.Handler(home.Page(data)).ServeHTTP(w, r)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
