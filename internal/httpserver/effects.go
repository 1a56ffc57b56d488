package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/alfeusrudyanta/simple-social-media/internal/httpserver/middleware"
	appsession "github.com/alfeusrudyanta/simple-social-media/internal/session"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/partials"
)

var errNoSession = errors.New("httpserver: request has no session")

// sessionWriter stores the signed-in token on the request's cookie session.
type sessionWriter struct {
	sess *appsession.Session
	now  func() time.Time
}

func (s sessionWriter) Set(ctx context.Context, token, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.sess == nil {
		return errNoSession
	}
	s.sess.SetAuth(token, identifier, s.now())
	return nil
}

// redirector records where the form asked to navigate; the handler turns it
// into the actual redirect.
type redirector struct {
	target string
}

func (r *redirector) GoTo(path string) {
	r.target = path
}

// toastNotifier collects the toasts raised while handling one submission.
type toastNotifier struct {
	toasts []partials.Toast
}

func (n *toastNotifier) Success(message string) {
	n.toasts = append(n.toasts, partials.Toast{Tone: appsession.ToneSuccess, Message: message})
}

func (n *toastNotifier) Error(message string) {
	n.toasts = append(n.toasts, partials.Toast{Tone: appsession.ToneError, Message: message})
}

// lastError returns the most recent error toast, shown inline under the form.
func (n *toastNotifier) lastError() string {
	for i := len(n.toasts) - 1; i >= 0; i-- {
		if n.toasts[i].Tone == appsession.ToneError {
			return n.toasts[i].Message
		}
	}
	return ""
}

// persist carries the toasts across a redirect as session flashes.
func (n *toastNotifier) persist(sess *appsession.Session) {
	if sess == nil {
		return
	}
	for _, toast := range n.toasts {
		sess.AddFlash(toast.Tone, toast.Message)
	}
}

func (n *toastNotifier) triggers() []middleware.Toast {
	out := make([]middleware.Toast, 0, len(n.toasts))
	for _, toast := range n.toasts {
		out = append(out, middleware.Toast{Message: toast.Message, Tone: toast.Tone})
	}
	return out
}

func flashesToToasts(flashes []appsession.Flash) []partials.Toast {
	if len(flashes) == 0 {
		return nil
	}
	out := make([]partials.Toast, 0, len(flashes))
	for _, flash := range flashes {
		out = append(out, partials.Toast{Tone: flash.Tone, Message: flash.Message})
	}
	return out
}
