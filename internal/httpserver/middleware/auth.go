package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/alfeusrudyanta/simple-social-media/internal/observability"
)

type userContextKey struct{}

// User is the signed-in account resolved from the session token.
type User struct {
	UID        string
	Identifier string
	Token      string
}

// Authenticator resolves a stored token into a User.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// ErrUnauthorized is returned when authentication fails.
var ErrUnauthorized = errors.New("unauthorized")

// AuthError contains reason codes for failed authentication attempts.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError with the provided reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

const (
	// ReasonMissingToken indicates a request without a stored token.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or rejected token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token which a fresh login fixes.
	ReasonTokenExpired = "token_expired"
)

// PassthroughAuthenticator trusts any non-empty token. Used when tokens are
// issued by a backend this server cannot verify on its own.
func PassthroughAuthenticator() Authenticator {
	return passthroughAuthenticator{}
}

// RequireAuth lets signed-in requests through and sends everyone else to loginPath.
// Only the session token counts; request headers are never consulted.
func RequireAuth(authenticator Authenticator, loginPath string) func(http.Handler) http.Handler {
	if authenticator == nil {
		authenticator = PassthroughAuthenticator()
	}
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := observability.FromContext(r.Context())

			sess, _ := SessionFromContext(r.Context())
			token := ""
			identifier := ""
			if sess != nil {
				token = sess.Token()
				identifier = sess.Identifier()
			}
			if strings.TrimSpace(token) == "" {
				logger.Debug("auth required", zap.String("reason", ReasonMissingToken))
				handleUnauthorized(w, r, loginPath, ReasonMissingToken)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil || user == nil {
				reason := ReasonTokenInvalid
				var authErr *AuthError
				if errors.As(err, &authErr) && authErr.Reason != "" {
					reason = authErr.Reason
				}
				if err == nil {
					err = ErrUnauthorized
				}
				logger.Info("auth failure", zap.String("reason", reason), zap.Error(err))
				if sess != nil {
					sess.ClearAuth()
				}
				handleUnauthorized(w, r, loginPath, reason)
				return
			}
			if user.Identifier == "" {
				user.Identifier = identifier
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*User)
	return user, ok && user != nil
}

func handleUnauthorized(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	target := loginPath
	if reason == ReasonTokenExpired {
		if u, err := url.Parse(loginPath); err == nil {
			q := u.Query()
			q.Set("reason", "expired")
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}

	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type passthroughAuthenticator struct{}

func (passthroughAuthenticator) Authenticate(_ context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	return &User{Token: token}, nil
}
