package login

import (
	"context"

	"go.uber.org/zap/zapcore"
)

// Credentials is the ephemeral value sent to the AuthClient.
type Credentials struct {
	Email    string
	Password string
}

// String hides the password so credentials can be printed safely.
func (c Credentials) String() string {
	return "login.Credentials{Email:" + c.Email + ", Password:[redacted]}"
}

// MarshalLogObject implements zapcore.ObjectMarshaler without the password.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("email", c.Email)
	return nil
}

// Result is a well-formed answer from the authentication backend. An empty
// Token is the failure variant.
type Result struct {
	Token string
	// Message carries the backend's explanation for a failure, for diagnostics only.
	Message string
}

// Succeeded reports whether the backend issued a token.
func (r Result) Succeeded() bool {
	return r.Token != ""
}

// AuthClient exchanges credentials for a session token. Transport problems are
// returned as errors; a rejection is a Result without a token.
type AuthClient interface {
	Login(ctx context.Context, creds Credentials) (Result, error)
}

// SessionStore persists the signed-in session.
type SessionStore interface {
	Set(ctx context.Context, token, identifier string) error
}

// Navigator moves the user to another page.
type Navigator interface {
	GoTo(path string)
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}
