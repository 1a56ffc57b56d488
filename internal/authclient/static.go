package authclient

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/alfeusrudyanta/simple-social-media/internal/login"
)

// StaticClient authenticates against an in-memory account table. It is meant
// for local development when no backend is configured.
type StaticClient struct {
	accounts map[string]string
}

// NewStaticClient constructs a StaticClient. Emails are matched case-insensitively.
func NewStaticClient(accounts map[string]string) *StaticClient {
	normalized := make(map[string]string, len(accounts))
	for email, password := range accounts {
		normalized[strings.ToLower(strings.TrimSpace(email))] = password
	}
	return &StaticClient{accounts: normalized}
}

// Login returns a fresh opaque token when the pair matches a known account.
func (s *StaticClient) Login(ctx context.Context, creds login.Credentials) (login.Result, error) {
	if err := ctx.Err(); err != nil {
		return login.Result{}, err
	}
	want, ok := s.accounts[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(creds.Password)) != 1 {
		return login.Result{Message: "unknown account or wrong password"}, nil
	}
	return login.Result{Token: "static-" + ulid.Make().String()}, nil
}
