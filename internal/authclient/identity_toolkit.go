package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfeusrudyanta/simple-social-media/internal/login"
)

const defaultIdentityToolkitEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// Identity Toolkit error codes that mean the credentials were turned down.
var rejectionCodes = map[string]struct{}{
	"EMAIL_NOT_FOUND":           {},
	"INVALID_PASSWORD":          {},
	"INVALID_EMAIL":             {},
	"INVALID_LOGIN_CREDENTIALS": {},
	"USER_DISABLED":             {},
	"MISSING_PASSWORD":          {},
}

// IdentityToolkitClient signs users in with Firebase email/password accounts.
// The returned ID token can later be verified with the Firebase Admin SDK.
type IdentityToolkitClient struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   Doer
	tracer   trace.Tracer
}

// NewIdentityToolkitClient constructs a client for the given Web API key.
// An empty endpoint selects the public Google endpoint.
func NewIdentityToolkitClient(apiKey, endpoint string, timeout time.Duration, doer Doer) (*IdentityToolkitClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("authclient: firebase api key is required")
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultIdentityToolkitEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("authclient: parse endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &IdentityToolkitClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		client:   doer,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken string `json:"idToken"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Login exchanges the credentials for a Firebase ID token.
func (c *IdentityToolkitClient) Login(ctx context.Context, creds login.Credentials) (login.Result, error) {
	ctx, span := c.tracer.Start(ctx, "authclient.IdentityToolkit.Login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return recordError(span, login.Result{}, fmt.Errorf("authclient: parse endpoint: %w", err))
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := newJSONRequest(ctx, http.MethodPost, endpoint.String(), signInRequest{
		Email:             creds.Email,
		Password:          creds.Password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return recordError(span, login.Result{}, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return recordError(span, login.Result{}, fmt.Errorf("authclient: request failed: %w", redactKey(err, c.apiKey)))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return recordError(span, login.Result{}, fmt.Errorf("authclient: read response: %w", err))
	}

	var payload signInResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return recordError(span, login.Result{}, &BackendError{StatusCode: resp.StatusCode, Message: "malformed identity toolkit response"})
	}

	if resp.StatusCode == http.StatusOK {
		return login.Result{Token: strings.TrimSpace(payload.IDToken)}, nil
	}

	if payload.Error != nil {
		code := errorCode(payload.Error.Message)
		if _, ok := rejectionCodes[code]; ok && resp.StatusCode == http.StatusBadRequest {
			span.SetAttributes(attribute.Bool("auth.succeeded", false))
			return login.Result{Message: code}, nil
		}
		return recordError(span, login.Result{}, &BackendError{StatusCode: resp.StatusCode, Code: code, Message: sanitizeMessage(payload.Error.Message)})
	}
	return recordError(span, login.Result{}, &BackendError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)})
}

// errorCode strips the optional " : detail" suffix Identity Toolkit appends.
func errorCode(message string) string {
	code, _, _ := strings.Cut(message, ":")
	return strings.TrimSpace(code)
}

// redactKey removes the API key from errors that embed the request URL.
func redactKey(err error, key string) error {
	if err == nil || key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
