package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfeusrudyanta/simple-social-media/internal/login"
)

const (
	defaultLoginPath = "/auth/login"
	defaultTimeout   = 10 * time.Second
	maxBodyBytes     = 1 << 16
	maxMessageBytes  = 256
	tracerName       = "github.com/alfeusrudyanta/simple-social-media/internal/authclient"
)

var messagePolicy = bluemonday.StrictPolicy()

// Doer matches the subset of http.Client used by the clients in this package.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// BackendError reports an unexpected response from the authentication backend.
type BackendError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authclient: backend error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("authclient: backend error (%d): %s", e.StatusCode, e.Message)
}

// HTTPClient implements login.AuthClient against the REST backend.
type HTTPClient struct {
	base      *url.URL
	loginPath string
	timeout   time.Duration
	client    Doer
	tracer    trace.Tracer
}

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithLoginPath overrides the endpoint credentials are posted to.
func WithLoginPath(path string) Option {
	return func(c *HTTPClient) {
		if strings.TrimSpace(path) != "" {
			c.loginPath = path
		}
	}
}

// WithTimeout bounds each login call.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDoer replaces the underlying HTTP client.
func WithDoer(doer Doer) Option {
	return func(c *HTTPClient) {
		if doer != nil {
			c.client = doer
		}
	}
}

// NewHTTPClient constructs a client for the backend rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("authclient: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("authclient: parse base URL: %w", err)
	}
	c := &HTTPClient{
		base:      parsed,
		loginPath: defaultLoginPath,
		timeout:   defaultTimeout,
		client:    http.DefaultClient,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Login posts the credentials and interprets the backend response.
func (c *HTTPClient) Login(ctx context.Context, creds login.Credentials) (login.Result, error) {
	ctx, span := c.tracer.Start(ctx, "authclient.Login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := newJSONRequest(ctx, http.MethodPost, c.resolve(c.loginPath), loginRequest{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		return recordError(span, login.Result{}, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return recordError(span, login.Result{}, fmt.Errorf("authclient: request failed: %w", err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return recordError(span, login.Result{}, fmt.Errorf("authclient: read response: %w", err))
	}

	var payload loginResponse
	decodeErr := json.Unmarshal(body, &payload)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return recordError(span, login.Result{}, fmt.Errorf("authclient: decode login response: %w", decodeErr))
		}
		result := login.Result{Token: strings.TrimSpace(payload.Token)}
		if !result.Succeeded() {
			result.Message = sanitizeMessage(payload.Message)
		}
		span.SetAttributes(attribute.Bool("auth.succeeded", result.Succeeded()))
		return result, nil
	case isRejection(resp.StatusCode) && decodeErr == nil:
		span.SetAttributes(attribute.Bool("auth.succeeded", false))
		return login.Result{Message: sanitizeMessage(payload.Message)}, nil
	default:
		return recordError(span, login.Result{}, backendError(resp.StatusCode, payload, body, decodeErr))
	}
}

func (c *HTTPClient) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	base := *c.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	return base.ResolveReference(ref).String()
}

func newJSONRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("authclient: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("authclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// isRejection lists statuses the backend uses to turn down credentials.
func isRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

func backendError(status int, payload loginResponse, body []byte, decodeErr error) error {
	if decodeErr == nil && payload.Message != "" {
		return &BackendError{StatusCode: status, Code: strings.TrimSpace(payload.Code), Message: sanitizeMessage(payload.Message)}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return &BackendError{StatusCode: status, Message: sanitizeMessage(text)}
	}
	return &BackendError{StatusCode: status, Message: http.StatusText(status)}
}

func sanitizeMessage(message string) string {
	cleaned := strings.TrimSpace(messagePolicy.Sanitize(message))
	if len(cleaned) <= maxMessageBytes {
		return cleaned
	}
	cut := maxMessageBytes
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return cleaned[:cut]
}

func recordError(span trace.Span, result login.Result, err error) (login.Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return result, err
}
