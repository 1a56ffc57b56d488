package login

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/alfeusrudyanta/simple-social-media/internal/messages"
)

const (
	defaultMinPasswordLength = 8
	defaultHomePath          = "/"
)

var (
	// ErrUnknownField is returned when OnFieldChange receives a field other than email or password.
	ErrUnknownField = errors.New("login: unknown field")
	// ErrSubmitting is returned when a field changes while a submission is in flight.
	ErrSubmitting = errors.New("login: submission in progress")
)

// Field selects one input of the login form.
type Field string

const (
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
)

// State is the form state owned by a single Form.
type State struct {
	Email      string
	Password   string
	Submitting bool
}

// Outcome reports how a single submit attempt resolved.
type Outcome int

const (
	// Busy means another submission of the same form was still in flight.
	Busy Outcome = iota
	// Rejected means the input failed validation before any network call.
	Rejected
	// Succeeded means a session was stored and the user was redirected.
	Succeeded
	// Failed means the backend answered without a token.
	Failed
	// Errored means the backend call (or the session write) failed.
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Busy:
		return "busy"
	case Rejected:
		return "rejected"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Effects bundles the collaborators a submit attempt reports to.
type Effects struct {
	Sessions  SessionStore
	Navigator Navigator
	Notifier  Notifier
}

// Form holds the state of one login form instance and runs its submissions.
type Form struct {
	auth      AuthClient
	logger    *zap.Logger
	catalog   *messages.Catalog
	minLength int
	homePath  string

	mu    sync.Mutex
	state State
}

// Option customises a Form.
type Option func(*Form)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMinPasswordLength overrides the minimum accepted password length.
func WithMinPasswordLength(n int) Option {
	return func(f *Form) {
		if n > 0 {
			f.minLength = n
		}
	}
}

// WithHomePath sets the path users land on after signing in.
func WithHomePath(path string) Option {
	return func(f *Form) {
		if path != "" {
			f.homePath = path
		}
	}
}

// WithCatalog sets the catalog notification texts are taken from.
func WithCatalog(catalog *messages.Catalog) Option {
	return func(f *Form) {
		if catalog != nil {
			f.catalog = catalog
		}
	}
}

// New constructs an idle Form backed by the provided AuthClient.
func New(auth AuthClient, opts ...Option) *Form {
	if auth == nil {
		panic("login: auth client is required")
	}
	f := &Form{
		auth:      auth,
		logger:    zap.NewNop(),
		catalog:   messages.Default(),
		minLength: defaultMinPasswordLength,
		homePath:  defaultHomePath,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns a snapshot of the current form state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnFieldChange stores value in the named field. Validation is deferred to submit time.
func (f *Form) OnFieldChange(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Submitting {
		return ErrSubmitting
	}
	switch field {
	case FieldEmail:
		f.state.Email = value
	case FieldPassword:
		f.state.Password = value
	default:
		return ErrUnknownField
	}
	return nil
}

// OnSubmit runs one submission attempt against the backend.
func (f *Form) OnSubmit(ctx context.Context, fx Effects) Outcome {
	creds, ok := f.begin(nil)
	if !ok {
		return Busy
	}
	defer f.finish()
	return f.run(ctx, creds, fx)
}

// Submit stores email and password and starts a submission under a single
// lock hold. Callers that share a Form use it so one attempt always carries
// its own credentials. While another attempt is pending it returns Busy and
// leaves the fields untouched.
func (f *Form) Submit(ctx context.Context, email, password string, fx Effects) Outcome {
	creds, ok := f.begin(&Credentials{Email: email, Password: password})
	if !ok {
		return Busy
	}
	defer f.finish()
	return f.run(ctx, creds, fx)
}

func (f *Form) run(ctx context.Context, creds Credentials, fx Effects) Outcome {
	notifier := fx.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}

	if utf8.RuneCountInString(creds.Password) < f.minLength {
		notifier.Error(f.catalog.Text(messages.PasswordTooShort, f.minLength))
		return Rejected
	}

	attempt := ulid.Make().String()
	logger := f.logger.With(zap.String("attempt_id", attempt), zap.String("email", creds.Email))

	result, err := f.auth.Login(ctx, creds)
	if err != nil {
		logger.Error("login request failed", zap.Error(err))
		notifier.Error(f.catalog.Text(messages.LoginFailed))
		return Errored
	}

	if !result.Succeeded() {
		logger.Info("login rejected by backend", zap.String("backend_message", result.Message))
		notifier.Error(f.catalog.Text(messages.InvalidCredentials))
		return Failed
	}

	if fx.Sessions == nil {
		logger.Error("login succeeded without a session store")
		notifier.Error(f.catalog.Text(messages.LoginFailed))
		return Errored
	}
	if err := fx.Sessions.Set(ctx, result.Token, creds.Email); err != nil {
		logger.Error("session write failed", zap.Error(err))
		notifier.Error(f.catalog.Text(messages.LoginFailed))
		return Errored
	}

	logger.Info("login succeeded")
	notifier.Success(f.catalog.Text(messages.LoginSucceeded))
	if fx.Navigator != nil {
		fx.Navigator.GoTo(f.homePath)
	}
	return Succeeded
}

// begin flips Submitting and snapshots the credentials. A non-nil input
// replaces the fields first.
func (f *Form) begin(input *Credentials) (Credentials, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Submitting {
		return Credentials{}, false
	}
	if input != nil {
		f.state.Email = input.Email
		f.state.Password = input.Password
	}
	f.state.Submitting = true
	return Credentials{Email: f.state.Email, Password: f.state.Password}, true
}

func (f *Form) finish() {
	f.mu.Lock()
	f.state.Submitting = false
	f.mu.Unlock()
}

type discardNotifier struct{}

func (discardNotifier) Success(string) {}
func (discardNotifier) Error(string)   {}
