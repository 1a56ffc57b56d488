package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile           = ".env"
	defaultAddress           = ":8080"
	defaultEnvironment       = "development"
	defaultHomePath          = "/"
	defaultLoginPath         = "/login"
	defaultRegisterURL       = "/register"
	defaultMinPasswordLength = 8
	defaultIdleTimeout       = 30 * time.Minute
	defaultLifetime          = 12 * time.Hour
	defaultAuthBackend       = BackendStatic
	defaultAuthLoginPath     = "/auth/login"
	defaultAuthTimeout       = 10 * time.Second
	defaultStaticAccounts    = "demo@example.com:password123"
	defaultLogLevel          = "info"
)

// Auth backend identifiers accepted by WEB_AUTH_BACKEND.
const (
	BackendStatic          = "static"
	BackendHTTP            = "http"
	BackendIdentityToolkit = "identitytoolkit"
)

// Config captures runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Pages    PageConfig
	Session  SessionConfig
	Auth     AuthConfig
	Firebase FirebaseConfig
	LogLevel string
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address     string
	Environment string
}

// PageConfig holds the paths the sign-in page links and redirects to.
type PageConfig struct {
	HomePath          string
	LoginPath         string
	RegisterURL       string
	MinPasswordLength int
	MessagesFile      string
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	HashKey      []byte
	BlockKey     []byte
	CookieSecure bool
	IdleTimeout  time.Duration
	Lifetime     time.Duration
}

// AuthConfig selects and configures the authentication backend.
type AuthConfig struct {
	Backend        string
	BaseURL        string
	LoginPath      string
	Timeout        time.Duration
	StaticAccounts map[string]string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	APIKey          string
	CredentialsFile string
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Server.Environment) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// ValidationError is returned when configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values taking precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, the .env file, the process
// environment and explicit overrides, in increasing precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnv[key]; ok {
			return value, true
		}
		return "", false
	}

	var invalid []string

	hashKey, err := keyWithDefault(lookup, "WEB_SESSION_HASH_KEY")
	if err != nil {
		invalid = append(invalid, "Session.HashKey")
	}
	blockKey, err := keyWithDefault(lookup, "WEB_SESSION_BLOCK_KEY")
	if err != nil {
		invalid = append(invalid, "Session.BlockKey")
	}

	cfg := Config{
		Server: ServerConfig{
			Address:     stringWithDefault(lookup, "WEB_HTTP_ADDR", defaultAddress),
			Environment: stringWithDefault(lookup, "WEB_ENV", defaultEnvironment),
		},
		Pages: PageConfig{
			HomePath:          stringWithDefault(lookup, "WEB_HOME_PATH", defaultHomePath),
			LoginPath:         stringWithDefault(lookup, "WEB_LOGIN_PATH", defaultLoginPath),
			RegisterURL:       stringWithDefault(lookup, "WEB_REGISTER_URL", defaultRegisterURL),
			MinPasswordLength: intWithDefault(lookup, "WEB_MIN_PASSWORD_LENGTH", defaultMinPasswordLength),
			MessagesFile:      stringWithDefault(lookup, "WEB_MESSAGES_FILE", ""),
		},
		Session: SessionConfig{
			HashKey:      hashKey,
			BlockKey:     blockKey,
			CookieSecure: boolWithDefault(lookup, "WEB_SESSION_COOKIE_SECURE", false),
			IdleTimeout:  durationWithDefault(lookup, "WEB_SESSION_IDLE_TIMEOUT", defaultIdleTimeout),
			Lifetime:     durationWithDefault(lookup, "WEB_SESSION_LIFETIME", defaultLifetime),
		},
		Auth: AuthConfig{
			Backend:        strings.ToLower(stringWithDefault(lookup, "WEB_AUTH_BACKEND", defaultAuthBackend)),
			BaseURL:        stringWithDefault(lookup, "WEB_AUTH_BASE_URL", ""),
			LoginPath:      stringWithDefault(lookup, "WEB_AUTH_LOGIN_PATH", defaultAuthLoginPath),
			Timeout:        durationWithDefault(lookup, "WEB_AUTH_TIMEOUT", defaultAuthTimeout),
			StaticAccounts: accountsWithDefault(lookup, "WEB_STATIC_ACCOUNTS", defaultStaticAccounts),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "WEB_FIREBASE_PROJECT_ID", ""),
			APIKey:          stringWithDefault(lookup, "WEB_FIREBASE_API_KEY", ""),
			CredentialsFile: stringWithDefault(lookup, "WEB_FIREBASE_CREDENTIALS_FILE", ""),
		},
		LogLevel: stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	invalid = append(invalid, validate(cfg)...)
	if len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}

func validate(cfg Config) []string {
	var invalid []string

	if !strings.HasPrefix(cfg.Pages.HomePath, "/") {
		invalid = append(invalid, "Pages.HomePath")
	}
	if !strings.HasPrefix(cfg.Pages.LoginPath, "/") || cfg.Pages.LoginPath == cfg.Pages.HomePath {
		invalid = append(invalid, "Pages.LoginPath")
	}
	if cfg.Pages.MinPasswordLength <= 0 {
		invalid = append(invalid, "Pages.MinPasswordLength")
	}
	if cfg.Session.IdleTimeout <= 0 {
		invalid = append(invalid, "Session.IdleTimeout")
	}
	if cfg.Session.Lifetime <= 0 {
		invalid = append(invalid, "Session.Lifetime")
	}
	if cfg.IsProduction() && len(cfg.Session.HashKey) == 0 {
		invalid = append(invalid, "Session.HashKey")
	}
	if n := len(cfg.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		invalid = append(invalid, "Session.BlockKey")
	}

	switch cfg.Auth.Backend {
	case BackendStatic:
		if cfg.IsProduction() {
			invalid = append(invalid, "Auth.Backend")
		}
	case BackendHTTP:
		if u, err := url.Parse(cfg.Auth.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid = append(invalid, "Auth.BaseURL")
		}
	case BackendIdentityToolkit:
		if cfg.Firebase.APIKey == "" {
			invalid = append(invalid, "Firebase.APIKey")
		}
	default:
		invalid = append(invalid, "Auth.Backend")
	}
	if cfg.Auth.Timeout <= 0 {
		invalid = append(invalid, "Auth.Timeout")
	}
	return invalid
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

// accountsWithDefault parses "email:password" pairs separated by commas.
func accountsWithDefault(lookup func(string) (string, bool), key, fallback string) map[string]string {
	raw := stringWithDefault(lookup, key, fallback)
	accounts := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		email, password, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || password == "" {
			continue
		}
		accounts[email] = password
	}
	return accounts
}

// keyWithDefault decodes a hex or base64 key. Unset keys yield nil.
func keyWithDefault(lookup func(string) (string, bool), key string) ([]byte, error) {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("config: %s is neither hex nor base64", key)
}
