package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/alfeusrudyanta/simple-social-media/internal/authclient"
	"github.com/alfeusrudyanta/simple-social-media/internal/config"
	"github.com/alfeusrudyanta/simple-social-media/internal/httpserver"
	"github.com/alfeusrudyanta/simple-social-media/internal/httpserver/middleware"
	"github.com/alfeusrudyanta/simple-social-media/internal/login"
	"github.com/alfeusrudyanta/simple-social-media/internal/messages"
	"github.com/alfeusrudyanta/simple-social-media/internal/observability"
	appsession "github.com/alfeusrudyanta/simple-social-media/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "web: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	rootCtx := context.Background()

	authClient, err := buildAuthClient(cfg)
	if err != nil {
		return err
	}

	sessions, err := buildSessionManager(cfg, logger)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(cfg.Pages.MessagesFile, logger)
	if err != nil {
		return err
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:           cfg.Server.Address,
		HomePath:          cfg.Pages.HomePath,
		LoginPath:         cfg.Pages.LoginPath,
		RegisterURL:       cfg.Pages.RegisterURL,
		MinPasswordLength: cfg.Pages.MinPasswordLength,
		AuthClient:        authClient,
		Authenticator:     buildAuthenticator(rootCtx, cfg, logger),
		Sessions:          sessions,
		Logger:            logger,
		Catalog:           catalog,
		CSRFCookieSecure:  cfg.Session.CookieSecure,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("web server listening",
		zap.String("addr", cfg.Server.Address),
		zap.String("environment", cfg.Server.Environment),
		zap.String("auth_backend", cfg.Auth.Backend),
	)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("web server stopped")
	return nil
}

func buildAuthClient(cfg config.Config) (login.AuthClient, error) {
	switch cfg.Auth.Backend {
	case config.BackendHTTP:
		return authclient.NewHTTPClient(cfg.Auth.BaseURL,
			authclient.WithLoginPath(cfg.Auth.LoginPath),
			authclient.WithTimeout(cfg.Auth.Timeout),
		)
	case config.BackendIdentityToolkit:
		return authclient.NewIdentityToolkitClient(cfg.Firebase.APIKey, "", cfg.Auth.Timeout, nil)
	case config.BackendStatic:
		return authclient.NewStaticClient(cfg.Auth.StaticAccounts), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Auth.Backend)
	}
}

func buildSessionManager(cfg config.Config, logger *zap.Logger) (*appsession.Manager, error) {
	hashKey := cfg.Session.HashKey
	blockKey := cfg.Session.BlockKey
	if len(hashKey) == 0 {
		logger.Warn("WEB_SESSION_HASH_KEY not set; sessions will not survive a restart")
		hashKey = appsession.GenerateKey(32)
		if len(blockKey) == 0 {
			blockKey = appsession.GenerateKey(32)
		}
	}
	return appsession.NewManager(appsession.Config{
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.CookieSecure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
}

func loadCatalog(path string, logger *zap.Logger) (*messages.Catalog, error) {
	if path == "" {
		return messages.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	logger.Info("loading message overrides", zap.String("path", path))
	return messages.Load(f)
}

func buildAuthenticator(ctx context.Context, cfg config.Config, logger *zap.Logger) middleware.Authenticator {
	projectID := cfg.Firebase.ProjectID
	if projectID == "" {
		logger.Info("WEB_FIREBASE_PROJECT_ID not set; using passthrough authenticator")
		return nil
	}
	// Only Identity Toolkit sign-ins hand out Firebase ID tokens.
	if cfg.Auth.Backend != config.BackendIdentityToolkit {
		logger.Info("auth backend does not issue Firebase ID tokens; using passthrough authenticator",
			zap.String("auth_backend", cfg.Auth.Backend))
		return nil
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		logger.Warn("failed to initialise Firebase app", zap.Error(err))
		return nil
	}

	client, err := app.Auth(ctx)
	if err != nil {
		logger.Warn("failed to initialise Firebase auth client", zap.Error(err))
		return nil
	}

	logger.Info("Firebase authenticator enabled", zap.String("project", projectID))
	return middleware.NewFirebaseAuthenticator(client)
}
