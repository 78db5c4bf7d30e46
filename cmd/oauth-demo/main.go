package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/authlabs/go-oauth-demo/internal/config"
	"github.com/authlabs/go-oauth-demo/internal/server"
	"github.com/authlabs/go-oauth-demo/oidc"
	"github.com/authlabs/go-oauth-demo/session"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "oauth-demo",
		Level: hclog.LevelFromString(os.Getenv("LOG_LEVEL")),
	})
	if err := run(logger); err != nil {
		logger.Error("error running server", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger hclog.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	logger.Info("configuration loaded", "config", cfg)
	if !cfg.Configured() {
		logger.Warn("provider settings are missing; running degraded, flows are disabled")
	}

	store, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Done()
	}

	srv, err := server.New(cfg, logger, provider, store)
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("httpServer.ListenAndServe: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stopSignal():
		logger.Info("shutting down", "signal", sig.String())
	}
	return shutdown(httpServer)
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger hclog.Logger) (session.Store, error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory session store; sessions will not survive the process")
		return session.NewInmemStore(), nil
	}
	store, err := session.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create redis session store: %w", err)
	}
	logger.Info("using redis session store")
	return store, nil
}

func newProvider(cfg *config.Config, logger hclog.Logger) (*oidc.Provider, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	pc, err := oidc.NewConfig(
		cfg.Issuer(),
		cfg.ClientID,
		oidc.ClientSecret(cfg.ClientSecret),
		cfg.RedirectURI,
		oidc.WithProviderCA(cfg.ProviderCA),
		oidc.WithLogger(logger.Named("oidc")),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}
	p, err := oidc.NewProvider(pc)
	if err != nil {
		return nil, fmt.Errorf("unable to reach the provider: %w", err)
	}
	return p, nil
}

func stopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpServer.Shutdown: %w", err)
	}
	return nil
}
