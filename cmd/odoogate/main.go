// Command odoogate runs the authentication gateway: it verifies credentials
// against an upstream Odoo server, issues session and signed tokens, and
// serves the HTTP surface with a background session reaper.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/odoogate/odoogate"
	"github.com/odoogate/odoogate/instrumentation"
	"github.com/odoogate/odoogate/security"
	"github.com/odoogate/odoogate/storage/memory"
	"github.com/odoogate/odoogate/token"
	"github.com/odoogate/odoogate/verifier/odoo"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "odoogate:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a development convenience; absence is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := &odoogate.Config{}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)

	// Outside production a missing secret gets a generated fallback so dev
	// setups work out of the box. Tokens won't survive a restart.
	if cfg.SigningSecret == "" {
		secret, err := generateSecret()
		if err != nil {
			return fmt.Errorf("generate signing secret: %w", err)
		}
		cfg.SigningSecret = secret
		logger.Warn("JWT_SECRET not set; using a generated secret, tokens will not survive restarts")
	}

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName: odoogate.ServiceName,
		Enabled:     cfg.EnableInstrumentation,
	})
	if err != nil {
		return fmt.Errorf("init instrumentation: %w", err)
	}

	upstream, err := odoo.New(odoo.Config{
		BaseURL:         cfg.OdooURL,
		Port:            cfg.OdooPort,
		Database:        cfg.OdooDatabase,
		Logger:          logger,
		Instrumentation: inst,
	})
	if err != nil {
		return fmt.Errorf("init odoo verifier: %w", err)
	}

	sessions := memory.New()
	sessions.SetLogger(logger)
	if err := sessions.SetInstrumentation(inst); err != nil {
		return fmt.Errorf("wire session metrics: %w", err)
	}

	issuer, err := token.NewIssuer([]byte(cfg.SigningSecret))
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	server, err := odoogate.NewServer(upstream, sessions, issuer, cfg, logger)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	server.SetInstrumentation(inst)

	auditor := security.NewAuditor(logger, true)
	server.SetAuditor(auditor)

	handler := odoogate.NewHandler(server, logger)
	defer handler.Stop()

	reaper := odoogate.NewReaper(sessions, cfg.ReaperInterval, cfg.SessionIdleTimeout, logger)
	reaper.SetAuditor(auditor)
	reaper.Start()
	defer reaper.Stop()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"odoo_url", cfg.OdooURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	reaper.Stop()
	if err := inst.Shutdown(ctx); err != nil {
		logger.Error("Instrumentation shutdown failed", "error", err)
	}

	logger.Info("Gateway stopped")
	return nil
}

func logLevel(cfg *odoogate.Config) slog.Level {
	if cfg.IsProduction() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
