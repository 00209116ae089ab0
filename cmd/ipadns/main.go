// ipadns exercises the DNS management path of a FreeIPA server: it logs in
// over the JSON-RPC session API, adds a throwaway A record, optionally
// verifies it against the server's own DNS, and deletes it again. Run once
// as a smoke test, or on an interval as a long-lived canary with health and
// metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/ssh/terminal"

	"gitlab.bluewillows.net/root/ipadns/internal/config"
	"gitlab.bluewillows.net/root/ipadns/internal/health"
	"gitlab.bluewillows.net/root/ipadns/internal/metrics"
	"gitlab.bluewillows.net/root/ipadns/internal/verify"
	"gitlab.bluewillows.net/root/ipadns/pkg/freeipa"
	"gitlab.bluewillows.net/root/ipadns/pkg/httputil"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-23"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; missing is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("ipadns starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("host", cfg.Host),
		slog.String("zone", cfg.Zone),
		slog.Bool("verify", cfg.Verify),
		slog.Duration("interval", cfg.Interval),
	)

	if cfg.User == "" {
		return errors.New("no user configured: set IPADNS_USER")
	}

	password, err := resolvePassword(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TLSSkipVerify {
		logger.Warn("TLS certificate verification disabled; only use this against lab servers")
	}

	httpClient := httputil.NewClient(&httputil.ClientConfig{
		Timeout:       cfg.Timeout,
		TLSSkipVerify: cfg.TLSSkipVerify,
		Logger:        logger,
	})

	client := freeipa.NewClient(
		freeipa.WithHTTPClient(httpClient),
		freeipa.WithLogger(logger),
	)

	if err := client.SetHostname(cfg.Host); err != nil {
		return fmt.Errorf("configuring hostname: %w", err)
	}
	if err := client.SetVersion(cfg.APIVersion); err != nil {
		return fmt.Errorf("configuring api version: %w", err)
	}

	status, err := client.Login(ctx, cfg.User, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	logger.Info("login succeeded", slog.Int("status", status))

	if cfg.HealthPort > 0 {
		healthServer := health.New(cfg.HealthPort, health.WithLogger(logger))
		healthServer.RegisterChecker("freeipa", client.Ping)
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("starting health server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	var resolver *verify.Resolver
	if cfg.Verify {
		resolver = verify.New(cfg.Host, verify.WithLogger(logger))
	}

	if cfg.Interval <= 0 {
		return roundTrip(ctx, cfg, client, resolver, logger)
	}

	// Canary mode: repeat the round trip until interrupted. Individual
	// failures are logged and counted, not fatal.
	if err := roundTrip(ctx, cfg, client, resolver, logger); err != nil {
		logger.Error("round trip failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := roundTrip(ctx, cfg, client, resolver, logger); err != nil {
				logger.Error("round trip failed", slog.String("error", err.Error()))
			}
		}
	}
}

// roundTrip adds the throwaway A record, optionally verifies it over DNS,
// and deletes it again. The delete always runs, even when verification
// fails, so the canary does not leak records.
func roundTrip(ctx context.Context, cfg *config.Config, client *freeipa.Client, resolver *verify.Resolver, logger *slog.Logger) error {
	record := freeipa.ARecord{
		Zone:    cfg.Zone,
		Name:    cfg.Record,
		Address: cfg.Address,
	}
	fqdn := cfg.Record + "." + strings.TrimSuffix(cfg.Zone, ".")

	summary, err := client.DNSRecordAdd(ctx, record)
	if err != nil {
		return err
	}
	if summary != "" {
		logger.Info("server summary", slog.String("summary", summary))
	}

	var verifyErr error
	if resolver != nil {
		if verifyErr = resolver.ExpectA(ctx, fqdn, cfg.Address); verifyErr == nil {
			logger.Info("record visible in DNS", slog.String("fqdn", fqdn))
		}
	}

	delErr := client.DNSRecordDel(ctx, record)

	if resolver != nil && delErr == nil {
		if err := resolver.ExpectAbsent(ctx, fqdn); err != nil {
			logger.Warn("record still visible after delete", slog.String("error", err.Error()))
		}
	}

	return errors.Join(verifyErr, delErr)
}

// resolvePassword returns the configured password, prompting on the
// terminal when none is set.
func resolvePassword(cfg *config.Config) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	fd := int(os.Stdin.Fd())
	if !terminal.IsTerminal(fd) {
		return "", errors.New("no password configured: set IPADNS_PASSWORD or IPADNS_PASSWORD_FILE")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", cfg.User)
	raw, err := terminal.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(raw), nil
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
