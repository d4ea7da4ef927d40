// portal-mock serves an in-memory warehouse portal: the dashboard page,
// the JSON order API and the STOMP push channel, with an optional
// generator that keeps orders arriving and moving.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/order-desk/console/internal/config"
	"github.com/order-desk/console/internal/fakeportal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		addr       string
		csrfToken  string
		orders     int
		interval   time.Duration
		seed       int64
		noGen      bool
		logLevel   string
	)
	flags := pflag.NewFlagSet("portal-mock", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "dashboard.yaml", "console config to take portal paths from")
	flags.StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	flags.StringVar(&csrfToken, "csrf-token", "mock-csrf-token", "CSRF token required on mutations and CONNECT")
	flags.IntVar(&orders, "orders", 25, "orders to create at startup")
	flags.DurationVar(&interval, "interval", 4*time.Second, "generator tick interval")
	flags.Int64Var(&seed, "seed", 0, "generator seed (0 picks one)")
	flags.BoolVar(&noGen, "no-generator", false, "serve the initial orders only")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("log level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := fakeportal.NewStore(nil)
	portal := fakeportal.New(store, fakeportal.Options{
		DashboardPath: cfg.Portal.DashboardPath,
		WSPath:        cfg.Portal.WSPath,
		CSRFHeader:    cfg.Portal.CSRFHeader,
		CSRFToken:     csrfToken,
		Heartbeat:     cfg.Transport.HeartbeatIncoming,
		Logger:        logger,
	})
	gen := fakeportal.NewGenerator(store, portal, fakeportal.GeneratorOptions{
		Interval: interval,
		Seed:     seed,
		Logger:   logger,
	})
	gen.Populate(orders)
	if !noGen {
		gen.Start(ctx)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           portal.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("portal mock listening", "addr", addr, "dashboard", cfg.Portal.DashboardPath, "ws", cfg.Portal.WSPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	portal.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
