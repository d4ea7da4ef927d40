// dashboard-tui is the terminal order dashboard for warehouse operators.
// It reads the portal's dashboard page once for the CSRF token and the
// initial rows, then keeps the four order tabs and the counters current
// over the portal's STOMP push channel, falling back to polling while the
// channel is down.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/app"
	"github.com/order-desk/console/internal/config"
	"github.com/order-desk/console/internal/coordinator"
	"github.com/order-desk/console/internal/fakeportal"
	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/markup"
	"github.com/order-desk/console/internal/order"
	"github.com/order-desk/console/internal/prefs"
	"github.com/order-desk/console/internal/transport"
	"github.com/order-desk/console/internal/views/note"
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
		baseURL    string
		csrfToken  string
		session    string
		logLevel   string
		noColor    bool
		mock       bool
	)
	flags := pflag.NewFlagSet("dashboard-tui", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "dashboard.yaml", "path to the YAML config file")
	flags.StringVar(&baseURL, "url", "", "portal base URL, e.g. http://127.0.0.1:8080")
	flags.StringVar(&csrfToken, "csrf-token", "", "CSRF token (read from the dashboard page when empty)")
	flags.StringVar(&session, "session", "", "portal session cookie, NAME=value or a bare JSESSIONID")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&noColor, "no-color", false, "disable colors")
	flags.BoolVar(&mock, "mock", false, "run against an in-process mock portal")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if baseURL != "" {
		cfg.Portal.BaseURL = baseURL
	}
	if csrfToken != "" {
		cfg.Portal.CSRFToken = csrfToken
	}
	if session != "" {
		cfg.Portal.SessionCookie = session
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, closeLog, err := openLog(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	noteStyle := note.StyleDark
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		noteStyle = note.StyleNoTTY
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mock {
		addr, err := startMockPortal(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("start mock portal: %w", err)
		}
		cfg.Portal.BaseURL = "http://" + addr
		cfg.Portal.CSRFToken = ""
		logger.Info("mock portal listening", "addr", addr)
	}

	var degraded string
	if err := cfg.Validate(); err != nil {
		degraded = err.Error()
	}

	client := api.New(cfg.Portal.BaseURL, api.Options{
		CSRFHeader:    cfg.Portal.CSRFHeader,
		CSRFToken:     cfg.Portal.CSRFToken,
		SessionCookie: cfg.Portal.SessionCookie,
		Token:         cfg.Portal.Token,
		TTL:           cfg.Cache.TTL,
		Logger:        logger,
	})

	var page markup.Page
	if degraded == "" {
		page = loadPage(ctx, client, cfg, logger)
		if cfg.Portal.CSRFToken == "" && page.CSRFToken != "" {
			cfg.Portal.CSRFToken = page.CSRFToken
			if page.CSRFHeader != "" {
				cfg.Portal.CSRFHeader = page.CSRFHeader
			}
			client.SetCSRF(page.CSRFHeader, page.CSRFToken)
			logger.Info("csrf token read from dashboard page", "header", cfg.Portal.CSRFHeader)
		}
		if err := cfg.RequireCSRF(); err != nil {
			degraded = err.Error()
		}
	}
	if degraded != "" {
		logger.Warn("starting in degraded mode", "reason", degraded)
	}

	store, err := prefs.Open(cfg.State.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	initialTab, ok := order.ParseBucket(cfg.Dashboard.InitialTab)
	if !ok {
		initialTab = order.BucketUrgent
	}
	if b, saved, err := store.LoadTab(); err != nil {
		logger.Warn("load saved tab", "err", err)
	} else if saved {
		initialTab = b
	}
	initialFilter := filter.DefaultState()
	if st, saved, err := store.LoadFilter(); err != nil {
		logger.Warn("load saved filter", "err", err)
	} else if saved {
		initialFilter = st
	}

	board := order.NewBoard()
	coord := coordinator.New(client, board, coordinator.Options{
		InitialTab:           initialTab,
		AutoRefreshInterval:  cfg.Dashboard.AutoRefreshInterval,
		CountersRefreshDelay: cfg.Dashboard.CountersRefreshDelay,
		Tabs:                 store,
		Logger:               logger,
	})
	var counters *order.CounterSnapshot
	if page.HasCounters {
		counters = &page.Counters
	}
	coord.Seed(page.Rows, counters)

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	var conn app.Conn
	if degraded == "" {
		conn = transport.New(cfg.WebSocketURL(), transport.Options{
			HeartbeatOutgoing: cfg.Transport.HeartbeatOutgoing,
			HeartbeatIncoming: cfg.Transport.HeartbeatIncoming,
			ConnectTimeout:    cfg.Transport.ConnectTimeout,
			BaseDelay:         cfg.Transport.ReconnectBaseDelay,
			MaxAttempts:       cfg.Transport.MaxReconnectAttempts,
			Header:            upgradeHeader(cfg.Portal),
			ConnectHeaders:    map[string]string{cfg.Portal.CSRFHeader: cfg.Portal.CSRFToken},
			Logger:            logger,
		}, app.Handlers(send))
	}

	model := app.New(app.Options{
		Coordinator:    coord,
		Board:          board,
		Conn:           conn,
		Filters:        store,
		InitialFilter:  initialFilter,
		PageSize:       cfg.Filter.PageSize,
		RescanInterval: cfg.Filter.RescanInterval,
		SearchDebounce: cfg.Filter.SearchDebounce,
		AmountDebounce: cfg.Filter.AmountDebounce,
		Degraded:       degraded,
		NoteStyle:      noteStyle,
		Logger:         logger,
	})
	program = tea.NewProgram(model, tea.WithAltScreen())

	_, err = program.Run()
	return err
}

func openLog(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}

// loadPage reads the dashboard page for the CSRF meta tags and the rows
// to seed the tabs with. Failures only cost the seed.
func loadPage(ctx context.Context, client *api.Client, cfg *config.Config, logger *slog.Logger) markup.Page {
	ctx, cancel := context.WithTimeout(ctx, cfg.Transport.ConnectTimeout)
	defer cancel()
	body, err := client.Page(ctx, cfg.Portal.DashboardPath)
	if err != nil {
		logger.Warn("dashboard page unavailable", "path", cfg.Portal.DashboardPath, "err", err)
		return markup.Page{}
	}
	page, err := markup.Parse(bytes.NewReader(body))
	if err != nil {
		logger.Warn("dashboard page unreadable", "err", err)
		return markup.Page{}
	}
	n := 0
	for _, rows := range page.Rows {
		n += len(rows)
	}
	logger.Info("dashboard page read", "rows", n, "csrf", page.CSRFToken != "")
	return page
}

// upgradeHeader carries the session cookie and bearer token on the
// WebSocket upgrade request.
func upgradeHeader(p config.PortalConfig) http.Header {
	h := http.Header{}
	if p.SessionCookie != "" {
		cookie := p.SessionCookie
		if !strings.Contains(cookie, "=") {
			cookie = "JSESSIONID=" + cookie
		}
		h.Set("Cookie", cookie)
	}
	if p.Token != "" {
		h.Set("Authorization", "Bearer "+p.Token)
	}
	return h
}

// startMockPortal serves a populated mock portal on a free local port
// until ctx is done.
func startMockPortal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	store := fakeportal.NewStore(nil)
	portal := fakeportal.New(store, fakeportal.Options{
		DashboardPath: cfg.Portal.DashboardPath,
		WSPath:        cfg.Portal.WSPath,
		CSRFHeader:    cfg.Portal.CSRFHeader,
		CSRFToken:     uuid.NewString(),
		Heartbeat:     cfg.Transport.HeartbeatIncoming,
		Logger:        logger,
	})
	gen := fakeportal.NewGenerator(store, portal, fakeportal.GeneratorOptions{Logger: logger})
	gen.Populate(25)
	gen.Start(ctx)

	srv := &http.Server{Handler: portal.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock portal stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		portal.Close()
		srv.Close()
	}()
	return ln.Addr().String(), nil
}
