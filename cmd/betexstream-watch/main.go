// Package main is the entry point for betexstream-watch, a demo client
// for the betting exchange streaming protocol: it opens a session,
// subscribes to markets or orders, and renders the resulting cache either
// as a live TUI ladder or as plain log lines.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/betexstream/internal/apm"
	"github.com/fd1az/betexstream/internal/config"
	"github.com/fd1az/betexstream/internal/health"
	"github.com/fd1az/betexstream/internal/logger"
	"github.com/fd1az/betexstream/internal/metrics"
	"github.com/fd1az/betexstream/internal/recorder"
	"github.com/fd1az/betexstream/pkg/ui"
	"github.com/fd1az/betexstream/stream"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	marketIDs := flag.String("markets", "", "Comma-separated market ids to subscribe to")
	orders := flag.Bool("orders", false, "Subscribe to order updates instead of markets")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("betexstream-watch %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	var ids []string
	if *marketIDs != "" {
		ids = strings.Split(*marketIDs, ",")
	}

	if err := run(ctx, *configPath, tuiMode, ids, *orders); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool, marketIDs []string, ordersMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting betexstream-watch", "version", version, "environment", cfg.App.Environment)
	}

	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthServer := health.NewServer(8081, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	s := stream.New(&cfg.Stream, log)

	var rec recorder.Recorder
	if cfg.Recorder.Enabled {
		sqliteRec, err := recorder.NewSQLiteRecorder(cfg.Recorder.SnapshotDBPath, cfg.Recorder.RawFramePath)
		if err != nil {
			log.Warn(ctx, "failed to start recorder, continuing without it", "error", err.Error())
		} else {
			rec = sqliteRec
			defer rec.Close()
			bridge := recorder.NewBridge(rec, cfg.Recorder.SnapshotEveryFrames)
			s.OnRawData(bridge.OnRawData)
			wireRecorderCallbacks(s, bridge, ordersMode)
		}
	}

	if tuiMode {
		return runTUI(ctx, s, log, marketIDs, ordersMode)
	}
	return runCLI(ctx, s, log, marketIDs, ordersMode)
}

// wireRecorderCallbacks attaches the recorder bridge's callback alongside
// whatever UI/CLI callback runCLI/runTUI register afterward — the session
// fans every frame out to all registered subscribers, so the two never
// clobber each other.
func wireRecorderCallbacks(s *stream.Stream, bridge *recorder.Bridge, ordersMode bool) {
	if ordersMode {
		s.OnOrderChange(bridge.OnOrderChange)
	} else {
		s.OnMarketChange(bridge.OnMarketChange)
	}
}

func runCLI(ctx context.Context, s *stream.Stream, log *logger.Logger, marketIDs []string, ordersMode bool) error {
	s.OnStatus(func(statusCode, errorCode, errorMessage string) {
		log.Info(ctx, "status", "statusCode", statusCode, "errorCode", errorCode, "errorMessage", errorMessage)
	})
	s.OnMarketChange(func(markets map[string]*stream.MarketCache, deltas []string) {
		for _, d := range deltas {
			log.Info(ctx, "market delta", "delta", d)
		}
	})
	s.OnOrderChange(func(markets map[string]*stream.OrderAccountCache, deltas []string) {
		for _, d := range deltas {
			log.Info(ctx, "order delta", "delta", d)
		}
	})

	if err := s.Open(ctx); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer s.Close()

	if ordersMode {
		if err := s.SubscribeOrders(ctx, nil); err != nil {
			return fmt.Errorf("failed to subscribe to orders: %w", err)
		}
	} else {
		if err := s.SubscribeMarkets(ctx, marketIDs); err != nil {
			return fmt.Errorf("failed to subscribe to markets: %w", err)
		}
	}

	<-ctx.Done()
	log.Info(ctx, "shutting down")
	return nil
}

func runTUI(ctx context.Context, s *stream.Stream, log *logger.Logger, marketIDs []string, ordersMode bool) error {
	model := ui.New()
	p := tea.NewProgram(model, tea.WithAltScreen())

	s.OnStatus(func(statusCode, errorCode, errorMessage string) {
		p.Send(ui.StatusMsg{StatusCode: statusCode, ErrorCode: errorCode, ErrorMessage: errorMessage})
	})
	s.OnMarketChange(func(markets map[string]*stream.MarketCache, deltas []string) {
		p.Send(ui.MarketUpdateMsg{Markets: markets, Deltas: deltas})
	})
	s.OnOrderChange(func(markets map[string]*stream.OrderAccountCache, deltas []string) {
		p.Send(ui.OrderUpdateMsg{Markets: markets, Deltas: deltas})
	})

	errCh := make(chan error, 1)
	go func() {
		if err := s.Open(ctx); err != nil {
			errCh <- err
			return
		}
		var subErr error
		if ordersMode {
			subErr = s.SubscribeOrders(ctx, nil)
		} else {
			subErr = s.SubscribeMarkets(ctx, marketIDs)
		}
		if subErr != nil {
			errCh <- subErr
			return
		}

		<-ctx.Done()
		s.Close()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
