// Command wakeserve exposes on-device wake-word detection as a Wyoming
// streaming event service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelaudio/wakeserve/internal/cache"
	"github.com/kestrelaudio/wakeserve/internal/config"
	"github.com/kestrelaudio/wakeserve/internal/diag"
	"github.com/kestrelaudio/wakeserve/internal/handler"
	"github.com/kestrelaudio/wakeserve/internal/keyword"
	"github.com/kestrelaudio/wakeserve/internal/observe"
	"github.com/kestrelaudio/wakeserve/internal/server"
	"github.com/kestrelaudio/wakeserve/internal/wyoming"
	"github.com/kestrelaudio/wakeserve/pkg/detect"
	"github.com/kestrelaudio/wakeserve/pkg/detect/porcupine"
)

// version is stamped by the build; "dev" otherwise.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	uri := flag.String("uri", "", "connection URI: stdio://, tcp://host:port, unix://path, or ws://host:port")
	dataDir := flag.String("data-dir", "data", "directory holding language libraries and built-in keyword models")
	system := flag.String("system", "", "platform tag for keyword models: linux or raspberry-pi (default: auto)")
	sensitivity := flag.Float64("sensitivity", 0.5, "detector sensitivity in [0, 1]")
	accessKey := flag.String("access-key", "", "access key for the native detection library")
	diagAddr := flag.String("diag-addr", "", "address of the diagnostics HTTP server (empty disables it)")
	debug := flag.Bool("debug", false, "log debug messages")

	var customKeywordDirs []string
	flag.Func("custom-keyword-dir", "directory with custom keyword models (repeatable)", func(dir string) error {
		customKeywordDirs = append(customKeywordDirs, dir)
		return nil
	})

	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wakeserve: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	applyFlags(cfg, *uri, *dataDir, *system, float32(*sensitivity), *accessKey, *diagAddr, customKeywordDirs, *debug)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "wakeserve: %v\n", err)
		return 1
	}
	if cfg.Wake.AccessKey == "" {
		fmt.Fprintln(os.Stderr, "wakeserve: an access key is required (-access-key or wake.access_key)")
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("wakeserve starting",
		"uri", cfg.Server.URI,
		"data_dir", cfg.Wake.DataDir,
		"sensitivity", cfg.Wake.Sensitivity,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Keyword discovery ─────────────────────────────────────────────────────
	sys := cfg.Wake.System
	if sys == "" {
		sys = keyword.DetectSystem()
	}
	keywords, err := keyword.Discover(cfg.Wake.DataDir, cfg.Wake.CustomKeywordDirs, sys)
	if err != nil {
		slog.Error("keyword discovery failed", "err", err)
		return 1
	}
	slog.Info("discovered keywords", "count", keywords.Len(), "system", sys)
	if keywords.Len() == 0 {
		slog.Warn("no keyword models found; clients will not be able to bind a detector",
			"data_dir", cfg.Wake.DataDir,
		)
	}

	// ── Detector cache ────────────────────────────────────────────────────────
	build := func(_ context.Context, kw keyword.Keyword, sens float32) (detect.Engine, error) {
		return porcupine.New(porcupine.Config{
			AccessKey:   cfg.Wake.AccessKey,
			ModelPath:   keywords.LibraryPath(kw.Language),
			KeywordPath: kw.ModelPath,
			Sensitivity: sens,
		})
	}
	detectors := cache.New(build, metrics)
	defer detectors.Close()

	// ── Sessions ──────────────────────────────────────────────────────────────
	infoEvent, err := buildInfo(keywords).Event()
	if err != nil {
		slog.Error("failed to build info event", "err", err)
		return 1
	}
	sessionCfg := handler.Config{
		InfoEvent:   infoEvent,
		Keywords:    keywords,
		Cache:       detectors,
		Sensitivity: cfg.Wake.Sensitivity,
		Metrics:     metrics,
	}

	srv := server.New(cfg.Server.URI, func(ctx context.Context, conn *wyoming.Conn) error {
		return handler.New(conn, sessionCfg).Serve(ctx)
	})

	// ── Run ───────────────────────────────────────────────────────────────────
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if cfg.Server.DiagAddr != "" {
		d := diag.New(cfg.Server.DiagAddr, diag.Checker{
			Name: "keywords",
			Check: func(context.Context) error {
				if keywords.Len() == 0 {
					return errors.New("no keyword models discovered")
				}
				return nil
			},
		})
		g.Go(func() error { return d.Run(ctx) })
	}

	slog.Info("ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyFlags overlays explicitly-set command-line flags on cfg. Flags that
// were left at their defaults do not override config file values.
func applyFlags(cfg *config.Config, uri, dataDir, system string, sensitivity float32, accessKey, diagAddr string, customDirs []string, debug bool) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["uri"] {
		cfg.Server.URI = uri
	}
	if set["data-dir"] || cfg.Wake.DataDir == "" {
		cfg.Wake.DataDir = dataDir
	}
	if set["system"] {
		cfg.Wake.System = system
	}
	if set["sensitivity"] {
		cfg.Wake.Sensitivity = sensitivity
	}
	if set["access-key"] {
		cfg.Wake.AccessKey = accessKey
	}
	if set["diag-addr"] {
		cfg.Server.DiagAddr = diagAddr
	}
	if len(customDirs) > 0 {
		cfg.Wake.CustomKeywordDirs = append(cfg.Wake.CustomKeywordDirs, customDirs...)
	}
	if debug {
		cfg.Server.LogLevel = config.LogDebug
	}
}

// buildInfo assembles the static service-info payload advertising every
// discovered keyword as an installed wake model.
func buildInfo(keywords *keyword.Set) wyoming.Info {
	attribution := wyoming.Attribution{
		Name: "Picovoice",
		URL:  "https://github.com/Picovoice/porcupine",
	}

	models := make([]wyoming.WakeModel, 0, keywords.Len())
	for _, kw := range keywords.All() {
		models = append(models, wyoming.WakeModel{
			Name:        kw.Name,
			Description: fmt.Sprintf("%s (%s)", kw.Name, kw.Language),
			Attribution: attribution,
			Installed:   true,
			Languages:   []string{kw.Language},
		})
	}

	return wyoming.Info{
		Wake: []wyoming.WakeProgram{
			{
				Name:        "porcupine",
				Description: "On-device wake word detection powered by deep learning",
				Attribution: attribution,
				Installed:   true,
				Models:      models,
			},
		},
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
