package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ivlev/concept2video/internal/api"
	"github.com/ivlev/concept2video/internal/config"
	"github.com/ivlev/concept2video/internal/jobstore"
	"github.com/ivlev/concept2video/internal/pipeline"
	"github.com/ivlev/concept2video/internal/system"
	"github.com/ivlev/concept2video/internal/telemetry"
)

// Default locations used when a command is given no paths.
const (
	defaultSVGDir      = "input/svg"
	defaultOutputDir   = "output"
	defaultTimelineDir = "output/timelines"
)

const openFileLimit = 4096

// App holds the global flags and process-wide dependencies of a command run.
type App struct {
	ConfigPath string
	LogFormat  string
	LogLevel   string
	JSON       bool

	Stdout     io.Writer
	Stderr     io.Writer
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(&App{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
	}, version)
}

func newRootCmd(app *App, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "concept2video",
		Short:         "Turn concepts and diagrams into animated 3D videos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.ConfigPath, "config", os.Getenv("C2V_CONFIG"), "YAML config file")
	pf.StringVar(&app.LogFormat, "log-format", "", "Log format: json, text, console (default from config)")
	pf.StringVar(&app.LogLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (default from config)")
	pf.BoolVar(&app.JSON, "json", false, "Output in JSON format")

	root.AddCommand(
		newRunCmd(app),
		newRenderCmd(app),
		newGenerateCmd(app),
		newBatchCmd(app),
		newServeCmd(app),
		newWorkerCmd(app),
		newInspectCmd(app),
	)
	return root
}

func (a *App) output() *Output {
	return &Output{jsonMode: a.JSON, w: a.Stdout, errW: a.Stderr}
}

// setup loads the configuration and installs the process logger.
func (a *App) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	format, level := cfg.Log.Format, cfg.Log.Level
	if a.LogFormat != "" {
		format = a.LogFormat
	}
	if a.LogLevel != "" {
		level = a.LogLevel
	}
	logger := telemetry.SetupLogger(format, level)
	system.InitResourceLimits(logger, openFileLimit)
	return cfg, logger, nil
}

// services are the long-lived dependencies behind an orchestrator.
type services struct {
	orch    *pipeline.Orchestrator
	checks  map[string]api.Pinger
	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// services wires the orchestrator: the engine dispatcher, metrics and, when
// a database is configured, the Postgres job store.
func (a *App) services(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	if err := system.LookPath(cfg.Engine.Binary); err != nil {
		logger.Warn("engine binary not found; render stages will fail", "binary", cfg.Engine.Binary, "error", err)
	}
	for _, script := range cfg.Engine.Scripts() {
		if _, err := os.Stat(script); err != nil {
			logger.Warn("engine script not found; set engine.args to its location", "script", script, "error", err)
		}
	}

	svc := &services{checks: make(map[string]api.Pinger)}
	orch := pipeline.New(cfg, pipeline.NewDispatcher(cfg.Engine), logger)
	orch.Metrics = telemetry.NewMetrics(a.Registerer)

	if cfg.DatabaseURL != "" {
		pool, err := jobstore.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		svc.closers = append(svc.closers, pool.Close)

		store := jobstore.NewPostgres(pool)
		if err := store.Migrate(ctx); err != nil {
			svc.Close()
			return nil, fmt.Errorf("migrate job store: %w", err)
		}
		orch.Store = store
		svc.checks["postgres"] = pool
		logger.Info("database connected")
	}

	svc.orch = orch
	return svc, nil
}

// prepareOutput creates the directory that will receive path.
func prepareOutput(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}
