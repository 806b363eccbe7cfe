package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/collector-trigger/internal/application"
	"github.com/eugenenazirov/collector-trigger/internal/config"
	"github.com/eugenenazirov/collector-trigger/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("collector-trigger", "Collector Trigger - runs the data collector on demand and persists its configuration")
	overrides := registerFlags(kingpinApp)

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	cfg, err := config.Load(overrides.resolve())
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

type flagValues struct {
	configFile           *string
	port                 *string
	collectorScript      *string
	collectorInterpreter *string
	collectorDir         *string
	collectorTimeout     *time.Duration
	collectorConfigPath  *string
	logLevel             *string
	rateLimitRPS         *float64
	rateLimitBurst       *int

	interpreterSet bool
	timeoutSet     bool
}

func registerFlags(app *kingpin.Application) *flagValues {
	f := &flagValues{}
	f.configFile = app.Flag("config", "Path to YAML configuration file").String()
	f.port = app.Flag("port", "HTTP port exposed by the service").String()
	f.collectorScript = app.Flag("collector-script", "Path to the collector script").String()
	f.collectorInterpreter = app.Flag("collector-interpreter", "Interpreter used to run the collector script (empty runs it directly)").
		IsSetByUser(&f.interpreterSet).String()
	f.collectorDir = app.Flag("collector-dir", "Working directory for the collector process").String()
	f.collectorTimeout = app.Flag("collector-timeout", "Maximum collector run time (0 waits indefinitely)").
		IsSetByUser(&f.timeoutSet).Duration()
	f.collectorConfigPath = app.Flag("collector-config", "Path to the collector config YAML file").String()
	f.logLevel = app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	f.rateLimitRPS = app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	f.rateLimitBurst = app.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	return f
}

// resolve turns parsed flags into overrides, leaving unset flags nil so lower
// precedence sources still apply.
func (f *flagValues) resolve() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *f.configFile,
	}

	if *f.port != "" {
		overrides.Port = f.port
	}
	if *f.collectorScript != "" {
		overrides.CollectorScript = f.collectorScript
	}
	if f.interpreterSet {
		overrides.CollectorInterpreter = f.collectorInterpreter
	}
	if *f.collectorDir != "" {
		overrides.CollectorDir = f.collectorDir
	}
	if f.timeoutSet {
		overrides.CollectorTimeout = f.collectorTimeout
	}
	if *f.collectorConfigPath != "" {
		overrides.CollectorConfigPath = f.collectorConfigPath
	}
	if *f.logLevel != "" {
		overrides.LogLevel = f.logLevel
	}
	if *f.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = f.rateLimitRPS
	}
	if *f.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = f.rateLimitBurst
	}

	return overrides
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
