package application

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/collector-trigger/internal/api"
	"github.com/eugenenazirov/collector-trigger/internal/collector"
	"github.com/eugenenazirov/collector-trigger/internal/config"
	"github.com/eugenenazirov/collector-trigger/internal/metrics"
	"github.com/eugenenazirov/collector-trigger/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	runner  collector.Runner
	storage *storage.FileStorage
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	metrics.Init()

	runner := collector.WithTimeout(
		collector.New(cfg.Collector.Script,
			collector.WithInterpreter(cfg.Collector.Interpreter),
			collector.WithDir(cfg.Collector.Dir),
		),
		cfg.Collector.Timeout,
	)
	store := storage.NewFileStorage(cfg.Collector.ConfigPath)

	handler := api.NewHandler(runner, store, api.WithLogger(logger))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	logger.Info("collector configured",
		zap.String("script", cfg.Collector.Script),
		zap.String("interpreter", cfg.Collector.Interpreter),
		zap.String("config_path", store.Path()),
		zap.Duration("timeout", cfg.Collector.Timeout),
	)

	return &App{
		runner:  runner,
		storage: store,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// BuildRootHandler mounts the Prometheus endpoint next to the API routes.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", apiHandler)
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
// A bare port binds all interfaces.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listening socket and serves requests in a goroutine.
// Bind errors are returned to the caller; errors after that are fatal.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}

	go func() {
		a.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
