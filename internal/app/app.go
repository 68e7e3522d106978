package app

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/labtwin-backend/internal/http"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *http.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv(cfg.ServiceName, cfg.Env))
	metrics := observability.Init(log)

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(clients.DB, log)
	serviceset := wireServices(log, clients, reposet, metrics)
	handlerset := wireHandlers(log, clients, serviceset)
	middleware := wireMiddleware(log, cfg)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       wireServer(log, cfg, metrics, handlerset, middleware),
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops: the local model health probe, the
// submission event consumer and the metrics collectors.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Clients.Router.StartHealthProbe(ctx, a.Cfg.Inference.HealthInterval)
	if err := a.Services.Twin.StartConsumer(ctx, a.Clients.Bus); err != nil {
		return fmt.Errorf("start twin consumer: %w", err)
	}
	a.Metrics.StartDBCollector(ctx, a.Log, a.Clients.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Listening", "addr", a.Cfg.Addr())
	return a.Server.Run(ctx, a.Cfg.Addr())
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
