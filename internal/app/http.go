package app

import (
	"context"

	"github.com/yungbote/labtwin-backend/internal/http"
	httpH "github.com/yungbote/labtwin-backend/internal/http/handlers"
	httpMW "github.com/yungbote/labtwin-backend/internal/http/middleware"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	AI     *httpH.AIHandler
	Twin   *httpH.TwinHandler
}

func wireHandlers(log *logger.Logger, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"db": httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := clients.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if clients.Redis != nil {
		checks["redis"] = httpH.PingFunc(func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		})
	}
	return Handlers{
		Health: httpH.NewHealthHandler(checks),
		AI:     httpH.NewAIHandler(log, services.Hint, services.Usage, services.Status),
		Twin:   httpH.NewTwinHandler(log, services.Twin),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		AIHandler:      handlers.AI,
		TwinHandler:    handlers.Twin,
		HealthHandler:  handlers.Health,
	})
}
