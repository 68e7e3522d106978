package app

import (
	"context"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/db"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/learning/prompts"
	"github.com/yungbote/labtwin-backend/internal/observability"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/realtime/bus"
)

type Clients struct {
	DB      *gorm.DB
	Redis   *goredis.Client
	Bus     bus.Bus
	Router  *router.Router
	Prompts *prompts.Builder
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	theDB, err := openDB(log, cfg)
	if err != nil {
		return Clients{}, err
	}
	out.DB = theDB

	if cfg.RedisAddr != "" {
		rdb, err := bus.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			_ = rdb.Close()
			out.Close()
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		out.Redis = rdb
		out.Bus = b
	} else {
		log.Warn("REDIS_ADDR not set; events stay in-process")
		out.Bus = bus.NewMemoryBus(log)
	}

	rt, err := router.FromConfig(cfg.Inference, log, metrics)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init model router: %w", err)
	}
	out.Router = rt

	builder, err := loadPrompts(cfg)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Prompts = builder
	log.Info("Prompt catalog loaded", "version", builder.Version(), "file", cfg.PromptsFile)
	return out, nil
}

func openDB(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	var theDB *gorm.DB
	switch cfg.DBDriver {
	case DriverSQLite:
		d, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		log.Info("Opened SQLite", "path", cfg.SQLitePath)
		theDB = d
	default:
		pg, err := db.NewPostgresService(log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		theDB = pg.DB()
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		return nil, err
	}
	if err := db.EnsureUsageIndexes(theDB); err != nil {
		return nil, err
	}
	return theDB, nil
}

func loadPrompts(cfg Config) (*prompts.Builder, error) {
	if cfg.PromptsFile == "" {
		if cfg.PromptLanguage == "" {
			return prompts.Default(), nil
		}
		return prompts.Load(prompts.DefaultTemplates(), cfg.PromptLanguage)
	}
	raw, err := os.ReadFile(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", cfg.PromptsFile, err)
	}
	b, err := prompts.Load(raw, cfg.PromptLanguage)
	if err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", cfg.PromptsFile, err)
	}
	return b, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	// The redis bus owns the client.
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
