package app

import (
	"fmt"
	"strings"

	inferencecfg "github.com/yungbote/labtwin-backend/internal/inference/config"
	"github.com/yungbote/labtwin-backend/internal/platform/envutil"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env          string
	ServiceName  string
	Port         string
	JWTSecretKey string

	DBDriver   string
	SQLitePath string

	// RedisAddr enables the shared event bus; empty keeps events in-process.
	RedisAddr    string
	RedisChannel string

	CORSOrigins []string

	// PromptsFile overrides the embedded prompt catalog.
	PromptsFile    string
	PromptLanguage string

	Inference *inferencecfg.Config
}

func LoadConfig(log *logger.Logger) (Config, error) {
	inf, err := inferencecfg.Load()
	if err != nil {
		return Config{}, fmt.Errorf("inference config: %w", err)
	}
	cfg := Config{
		Env:            envutil.String("APP_ENV", "development"),
		ServiceName:    envutil.String("OTEL_SERVICE_NAME", "labtwin-backend"),
		Port:           envutil.String("PORT", "8080"),
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		DBDriver:       strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres)),
		SQLitePath:     envutil.String("SQLITE_PATH", "labtwin.db"),
		RedisAddr:      envutil.String("REDIS_ADDR", ""),
		RedisChannel:   envutil.String("REDIS_EVENTS_CHANNEL", ""),
		CORSOrigins:    envutil.List("CORS_ORIGINS", nil),
		PromptsFile:    envutil.String("PROMPTS_FILE", ""),
		PromptLanguage: envutil.String("PROMPT_DEFAULT_LANGUAGE", ""),
		Inference:      inf,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	log.Info("Config loaded",
		"env", cfg.Env,
		"db_driver", cfg.DBDriver,
		"redis", cfg.RedisAddr != "",
		"local_llm", cfg.Inference.Local.URL != "",
		"cloud_llm", cfg.Inference.Cloud.APIKey != "",
		"llm_mock", cfg.Inference.Mock,
	)
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be blank")
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
