package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://lab.example.edu, https://admin.example.edu")
	t.Setenv("LLM_MOCK", "true")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, []string{"https://lab.example.edu", "https://admin.example.edu"}, cfg.CORSOrigins)
	assert.True(t, cfg.Inference.Mock)
}

func TestConfigValidate(t *testing.T) {
	base := Config{JWTSecretKey: "k", DBDriver: DriverPostgres, Port: "8080"}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.JWTSecretKey = " "
	assert.ErrorContains(t, noSecret.Validate(), "JWT_SECRET_KEY")

	badDriver := base
	badDriver.DBDriver = "mysql"
	assert.ErrorContains(t, badDriver.Validate(), "DB_DRIVER")
}

func TestLoadPromptsOverride(t *testing.T) {
	b, err := loadPrompts(Config{})
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = loadPrompts(Config{PromptsFile: t.TempDir() + "/missing.yaml"})
	assert.ErrorContains(t, err, "read prompts")
}
