package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/attendance")

	cfg, loaded, err := LoadConfig("")
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
	assert.Equal(t, models.OTPResendCooldown, cfg.OTPResendCooldown)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("DB_URL=postgres://file/db\nPORT=9000\nPUBLIC_BASE_URL=https://hr.example.com/\n"), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("DB_URL", "")

	cfg, loaded, err := LoadConfig(file)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "postgres://file/db", cfg.DBUrl)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "https://hr.example.com", cfg.PublicBaseURL)
}

func TestValidate_MissingDB(t *testing.T) {
	assert.Error(t, Config{}.Validate())
}

func TestConfig_AllowedOrigins(t *testing.T) {
	assert.Empty(t, Config{}.AllowedOrigins())
	assert.Equal(t,
		[]string{"https://hr.example.com", "https://admin.example.com"},
		Config{CORSOrigins: " https://hr.example.com/, ,https://admin.example.com"}.AllowedOrigins())
}
