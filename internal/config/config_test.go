package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "MODEL_ID", "KUBECONFIG", "LOG_LEVEL", "REDIS_URL", "ADMIN_API_KEY", "ADMIN_PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		env       map[string]string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:     "missing file with token from env",
			filePath: "testdata/nonexistent.yaml",
			env:      map[string]string{"TELEGRAM_BOT_TOKEN": "env-token"},
		},
		{
			name:      "missing file without token",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "bot.token is required",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "parse config",
		},
		{
			name:      "invalid admin port",
			filePath:  "testdata/valid_config.yaml",
			env:       map[string]string{"ADMIN_PORT": "eighty"},
			wantErr:   true,
			errString: "invalid ADMIN_PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig(tt.filePath, false)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
		})
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("testdata/valid_config.yaml", true)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, 4, cfg.Bot.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Admin.Port)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Research.ModelID)
	assert.Equal(t, "4Gi", cfg.Research.MemoryLimit)
	assert.Equal(t, 15*time.Second, cfg.Research.PollInterval)
	assert.Equal(t, -1, cfg.Research.MaxStatusFailures)
	assert.Equal(t, time.Hour, cfg.Research.RateLimitSpan)
	assert.True(t, cfg.Runtime.Dev)

	// untouched fields fall back to defaults
	assert.Equal(t, DefaultImage, cfg.Research.Image)
	assert.Equal(t, "500m", cfg.Research.CPURequest)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	cfg, err := LoadConfig("", false)
	require.NoError(t, err)

	assert.Equal(t, DefaultModelID, cfg.Research.ModelID)
	assert.Equal(t, "research-api-secrets", cfg.Research.SecretName)
	assert.Equal(t, "1", cfg.Research.CPULimit)
	assert.Equal(t, "1Gi", cfg.Research.MemoryRequest)
	assert.Equal(t, "2Gi", cfg.Research.MemoryLimit)
	assert.Equal(t, 10*time.Second, cfg.Research.PollInterval)
	assert.Equal(t, 30, cfg.Research.MaxStatusFailures)
	assert.Equal(t, 8, cfg.Bot.Workers)
	assert.Equal(t, "en", cfg.Bot.Locale)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Admin.Port)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("MODEL_ID", "env-model")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ADMIN_PORT", "7070")

	cfg, err := LoadConfig("testdata/valid_config.yaml", false)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "env-model", cfg.Research.ModelID)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7070, cfg.Admin.Port)
}
