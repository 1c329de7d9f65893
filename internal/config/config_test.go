package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "GATEWAY_URL", "https://api.gateway.test")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://api.gateway.test", cfg.GatewayURL)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
}

func TestLoad_MissingGatewayURL(t *testing.T) {
	setEnv(t, "GATEWAY_URL", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_URL is required")
}

func TestLoad_InvalidGatewayURL(t *testing.T) {
	setEnv(t, "GATEWAY_URL", "not-a-url")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "absolute URL")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				GatewayURL:    "https://api.gateway.test",
				SessionTTL:    time.Minute,
				SweepInterval: time.Second,
			},
			wantErr: "",
		},
		{
			name: "missing gateway URL",
			config: Config{
				SessionTTL:    time.Minute,
				SweepInterval: time.Second,
			},
			wantErr: "GATEWAY_URL is required",
		},
		{
			name: "zero session TTL",
			config: Config{
				GatewayURL:    "https://api.gateway.test",
				SweepInterval: time.Second,
			},
			wantErr: "SESSION_TTL must be positive",
		},
		{
			name: "zero sweep interval",
			config: Config{
				GatewayURL: "https://api.gateway.test",
				SessionTTL: time.Minute,
			},
			wantErr: "SWEEP_INTERVAL must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "90s")
	setEnv(t, "TEST_BARE", "30")
	setEnv(t, "TEST_INVALID", "soon")

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Minute))
	assert.Equal(t, 30*time.Second, getEnvDuration("TEST_BARE", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_INVALID", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("NONEXISTENT_VAR", time.Minute))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitList("*"))
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, splitList("https://a.test, https://b.test"))
	assert.Empty(t, splitList(" , "))
}
