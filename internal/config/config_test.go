package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickfsm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
period: 10ms
log_level: debug
table_ttl: 2s
flywheel:
  idle_rpm: 1000
  shoot_rpm: 4000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Period)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.TableTTL)
	assert.Equal(t, 1000.0, cfg.Flywheel.IdleRPM)
	assert.Equal(t, 4000.0, cfg.Flywheel.ShootRPM)
	// untouched keys keep their defaults
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 21, cfg.Flywheel.LeaderID)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "period: 10ms\n")
	t.Setenv("TICKFSM_PERIOD", "50ms")
	t.Setenv("TICKFSM_LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("FLYWHEEL_IDLE_RPM", "1200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Period)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	assert.Equal(t, 1200.0, cfg.Flywheel.IdleRPM)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		invalid bool
	}{
		{name: "malformed yaml", body: "period: [\n"},
		{name: "zero period", body: "period: 0s\n", invalid: true},
		{name: "ttl shorter than period", body: "period: 1s\ntable_ttl: 100ms\n", invalid: true},
		{name: "bad flywheel", body: "flywheel:\n  tolerance_rpm: 0\n", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NotErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
