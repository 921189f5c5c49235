package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, hardware.BackendGPIO, cfg.HardwareBackend)
	assert.Equal(t, hardware.DefaultPins(), cfg.Pins)
	assert.True(t, cfg.AlignEnabled)
	assert.Equal(t, 23500*time.Millisecond, cfg.Timings.CompressHold)
	assert.Equal(t, 10, cfg.Timings.AlignDeadband)
	assert.Equal(t, 100, cfg.MaxCycles)
	assert.Equal(t, 2, cfg.FullRepeatAt)
	assert.Equal(t, "0.0.0.0:8000", cfg.APIAddr)
	assert.Empty(t, cfg.ConfigPath)
	assert.False(t, cfg.sequencerConfig().AlignEnabled, "pan is off by default")
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
hardware-backend: sim
pan-enabled: true
pins:
  pan-left: 5
  pan-right: 6
timings:
  compress-hold: 2s
  align-deadband: 4
include-setup: true
api-port: 9001
media-dir: ~/cues
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, hardware.BackendSim, cfg.HardwareBackend)
	assert.True(t, cfg.PanEnabled)
	assert.Equal(t, 5, cfg.Pins.PanLeft)
	assert.Equal(t, 23, cfg.Pins.LiftUp, "unset pins keep their defaults")
	assert.Equal(t, 2*time.Second, cfg.Timings.CompressHold)
	assert.Equal(t, time.Second, cfg.Timings.CueHold)
	assert.Equal(t, 4, cfg.Timings.AlignDeadband)
	assert.True(t, cfg.IncludeSetup)
	assert.Equal(t, "0.0.0.0:9001", cfg.APIAddr)
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "cues"), cfg.MediaDir)

	seqCfg := cfg.sequencerConfig()
	assert.True(t, seqCfg.IncludeSetup)
	assert.Equal(t, 2*time.Second, seqCfg.Timings.CompressHold)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CPRD_HARDWARE_BACKEND", "sim")
	t.Setenv("CPRD_MAX_CYCLES", "3")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, hardware.BackendSim, cfg.HardwareBackend)
	assert.Equal(t, 3, cfg.MaxCycles)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "hardware-backend: parport\n"},
		{"serial without port", "hardware-backend: serial\n"},
		{"bad api port", "api-port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_AlignmentNeedsPan(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"defaults", "", false},
		{"pan enabled", "pan-enabled: true\n", true},
		{"align disabled", "pan-enabled: true\nalign-enabled: false\n", false},
		{"pan disabled", "align-enabled: true\npan-enabled: false\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.alignmentActive())
			assert.Equal(t, tt.want, cfg.sequencerConfig().AlignEnabled)
		})
	}
}

func TestTrackerFactory_MissingCascade(t *testing.T) {
	cfg := appConfig{CascadePath: filepath.Join(t.TempDir(), "nope")}
	_, err := newTrackerFactory(cfg)()
	assert.Error(t, err)
}

func TestLoadManifest_Default(t *testing.T) {
	m, err := loadManifest(appConfig{MediaDir: "/srv/media"})
	require.NoError(t, err)
	media, err := m.Lookup(9)
	require.NoError(t, err)
	assert.Equal(t, "/srv/media/9.wav", media.Audio)
}
