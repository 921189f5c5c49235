package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"
	"github.com/cprmachine/cprd/internal/sequencer"
	"github.com/cprmachine/cprd/internal/socketrpc"
	"github.com/spf13/viper"
)

const (
	defaultBindHost    = "0.0.0.0"
	defaultAPIPort     = model.DefaultAPIPort
	defaultBackend     = hardware.BackendGPIO
	defaultSerialBaud  = 9600
	defaultCamera      = "/dev/video0"
	defaultFrameWidth  = 640
	defaultFrameHeight = 480
	defaultAudioCmd    = "aplay -q"
	defaultEventBuffer = 64
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the daemon entrypoint.
type appConfig struct {
	HardwareBackend string        `mapstructure:"hardware-backend"`
	Pins            hardware.Pins `mapstructure:"pins"`
	SerialPort      string        `mapstructure:"serial-port"`
	SerialBaud      int           `mapstructure:"serial-baud"`

	AlignEnabled   bool    `mapstructure:"align-enabled"`
	PanEnabled     bool    `mapstructure:"pan-enabled"`
	DisplayPreview bool    `mapstructure:"display-preview"`
	CameraDevice   string  `mapstructure:"camera-device"`
	FrameWidth     int     `mapstructure:"frame-width"`
	FrameHeight    int     `mapstructure:"frame-height"`
	CascadePath    string  `mapstructure:"cascade-path"`
	FocusX         float64 `mapstructure:"focus-x"`
	FocusY         float64 `mapstructure:"focus-y"`

	Timings      protocol.Timings `mapstructure:"timings"`
	IncludeSetup bool             `mapstructure:"include-setup"`
	MaxCycles    int              `mapstructure:"max-cycles"`
	FullRepeatAt int              `mapstructure:"full-repeat-at"`
	JoinTimeout  time.Duration    `mapstructure:"join-timeout"`

	MediaManifest string `mapstructure:"media-manifest"`
	MediaDir      string `mapstructure:"media-dir"`
	AudioCommand  string `mapstructure:"audio-command"`
	EventBuffer   int    `mapstructure:"event-buffer"`

	APIEnabled   bool   `mapstructure:"api-enabled"`
	APIPort      int    `mapstructure:"api-port"`
	APIAddr      string `mapstructure:"api-addr"`
	SocketPath   string `mapstructure:"socket-path"`
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("hardware-backend", defaultBackend)
	pins := hardware.DefaultPins()
	v.SetDefault("pins.lift-up", pins.LiftUp)
	v.SetDefault("pins.lift-down", pins.LiftDown)
	v.SetDefault("pins.compress", pins.Compress)
	v.SetDefault("pins.compress-low", pins.CompressLow)
	v.SetDefault("pins.pump", pins.Pump)
	v.SetDefault("pins.pump-low", pins.PumpLow)
	v.SetDefault("pins.pan-left", pins.PanLeft)
	v.SetDefault("pins.pan-right", pins.PanRight)
	v.SetDefault("pins.pressure", pins.Pressure)
	v.SetDefault("serial-port", "")
	v.SetDefault("serial-baud", defaultSerialBaud)

	v.SetDefault("align-enabled", true)
	v.SetDefault("pan-enabled", false)
	v.SetDefault("display-preview", true)
	v.SetDefault("camera-device", defaultCamera)
	v.SetDefault("frame-width", defaultFrameWidth)
	v.SetDefault("frame-height", defaultFrameHeight)
	v.SetDefault("cascade-path", filepath.Join(home, ".local", "share", "cprd", "facefinder"))
	v.SetDefault("focus-x", 0.5)
	v.SetDefault("focus-y", 0.5)

	t := protocol.DefaultTimings()
	v.SetDefault("timings.cue-hold", t.CueHold)
	v.SetDefault("timings.setup-hold", t.SetupHold)
	v.SetDefault("timings.final-hold", t.FinalHold)
	v.SetDefault("timings.shock-hold", t.ShockHold)
	v.SetDefault("timings.compress-hold", t.CompressHold)
	v.SetDefault("timings.lift-settle", t.LiftSettle)
	v.SetDefault("timings.ventilate-hold", t.VentilateHold)
	v.SetDefault("timings.tick", t.Tick)
	v.SetDefault("timings.poll", t.Poll)
	v.SetDefault("timings.align-tick", t.AlignTick)
	v.SetDefault("timings.align-timeout", t.AlignTimeout)
	v.SetDefault("timings.stale-after", t.StaleAfter)
	v.SetDefault("timings.align-deadband", t.AlignDeadband)

	v.SetDefault("include-setup", false)
	v.SetDefault("max-cycles", sequencer.DefaultMaxCycles)
	v.SetDefault("full-repeat-at", sequencer.DefaultFullRepeatAt)
	v.SetDefault("join-timeout", sequencer.DefaultJoinTimeout)

	v.SetDefault("media-manifest", "")
	v.SetDefault("media-dir", filepath.Join(home, ".local", "share", "cprd", "media"))
	v.SetDefault("audio-command", defaultAudioCmd)
	v.SetDefault("event-buffer", defaultEventBuffer)

	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("otlp-endpoint", "")
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CPRD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	setDefaults(v, home)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "cprd", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	switch cfg.HardwareBackend {
	case hardware.BackendGPIO, hardware.BackendSim:
	case hardware.BackendSerial:
		if cfg.SerialPort == "" {
			return cfg, errors.New("serial-port is required for the serial backend")
		}
	default:
		return cfg, fmt.Errorf("%w: %q", hardware.ErrUnknownBackend, cfg.HardwareBackend)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}

	cfg.CascadePath = expandHome(home, cfg.CascadePath)
	cfg.MediaDir = expandHome(home, cfg.MediaDir)
	cfg.MediaManifest = expandHome(home, cfg.MediaManifest)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// alignmentActive reports whether the position step runs the face tracker.
// Without pan output the camera cannot move, so alignment falls back to the
// timed hold.
func (c appConfig) alignmentActive() bool {
	return c.AlignEnabled && c.PanEnabled
}

func (c appConfig) sequencerConfig() sequencer.Config {
	return sequencer.Config{
		Timings:      c.Timings.WithDefaults(),
		AlignEnabled: c.alignmentActive(),
		IncludeSetup: c.IncludeSetup,
		MaxCycles:    c.MaxCycles,
		FullRepeatAt: c.FullRepeatAt,
		JoinTimeout:  c.JoinTimeout,
	}
}
