package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cprmachine/cprd/internal/display"
	"github.com/cprmachine/cprd/internal/events"
	"github.com/cprmachine/cprd/internal/hardware"
	"github.com/cprmachine/cprd/internal/httpserver"
	"github.com/cprmachine/cprd/internal/operator"
	"github.com/cprmachine/cprd/internal/protocol"
	"github.com/cprmachine/cprd/internal/sequencer"
	"github.com/cprmachine/cprd/internal/socketrpc"
	"github.com/cprmachine/cprd/internal/stabilizer"
	"github.com/cprmachine/cprd/internal/status"
	"github.com/cprmachine/cprd/internal/telemetry"
	"github.com/cprmachine/cprd/internal/tracker"
	"golang.org/x/sync/errgroup"
)

// runServer opens the hardware and serves the operator surfaces until a
// shutdown signal arrives.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("telemetry: tracing disabled: %v", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("telemetry: shutdown: %v", err)
		}
	}()

	driver, err := hardware.NewDriver(hardware.DriverConfig{
		Backend:    cfg.HardwareBackend,
		SerialPort: cfg.SerialPort,
		SerialBaud: cfg.SerialBaud,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s driver: %w", cfg.HardwareBackend, err)
	}
	device, err := hardware.Open(hardware.Config{Pins: cfg.Pins, PanEnabled: cfg.PanEnabled}, driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}
	defer device.Close()

	manifest, err := loadManifest(cfg)
	if err != nil {
		return fmt.Errorf("failed to load media manifest: %w", err)
	}

	bus := events.NewBus()
	board := display.NewBoard(display.NewCommandPlayer(cfg.AudioCommand, manifest))
	boardEvents, unsubscribe := bus.Subscribe(cfg.EventBuffer)
	defer unsubscribe()

	recorder := status.NewRecorder()

	var trackers sequencer.TrackerFactory
	if cfg.alignmentActive() {
		trackers = newTrackerFactory(cfg)
	} else if cfg.AlignEnabled {
		log.Printf("server: camera alignment needs pan-enabled, using timed hold")
	}
	seq := sequencer.New(cfg.sequencerConfig(), device, recorder, bus, trackers)

	console := operator.NewConsole(operator.Options{
		Sequencer: seq,
		Hardware:  device,
		Status:    recorder,
		Board:     board,
		Backend:   cfg.HardwareBackend,
		Dropped:   bus.Dropped,
	})

	if cfg.APIEnabled {
		var preview httpserver.PreviewSource
		if cfg.DisplayPreview {
			preview = board
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, console, preview)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	sockServer := socketrpc.NewServer(cfg.SocketPath, console)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		// The process is leaving without the deferred cleanup; leave the
		// actuators safe first.
		device.Reset()
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		board.Run(gctx, boardEvents)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("server: stopping sequencer")
		seq.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	bus.Close()

	signal.Stop(sigCh)

	return nil
}

func loadManifest(cfg appConfig) (*protocol.Manifest, error) {
	if cfg.MediaManifest == "" {
		return protocol.DefaultManifest(cfg.MediaDir), nil
	}
	return protocol.LoadManifest(cfg.MediaManifest)
}

// newTrackerFactory builds a fresh detector and capture loop for each
// alignment step.
func newTrackerFactory(cfg appConfig) sequencer.TrackerFactory {
	return func() (sequencer.AlignmentTracker, error) {
		det, err := tracker.NewPigoDetector(tracker.PigoConfig{CascadePath: cfg.CascadePath})
		if err != nil {
			return nil, err
		}
		open := tracker.WebcamOpener(tracker.WebcamConfig{
			Device: cfg.CameraDevice,
			Width:  cfg.FrameWidth,
			Height: cfg.FrameHeight,
		})
		return tracker.Start(tracker.Config{
			FocusX:     cfg.FocusX,
			FocusY:     cfg.FocusY,
			Display:    cfg.DisplayPreview,
			Stabilizer: stabilizer.DefaultParams(),
		}, open, det), nil
	}
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "cprd")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "cprd.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╦═╗╔╦╗
    ║  ╠═╝╠╦╝ ║║
    ╚═╝╩  ╩╚══╩╝`)

	row := func(on bool, label, value string) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Operator"), "")
	if cfg.APIEnabled {
		lines = append(lines, row(true, "Status Page", cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, row(false, "Status Page", dim.Render("disabled")))
	}
	lines = append(lines, row(true, "Unix Socket", cyan.Render(shortenPath(cfg.SocketPath))), "")

	lines = append(lines, bold.Render("    Device"), "")
	lines = append(lines, row(true, "Hardware", dim.Render(cfg.HardwareBackend)))
	if cfg.alignmentActive() {
		lines = append(lines, row(true, "Camera", dim.Render(cfg.CameraDevice)))
	} else if cfg.AlignEnabled {
		lines = append(lines, row(false, "Camera", dim.Render("pan disabled, timed hold")))
	} else {
		lines = append(lines, row(false, "Camera", dim.Render("alignment disabled")))
	}
	lines = append(lines, row(cfg.PanEnabled, "Camera Pan", dim.Render(enabledText(cfg.PanEnabled))))
	if cfg.OTLPEndpoint != "" {
		lines = append(lines, row(true, "Tracing", dim.Render(cfg.OTLPEndpoint)))
	} else {
		lines = append(lines, row(false, "Tracing", dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(false, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func enabledText(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
