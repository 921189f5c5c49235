package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cprmachine/cprd/internal/socketrpc"
	"github.com/cprmachine/cprd/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var socketPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/cprd/config.yml)")
	flag.StringVar(&socketPath, "socket", "", "override socket path to connect to cprd")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("cpr-console - CPR Machine Operator Console\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	client, err := socketrpc.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to cprd at %s: %w\nIs the daemon running? Start it with: cprd", cfg.SocketPath, err)
	}
	defer client.Close()

	console := tui.NewConsoleModel(client, cfg.UpdateInterval)
	console.SetJogHold(cfg.JogHold)
	app := tui.NewApp(console)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("console requires a real terminal")
		}
		return fmt.Errorf("error running console: %w", err)
	}

	return nil
}
