package cli

import (
	"fmt"
	"slices"

	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/socketrpc"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	SocketPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Client is the connection cprctl commands talk through.
type Client interface {
	model.Operator
	Close() error
}

// Dialer opens a Client for the given control socket path.
type Dialer func(socketPath string) (Client, error)

// DialSocket connects to the daemon's control socket.
func DialSocket(socketPath string) (Client, error) {
	c, err := socketrpc.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewRootCommand creates the root command for cprctl. A nil dial uses
// DialSocket.
func NewRootCommand(dial Dialer) *cobra.Command {
	if dial == nil {
		dial = DialSocket
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cprctl",
		Short: "Operator commands for the CPR machine",
		Long: `Send operator commands to a running cprd daemon over its control socket.

Commands mirror the operator console: begin, halt, confirm and the
camera pan and lift jogs. Status prints the daemon's current snapshot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.SocketPath, "socket", socketrpc.DefaultSocketPath(), "cprd control socket path")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	connect := func() (Client, error) {
		c, err := dial(opts.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to cprd at %s: %w", opts.SocketPath, err)
		}
		return c, nil
	}

	cmd.AddCommand(newCommandCmd("begin", "Start a run, or acknowledge the current checkpoint", connect, Client.Begin))
	cmd.AddCommand(newCommandCmd("halt", "Stop the run and drive hardware to the safe state", connect, Client.HaltImmediately))
	cmd.AddCommand(newCommandCmd("confirm", "Acknowledge the shock checkpoint", connect, Client.Confirm))
	cmd.AddCommand(newPanCommand(connect))
	cmd.AddCommand(newLiftCommand(connect))
	cmd.AddCommand(newStatusCommand(opts, connect))
	cmd.AddCommand(newStepsCommand(opts))

	return cmd
}
