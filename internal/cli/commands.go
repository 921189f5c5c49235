package cli

import (
	"fmt"

	"github.com/cprmachine/cprd/internal/model"
	"github.com/spf13/cobra"
)

type connectFunc func() (Client, error)

func withClient(connect connectFunc, fn func(Client) error) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// newCommandCmd builds a no-argument command that forwards to one operator call.
func newCommandCmd(use, short string, connect connectFunc, call func(Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withClient(connect, call); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newPanCommand(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "pan <left|right|stop>",
		Short:     "Jog the camera pan motor",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"left", "right", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := model.Direction(args[0])
			err := withClient(connect, func(c Client) error {
				if dir == model.DirectionStop {
					return c.PanCameraRelease()
				}
				return c.PanCamera(dir)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newLiftCommand(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:       "lift <up|down|stop>",
		Short:     "Jog the CPR lift",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := model.Direction(args[0])
			err := withClient(connect, func(c Client) error {
				if dir == model.DirectionStop {
					return c.LiftRelease()
				}
				return c.LiftJog(dir)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newStatusCommand(opts *RootOptions, connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the daemon status snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap model.StatusSnapshot
			err := withClient(connect, func(c Client) error {
				var err error
				snap, err = c.Status()
				return err
			})
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), opts.Format, snap)
		},
	}
}

func newStepsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the protocol step table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeSteps(cmd.OutOrStdout(), opts.Format)
		},
	}
}
