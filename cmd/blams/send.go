package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/srg/blams/internal/ams"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [device-address] <command>",
	Short: "Send a remote command to an AMS media source",
	Long: `Connects to the device, discovers the Apple Media Service and writes one
remote command. Commands are given by name or numeric id; see 'blams commands'.

Examples:
  blams send AA:BB:CC:DD:EE:FF play
  blams send AA:BB:CC:DD:EE:FF next-track
  blams send volume-up          # address from the config file`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

var sendShowState bool

func init() {
	sendCmd.Flags().BoolVar(&sendShowState, "show-state", false, "Print the media state known after sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	var arg, name string
	if len(args) == 2 {
		arg, name = args[0], args[1]
	} else {
		name = args[0]
	}

	remote, err := ams.ParseRemoteCommand(name)
	if err != nil {
		return err
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	address, err := env.address(arg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	sess, err := openMediaSession(ctx, env, address, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	media := sess.Media()
	if len(media.SupportedCommands) > 0 && !slices.Contains(media.SupportedCommands, remote) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is not in the player's supported commands (%s)\n",
			remote, formatCommands(media.SupportedCommands))
	}

	if err := sess.SendCommand(ctx, remote); err != nil {
		return fmt.Errorf("failed to send %s: %w", remote, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", remote, address)

	if sendShowState {
		return newMediaPrinter(cmd.OutOrStdout(), false).State(sess.Media())
	}
	return nil
}
