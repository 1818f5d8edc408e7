package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blams/internal/ringchan"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [device-address]",
	Short: "Print now-playing updates from an AMS media source",
	Long: `Connects to the device, discovers the Apple Media Service, subscribes to
entity updates and prints every media change until interrupted.

Examples:
  # Watch until Ctrl+C
  blams watch AA:BB:CC:DD:EE:FF

  # JSON lines for one minute
  blams watch AA:BB:CC:DD:EE:FF --json --duration 1m

The address may be omitted when 'address' is set in the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchJSON     bool
	watchDuration time.Duration
)

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Output updates as JSON lines")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 watches until interrupted)")
}

// logUpdateStats reports updates the ring discarded because output was too slow.
func logUpdateStats(logger *logrus.Logger, stats func() ringchan.Stats) {
	st := stats()
	entry := logger.WithFields(logrus.Fields{
		"written":     st.Written,
		"overwritten": st.Overwritten,
	})
	if st.Overwritten > 0 {
		entry.Warn("Media updates dropped by slow output")
		return
	}
	entry.Debug("Media update stream finished")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchDuration < 0 {
		return fmt.Errorf("invalid duration %s: must be >= 0", watchDuration)
	}

	env, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	address, err := env.address(arg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	if watchDuration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, watchDuration)
		defer cancelTimeout()
	}

	sess, err := openMediaSession(ctx, env, address, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	defer logUpdateStats(env.logger, sess.UpdateStats)

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s. Press Ctrl+C to stop...\n", address)

	printer := newMediaPrinter(cmd.OutOrStdout(), watchJSON)
	for {
		select {
		case u := <-sess.Updates():
			if err := printer.Update(u); err != nil {
				return err
			}
		case <-sess.Disconnected():
			return ErrConnectionLost
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		}
	}
}
