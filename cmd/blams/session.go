package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/host/goble"
	"github.com/srg/blams/internal/ringchan"
	"github.com/srg/blams/pkg/config"
)

// mediaSession is the part of goble.Session used by the commands.
type mediaSession interface {
	Connect(ctx context.Context, address string) error
	Discover(ctx context.Context) (ams.Outcome, error)
	SendCommand(ctx context.Context, cmd ams.RemoteCommand) error
	Media() ams.MediaState
	Updates() <-chan ams.MediaUpdate
	UpdateStats() ringchan.Stats
	Disconnected() <-chan struct{}
	Close() error
}

// newSession creates the BLE session (overridden in tests).
var newSession = func(logger *logrus.Logger, opts goble.Options) mediaSession {
	return goble.NewSession(logger, opts)
}

// commandEnv is the configuration shared by the connected commands.
type commandEnv struct {
	cfg    *config.Config
	logger *logrus.Logger
	debug  bool
}

func newCommandEnv(cmd *cobra.Command) (*commandEnv, error) {
	cfg, fromFile, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg, fromFile)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug-notifications")
	return &commandEnv{cfg: cfg, logger: logger, debug: debug || cfg.DebugNotifications}, nil
}

// address picks the device address from the argument or the config file.
func (e *commandEnv) address(arg string) (string, error) {
	if a := strings.TrimSpace(arg); a != "" {
		return a, nil
	}
	if e.cfg.Address != "" {
		return e.cfg.Address, nil
	}
	return "", ErrNoAddress
}

func (e *commandEnv) sessionOptions(status io.Writer) goble.Options {
	opts := e.cfg.SessionOptions()
	if e.debug {
		tag := color.New(color.FgYellow).SprintFunc()
		opts.Notifier = ams.NotifierFunc(func(msg string) {
			fmt.Fprintf(status, "%s %s\n", tag("[AMS]"), msg)
		})
	}
	return opts
}

// openMediaSession connects to address and runs AMS discovery. The caller
// owns the returned session.
func openMediaSession(ctx context.Context, env *commandEnv, address string, status io.Writer) (mediaSession, error) {
	sess := newSession(env.logger, env.sessionOptions(status))

	// debug notifications share the status stream with the progress line
	var progress *ProgressPrinter
	if progressEnabled(status) && !env.debug {
		progress = NewProgressPrinter(status, "Connecting to "+address, "Connecting")
		progress.Start()
		defer progress.Stop()
	}

	if err := sess.Connect(ctx, address); err != nil {
		_ = sess.Close()
		return nil, err
	}
	if progress != nil {
		progress.SetPhase("Discovering AMS")
	}

	if _, err := sess.Discover(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
