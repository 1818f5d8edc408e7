//go:build test

package main

import (
	"bytes"
	"context"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/host/goble"
	"github.com/srg/blams/internal/ringchan"
)

// Test device addresses for consistent fake device identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
	TestDeviceAddress2 = "00:00:00:00:00:02"
)

// fakeSession is a scripted mediaSession.
type fakeSession struct {
	mu sync.Mutex

	opts        goble.Options
	connectErr  error
	discoverErr error
	sendErr     error
	media       ams.MediaState
	stats       ringchan.Stats

	address      string
	discovered   bool
	sent         []ams.RemoteCommand
	closed       bool
	updates      chan ams.MediaUpdate
	disconnected chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		updates:      make(chan ams.MediaUpdate, 16),
		disconnected: make(chan struct{}),
	}
}

func (f *fakeSession) Connect(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.address = address
	return f.connectErr
}

func (f *fakeSession) Discover(context.Context) (ams.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opts.Notifier != nil {
		f.opts.Notifier.Notify("AMS Service discovered")
	}
	if f.discoverErr != nil {
		return ams.OutcomeError, f.discoverErr
	}
	f.discovered = true
	return ams.OutcomeReady, nil
}

func (f *fakeSession) SendCommand(_ context.Context, cmd ams.RemoteCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSession) Media() ams.MediaState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.media
}

func (f *fakeSession) Updates() <-chan ams.MediaUpdate { return f.updates }
func (f *fakeSession) UpdateStats() ringchan.Stats      { return f.stats }
func (f *fakeSession) Disconnected() <-chan struct{}   { return f.disconnected }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// CommandTestSuite runs CLI commands against a fake session.
// All cmd/blams test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	Session  *fakeSession
	Sessions int

	originalNewSession func(*logrus.Logger, goble.Options) mediaSession
	originalNoColor    bool
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalNewSession = newSession
	s.originalNoColor = color.NoColor
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownSuite() {
	newSession = s.originalNewSession
	color.NoColor = s.originalNoColor
}

func (s *CommandTestSuite) SetupTest() {
	// keep the default config path away from the developer's real config
	s.T().Setenv("HOME", s.T().TempDir())

	s.Session = newFakeSession()
	s.Sessions = 0
	newSession = func(_ *logrus.Logger, opts goble.Options) mediaSession {
		s.Sessions++
		s.Session.opts = opts
		return s.Session
	}

	watchJSON, watchDuration = false, 0
	sendShowState = false
	commandsJSON = false
	decodeSource, decodeJSON, decodeVerbose = "entity-update", false, false

	for name, value := range map[string]string{"log-level": "", "config": "", "debug-notifications": "false"} {
		s.Require().NoError(rootCmd.PersistentFlags().Set(name, value))
	}
}

// ExecuteCommand runs the root command with args and returns stdout, stderr
// and the command error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
