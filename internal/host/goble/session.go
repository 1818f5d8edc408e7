package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/device"
	"github.com/srg/blams/internal/groutine"
	"github.com/srg/blams/internal/ringchan"
)

// ErrCommandUnavailable is returned by SendCommand when the peripheral has
// no remote command characteristic.
var ErrCommandUnavailable = errors.New("remote command characteristic not available")

// Dial connects to a peripheral (overridden in tests).
var Dial = func(ctx context.Context, address string) (ble.Client, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(dev)
	return ble.Dial(ctx, ble.NewAddr(address))
}

// Options configures a Session.
type Options struct {
	ConnectTimeout   time.Duration `default:"30s"`
	DiscoveryTimeout time.Duration `default:"15s"`
	UpdateBuffer     int           `default:"32"`

	// Notifier receives discovery debug messages; nil logs them.
	Notifier ams.Notifier
}

// Session owns one BLE connection to an AMS media source: it dials, runs
// discovery under a timeout, resets the client on disconnect and forwards
// remote commands.
type Session struct {
	logger  *logrus.Logger
	opts    Options
	host    *Host
	client  *ams.Client
	updates *ringchan.Ring[ams.MediaUpdate]

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conn         ble.Client
	connID       ams.ConnID
	disconnected chan struct{}
}

// NewSession creates a session and starts its event loop. Zero option values
// are replaced by defaults.
func NewSession(logger *logrus.Logger, opts Options) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)

	s := &Session{
		logger:  logger,
		opts:    opts,
		host:    NewHost(logger),
		updates: ringchan.New[ams.MediaUpdate](opts.UpdateBuffer),
	}

	clientOpts := []ams.Option{ams.WithUpdates(s.updates)}
	if opts.Notifier != nil {
		clientOpts = append(clientOpts, ams.WithNotifier(opts.Notifier))
	}
	s.client = ams.NewClient(s.host, logger, clientOpts...)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	groutine.Go(s.ctx, "ams-loop", logger, s.host.Run)
	return s
}

// Connect dials address and attaches the connection to the event loop.
func (s *Session) Connect(ctx context.Context, address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("device address is empty")
	}

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		s.logger.WithField("address", address).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": s.opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	connCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	client, err := Dial(connCtx, address)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("failed to connect to device with address %q: %w", address, device.ErrTimeout)
		}
		return fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	s.mu.Lock()
	s.connID++
	id := s.connID
	s.conn = client
	gone := make(chan struct{})
	s.disconnected = gone
	s.mu.Unlock()

	if err := s.host.Do(ctx, func() {
		s.host.Attach(client, id, s.client.OnNotification)
	}); err != nil {
		return err
	}

	if monitored, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(s.ctx, "ams-connection-monitor", s.logger, func(ctx context.Context) {
			select {
			case <-monitored.Disconnected():
				s.logger.WithField("address", address).Warn("BLE device disconnected")
				s.drop(client)
			case <-ctx.Done():
			}
		})
	} else {
		s.logger.Debug("Client does not report disconnection")
	}

	s.logger.WithField("address", address).Info("BLE device connected successfully")
	return nil
}

// drop resets the AMS client for a lost connection.
func (s *Session) drop(client ble.Client) {
	s.mu.Lock()
	if s.conn != client {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	gone := s.disconnected
	s.mu.Unlock()

	_ = s.host.Do(s.ctx, func() {
		s.client.Reset()
		s.host.Detach()
	})
	// buffered updates describe the lost connection
	for {
		if _, ok := s.updates.TryReceive(); !ok {
			break
		}
	}
	close(gone)
}

// Disconnected is closed when the current connection is lost or closed.
func (s *Session) Disconnected() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.disconnected
}

// Discover runs AMS discovery on the current connection. It returns
// device.ErrTimeout when the discovery timeout fires and a
// *device.NotFoundError when the peripheral has no AMS service.
func (s *Session) Discover(ctx context.Context) (ams.Outcome, error) {
	s.mu.Lock()
	id, connected := s.connID, s.conn != nil
	s.mu.Unlock()
	if !connected {
		return ams.OutcomeError, device.ErrNotConnected
	}

	type result struct {
		outcome ams.Outcome
		err     error
	}
	done := make(chan result, 1)
	if err := s.host.Do(ctx, func() {
		s.client.Discover(id, func(ams.ConnID) {
			done <- result{outcome: s.client.Outcome(), err: s.client.Err()}
		})
	}); err != nil {
		return ams.OutcomeError, err
	}

	timer := time.NewTimer(s.opts.DiscoveryTimeout)
	defer timer.Stop()

	var r result
	select {
	case r = <-done:
	case <-timer.C:
		s.logger.WithField("timeout", s.opts.DiscoveryTimeout).Warn("AMS discovery timed out")
		if err := s.host.Do(ctx, func() { s.client.Abort(id) }); err != nil {
			return ams.OutcomeError, err
		}
		r = <-done
	case <-ctx.Done():
		_ = s.host.Do(s.ctx, func() { s.client.Reset() })
		return ams.OutcomeError, ctx.Err()
	}

	switch r.outcome {
	case ams.OutcomeReady:
		return r.outcome, nil
	case ams.OutcomeNotFound:
		return r.outcome, &device.NotFoundError{Resource: "service", UUIDs: []string{ams.ServiceUUID.String()}}
	case ams.OutcomeTimeout:
		return r.outcome, fmt.Errorf("AMS discovery: %w", device.ErrTimeout)
	}

	var hostErr *ams.HostError
	if errors.As(r.err, &hostErr) && hostErr.Status == ams.StatusNotConnected {
		return r.outcome, fmt.Errorf("AMS discovery failed: %w: %v", device.ErrNotConnected, r.err)
	}
	return r.outcome, fmt.Errorf("AMS discovery failed: %w", r.err)
}

// SendCommand forwards cmd to the media source and returns once the write
// has been handed to the peripheral.
func (s *Session) SendCommand(ctx context.Context, cmd ams.RemoteCommand) error {
	var issued bool
	if err := s.host.Do(ctx, func() { issued = s.client.SendCommand(cmd) }); err != nil {
		return err
	}
	if !issued {
		return ErrCommandUnavailable
	}
	if err := s.host.Flush(ctx); err != nil {
		return err
	}
	s.logger.WithField("command", cmd).Info("Remote command sent")
	return nil
}

// Media returns a snapshot of the decoded media state.
func (s *Session) Media() ams.MediaState {
	return s.client.Media()
}

// Handles returns the discovered handle table.
func (s *Session) Handles(ctx context.Context) (ams.HandleTable, error) {
	var h ams.HandleTable
	err := s.host.Do(ctx, func() { h = s.client.Handles() })
	return h, err
}

// Updates delivers every applied media change. Slow readers lose the oldest
// updates.
func (s *Session) Updates() <-chan ams.MediaUpdate {
	return s.updates.C()
}

// UpdateStats returns the update stream counters. Overwritten counts updates
// lost to a slow reader.
func (s *Session) UpdateStats() ringchan.Stats {
	return s.updates.Stats()
}

// Disconnect closes the current connection, if any.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	client := s.conn
	s.mu.Unlock()
	if client == nil {
		s.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	s.logger.Info("Disconnecting BLE device...")
	if err := client.ClearSubscriptions(); err != nil {
		s.logger.WithField("error", err).Warn("Failed to clear subscriptions")
	}
	err := client.CancelConnection()
	s.drop(client)
	if err != nil {
		s.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	s.logger.Info("BLE device disconnected successfully")
	return nil
}

// Close disconnects and stops the event loop.
func (s *Session) Close() error {
	err := s.Disconnect()
	s.cancel()
	return err
}
