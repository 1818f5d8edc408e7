package ams

import (
	"github.com/sirupsen/logrus"

	"github.com/srg/blams/internal/ringchan"
)

// Notifier receives short human readable debug messages about discovery.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

type logNotifier struct {
	logger *logrus.Logger
}

func (n logNotifier) Notify(msg string) {
	n.logger.Debugf("[AMS DEBUG] %s", msg)
}

// Option configures a Client.
type Option func(*Client)

// WithNotifier routes debug messages to n instead of the logger.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithUpdates publishes every decoded media change to r.
func WithUpdates(r *ringchan.Ring[MediaUpdate]) Option {
	return func(c *Client) { c.decoder = NewDecoder(r) }
}

// Client discovers the AMS service on a connection, keeps its subscriptions
// and decodes its notifications.
//
// Discover, Reset, Abort, OnNotification and SendCommand must be called from
// the host's serialized event context, the same one that delivers Host
// callbacks. Media and the media accessors may be called from any goroutine.
type Client struct {
	host     Host
	logger   *logrus.Logger
	notifier Notifier

	machine *Machine
	decoder *Decoder

	onComplete func(ConnID)
}

// NewClient creates a client driving host.
func NewClient(host Host, logger *logrus.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Client{
		host:    host,
		logger:  logger,
		machine: NewMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = logNotifier{logger: logger}
	}
	if c.decoder == nil {
		c.decoder = NewDecoder(nil)
	}
	return c
}

// Discover starts discovery on conn. onComplete is called exactly once, when
// discovery stops progressing. A discovery still running is aborted first and
// its own completion callback fires.
func (c *Client) Discover(conn ConnID, onComplete func(ConnID)) {
	c.run(c.machine.Abort(StatusHostFailure))

	c.logger.WithField("conn", conn).Debug("Starting AMS discovery...")
	c.decoder.Reset()
	c.onComplete = onComplete
	c.run(c.machine.Start(conn))
}

// Reset drops every handle, flag and media field. It must be called on
// disconnect. A pending discovery completes with an error outcome; callbacks
// still in flight for it are ignored.
func (c *Client) Reset() {
	c.run(c.machine.Abort(StatusNotConnected))
	c.machine.Reset()
	c.decoder.Reset()
	c.onComplete = nil
}

// Abort ends a pending discovery on conn with a timeout outcome.
func (c *Client) Abort(conn ConnID) {
	c.dispatch(Event{Kind: EventTimeout, Conn: conn, Attempt: c.machine.Attempt()})
}

// OnNotification decodes a notification received on handle.
func (c *Client) OnNotification(handle uint16, payload []byte) {
	if !c.decoder.Decode(c.machine.Handles(), handle, payload) {
		c.logger.WithFields(logrus.Fields{
			"handle": handle,
			"len":    len(payload),
		}).Trace("AMS notification ignored")
	}
}

// SendCommand writes cmd to the remote command characteristic. It is a no-op
// until that characteristic has been discovered and reports whether a write
// was issued.
func (c *Client) SendCommand(cmd RemoteCommand) bool {
	rc := c.machine.Handles().RemoteCommand
	if !rc.Discovered {
		c.logger.WithField("command", cmd).Debug("AMS remote command unavailable, ignoring")
		return false
	}
	c.host.Write(c.machine.Conn(), WriteRequest{
		Handle:     rc.ValueHandle,
		Value:      cmd.Encode(),
		NoResponse: true,
	})
	return true
}

// CanSendCommands reports whether SendCommand would issue a write.
func (c *Client) CanSendCommands() bool {
	return c.machine.Handles().RemoteCommand.Discovered
}

func (c *Client) State() State         { return c.machine.State() }
func (c *Client) Outcome() Outcome     { return c.machine.Outcome() }
func (c *Client) Handles() HandleTable { return c.machine.Handles() }
func (c *Client) Err() error           { return c.machine.Err() }

// Media returns a snapshot of the decoded media state.
func (c *Client) Media() MediaState { return c.decoder.Snapshot() }

func (c *Client) Artist() string { return c.decoder.Snapshot().Artist }
func (c *Client) Album() string  { return c.decoder.Snapshot().Album }
func (c *Client) Title() string  { return c.decoder.Snapshot().Title }

func (c *Client) Duration() float64     { return c.decoder.Snapshot().DurationSeconds }
func (c *Client) Elapsed() float64      { return c.decoder.Snapshot().ElapsedSeconds }
func (c *Client) PlaybackRate() float64 { return c.decoder.Snapshot().PlaybackRate }
func (c *Client) IsPlaying() bool       { return c.decoder.Snapshot().IsPlaying }

func (c *Client) dispatch(ev Event) {
	c.run(c.machine.Step(ev))
}

func (c *Client) run(cmds []Command) {
	for _, cmd := range cmds {
		c.exec(cmd)
	}
}

func (c *Client) exec(cmd Command) {
	conn, attempt := cmd.Conn, c.machine.Attempt()

	switch cmd.Kind {
	case CmdDiscoverService:
		c.host.DiscoverService(conn, cmd.UUID, func(r ServiceResult) {
			ev := Event{Conn: conn, Attempt: attempt, Phase: PhaseService, Status: r.Status, Service: r.Service}
			switch {
			case r.Status == StatusDone:
				ev.Kind = EventServiceDone
			case r.Status.IsError():
				ev.Kind = EventError
			default:
				ev.Kind = EventServiceFound
			}
			c.dispatch(ev)
		})

	case CmdDiscoverCharacteristics:
		c.host.DiscoverCharacteristics(conn, cmd.Start, cmd.End, func(r CharacteristicResult) {
			ev := Event{Conn: conn, Attempt: attempt, Phase: PhaseCharacteristic, Status: r.Status, Characteristic: r.Characteristic}
			switch {
			case r.Status == StatusDone:
				ev.Kind = EventCharDone
			case r.Status.IsError():
				ev.Kind = EventError
			default:
				ev.Kind = EventCharFound
			}
			c.dispatch(ev)
		})

	case CmdDiscoverDescriptors:
		scan := cmd.Handle
		c.host.DiscoverDescriptors(conn, cmd.Start, cmd.End, func(r DescriptorResult) {
			ev := Event{Conn: conn, Attempt: attempt, Phase: PhaseDescriptor, Status: r.Status, Descriptor: r.Descriptor, ScanHandle: scan}
			switch {
			case r.Status == StatusDone:
				ev.Kind = EventDescDone
			case r.Status.IsError():
				ev.Kind = EventError
			default:
				ev.Kind = EventDescFound
			}
			c.dispatch(ev)
		})

	case CmdWrite:
		req := WriteRequest{Handle: cmd.Handle, Value: cmd.Value, NoResponse: cmd.NoResponse}
		if cmd.Confirm {
			handle := cmd.Handle
			req.OnComplete = func(s Status) {
				c.logger.WithFields(logrus.Fields{
					"handle": handle,
					"status": s,
				}).Debug("AMS subscribe write completed")
				c.dispatch(Event{Kind: EventWriteComplete, Conn: conn, Attempt: attempt, Phase: PhaseWrite, Status: s, Handle: handle})
			}
		}
		c.host.Write(conn, req)

	case CmdNotify:
		c.notifier.Notify(cmd.Message)

	case CmdComplete:
		c.logger.WithFields(logrus.Fields{
			"conn":    conn,
			"outcome": cmd.Outcome,
			"status":  c.machine.LastStatus(),
		}).Info("AMS discovery complete")
		cb := c.onComplete
		c.onComplete = nil
		if cb != nil {
			cb(conn)
		}
	}
}
