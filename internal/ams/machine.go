package ams

import (
	"fmt"
)

// State is the discovery machine state.
type State int

const (
	StateIdle State = iota
	StateServiceLookup
	StateCharacteristicScan
	StateDescriptorScan
	StateReady
	StateNotFound
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateServiceLookup:
		return "ServiceLookup"
	case StateCharacteristicScan:
		return "CharacteristicScan"
	case StateDescriptorScan:
		return "DescriptorScan"
	case StateReady:
		return "Ready"
	case StateNotFound:
		return "NotFound"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends a discovery attempt.
func (s State) Terminal() bool {
	return s == StateReady || s == StateNotFound || s == StateError
}

// Machine is the AMS discovery state machine. Step is a pure transition: it
// mutates only the machine and returns the side effects to perform.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	state   State
	conn    ConnID
	attempt uint64

	handles  HandleTable
	progress Progress

	outcome    Outcome
	lastStatus Status
	lastPhase  Phase
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{}
}

// Start begins a new discovery attempt on conn. Handles and flags of any
// previous attempt are discarded.
func (m *Machine) Start(conn ConnID) []Command {
	m.clear()
	m.conn = conn
	m.state = StateServiceLookup
	return []Command{{Kind: CmdDiscoverService, Conn: conn, UUID: ServiceUUID}}
}

// Reset returns the machine to Idle. Events from earlier attempts are ignored
// afterwards.
func (m *Machine) Reset() {
	m.clear()
	m.conn = 0
}

func (m *Machine) clear() {
	m.attempt++
	m.state = StateIdle
	m.handles = HandleTable{}
	m.progress = Progress{}
	m.outcome = OutcomePending
	m.lastStatus = StatusOK
	m.lastPhase = PhaseService
}

// Active reports whether an attempt is in progress.
func (m *Machine) Active() bool {
	return m.state != StateIdle && !m.state.Terminal()
}

// Abort ends an in-progress attempt with an error outcome. StatusTimeout
// produces OutcomeTimeout.
func (m *Machine) Abort(status Status) []Command {
	if !m.Active() {
		return nil
	}
	m.lastStatus = status
	if status == StatusTimeout {
		return m.complete(OutcomeTimeout)
	}
	return m.complete(OutcomeError)
}

func (m *Machine) State() State         { return m.state }
func (m *Machine) Conn() ConnID         { return m.conn }
func (m *Machine) Attempt() uint64      { return m.attempt }
func (m *Machine) Handles() HandleTable { return m.handles }
func (m *Machine) Progress() Progress   { return m.progress }
func (m *Machine) Outcome() Outcome     { return m.outcome }
func (m *Machine) LastStatus() Status   { return m.lastStatus }

// Err describes why the last attempt ended in StateError, nil otherwise.
func (m *Machine) Err() error {
	if m.state != StateError {
		return nil
	}
	if m.outcome == OutcomeTimeout {
		return StatusTimeout.Err(m.lastPhase.String())
	}
	return m.lastStatus.Err(m.lastPhase.String())
}

// Step applies ev and returns the commands it produces. Events for another
// connection or attempt, and any event after completion, are ignored.
func (m *Machine) Step(ev Event) []Command {
	if !m.Active() || ev.Conn != m.conn || ev.Attempt != m.attempt {
		return nil
	}

	switch ev.Kind {
	case EventTimeout:
		m.lastStatus = StatusTimeout
		return m.complete(OutcomeTimeout)
	case EventError:
		m.lastStatus = ev.Status
		m.lastPhase = ev.Phase
		return m.complete(OutcomeError)
	}

	switch m.state {
	case StateServiceLookup:
		return m.stepService(ev)
	case StateCharacteristicScan:
		return m.stepCharacteristic(ev)
	case StateDescriptorScan:
		return m.stepDescriptor(ev)
	}
	return nil
}

func (m *Machine) stepService(ev Event) []Command {
	switch ev.Kind {
	case EventServiceFound:
		if m.progress.ServiceFound || ev.Service == nil || !ev.Service.UUID.Equal(ServiceUUID) {
			return nil
		}
		m.progress.ServiceFound = true
		m.handles.Service = ServiceHandle{Start: ev.Service.StartHandle, End: ev.Service.EndHandle}
		return []Command{m.notify("AMS Service discovered")}

	case EventServiceDone:
		if !m.progress.ServiceFound {
			return m.complete(OutcomeNotFound)
		}
		m.state = StateCharacteristicScan
		m.lastPhase = PhaseCharacteristic
		return []Command{{
			Kind:  CmdDiscoverCharacteristics,
			Conn:  m.conn,
			Start: m.handles.Service.Start,
			End:   m.handles.Service.End,
		}}
	}
	return nil
}

func (m *Machine) stepCharacteristic(ev Event) []Command {
	switch ev.Kind {
	case EventCharFound:
		c := ev.Characteristic
		if c == nil {
			return nil
		}
		entry := m.characteristic(c)
		if entry == nil || entry.Discovered {
			return nil
		}
		entry.ValueHandle = c.ValueHandle
		entry.EndHandle = c.EndHandle
		entry.Discovered = true
		return []Command{m.notify("AMS Characteristic discovered: " + CharacteristicName(c.UUID))}

	case EventCharDone:
		var cmds []Command
		for _, entry := range []CharacteristicEntry{m.handles.RemoteCommand, m.handles.EntityUpdate} {
			if !entry.Discovered {
				continue
			}
			end := entry.EndHandle
			if end == 0 {
				end = m.handles.Service.End
			}
			cmds = append(cmds, Command{
				Kind:   CmdDiscoverDescriptors,
				Conn:   m.conn,
				Start:  entry.ValueHandle,
				End:    end,
				Handle: entry.ValueHandle,
			})
		}
		if len(cmds) == 0 {
			// neither notify-capable characteristic exists
			return m.complete(OutcomeNotFound)
		}
		m.progress.PendingScans = len(cmds)
		m.state = StateDescriptorScan
		m.lastPhase = PhaseDescriptor
		return cmds
	}
	return nil
}

func (m *Machine) stepDescriptor(ev Event) []Command {
	var cmds []Command

	switch ev.Kind {
	case EventDescFound:
		d := ev.Descriptor
		if d == nil || d.Handle == 0 || !d.UUID.Equal(CCCDUUID) {
			return nil
		}
		h := &m.handles
		switch {
		case h.RemoteCommand.Discovered && ev.ScanHandle == h.RemoteCommand.ValueHandle:
			if h.RemoteCommandCCCD.Found {
				return nil
			}
			h.RemoteCommandCCCD = DescriptorEntry{Handle: d.Handle, Found: true}
			m.progress.PendingWrites++
			cmds = append(cmds, m.notify("AMS Descriptor discovered: Remote Command"))
			cmds = append(cmds, subscribeCommands(m.conn, d.Handle, h.RemoteCommand.ValueHandle, false)...)
		case h.EntityUpdate.Discovered && ev.ScanHandle == h.EntityUpdate.ValueHandle:
			if h.EntityUpdateCCCD.Found {
				return nil
			}
			h.EntityUpdateCCCD = DescriptorEntry{Handle: d.Handle, Found: true}
			m.progress.PendingWrites++
			cmds = append(cmds, m.notify("AMS Descriptor discovered: Entity Update"))
			cmds = append(cmds, subscribeCommands(m.conn, d.Handle, h.EntityUpdate.ValueHandle, true)...)
		}
		return cmds

	case EventDescDone:
		if m.progress.PendingScans > 0 {
			m.progress.PendingScans--
		}

	case EventWriteComplete:
		if m.progress.PendingWrites > 0 {
			m.progress.PendingWrites--
		}
		if ev.Status.IsError() {
			cmds = append(cmds, m.notify(fmt.Sprintf("AMS subscribe failed: handle 0x%04X: %s", ev.Handle, ev.Status)))
		} else {
			cmds = append(cmds, m.notify(fmt.Sprintf("AMS subscribed: handle 0x%04X", ev.Handle)))
		}

	default:
		return nil
	}

	if m.settled() {
		cmds = append(cmds, m.complete(OutcomeReady)...)
	}
	return cmds
}

// settled reports whether the descriptor phase stopped progressing: every
// subscribe write was confirmed and either both descriptors were found or no
// scan is outstanding.
func (m *Machine) settled() bool {
	if m.progress.PendingWrites > 0 {
		return false
	}
	both := m.handles.RemoteCommandCCCD.Found && m.handles.EntityUpdateCCCD.Found
	return both || m.progress.PendingScans == 0
}

func (m *Machine) characteristic(c *Characteristic) *CharacteristicEntry {
	switch {
	case c.UUID.Equal(RemoteCommandUUID):
		return &m.handles.RemoteCommand
	case c.UUID.Equal(EntityUpdateUUID):
		return &m.handles.EntityUpdate
	case c.UUID.Equal(EntityAttributeUUID):
		return &m.handles.EntityAttribute
	default:
		return nil
	}
}

func (m *Machine) complete(o Outcome) []Command {
	m.outcome = o
	switch o {
	case OutcomeReady:
		m.state = StateReady
	case OutcomeNotFound:
		m.state = StateNotFound
	default:
		m.state = StateError
	}
	return []Command{{Kind: CmdComplete, Conn: m.conn, Outcome: o}}
}

func (m *Machine) notify(msg string) Command {
	return Command{Kind: CmdNotify, Conn: m.conn, Message: msg}
}
