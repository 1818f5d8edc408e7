package ams

import (
	"fmt"

	"github.com/go-ble/ble"
)

// ConnID identifies a host connection.
type ConnID uint16

// Phase names the discovery stage an event or error belongs to.
type Phase int

const (
	PhaseService Phase = iota
	PhaseCharacteristic
	PhaseDescriptor
	PhaseWrite
)

func (p Phase) String() string {
	switch p {
	case PhaseService:
		return "service discovery"
	case PhaseCharacteristic:
		return "characteristic discovery"
	case PhaseDescriptor:
		return "descriptor discovery"
	case PhaseWrite:
		return "write"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// EventKind enumerates the inputs of the discovery machine.
type EventKind int

const (
	EventServiceFound EventKind = iota
	EventServiceDone
	EventCharFound
	EventCharDone
	EventDescFound
	EventDescDone
	EventWriteComplete
	EventError
	EventTimeout
)

var eventKindNames = [...]string{
	EventServiceFound:  "ServiceFound",
	EventServiceDone:   "ServiceDone",
	EventCharFound:     "CharFound",
	EventCharDone:      "CharDone",
	EventDescFound:     "DescFound",
	EventDescDone:      "DescDone",
	EventWriteComplete: "WriteComplete",
	EventError:         "Error",
	EventTimeout:       "Timeout",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Service is a discovered primary service.
type Service struct {
	UUID        ble.UUID
	StartHandle uint16
	EndHandle   uint16
}

// Characteristic is a discovered characteristic declaration.
type Characteristic struct {
	UUID        ble.UUID
	ValueHandle uint16
	EndHandle   uint16
	Property    ble.Property
}

// Descriptor is a discovered characteristic descriptor.
type Descriptor struct {
	UUID   ble.UUID
	Handle uint16
}

// Event is one host callback translated for the machine. Conn and Attempt
// identify the discovery attempt the callback belongs to.
type Event struct {
	Kind    EventKind
	Conn    ConnID
	Attempt uint64

	// Phase and Status are set for EventError and EventWriteComplete.
	Phase  Phase
	Status Status

	Service        *Service
	Characteristic *Characteristic
	Descriptor     *Descriptor

	// ScanHandle is the characteristic value handle a descriptor scan was
	// issued for.
	ScanHandle uint16
	// Handle is the written handle of an EventWriteComplete.
	Handle uint16
}

// CommandKind enumerates the side effects the machine asks its owner to run.
type CommandKind int

const (
	CmdDiscoverService CommandKind = iota
	CmdDiscoverCharacteristics
	CmdDiscoverDescriptors
	CmdWrite
	CmdNotify
	CmdComplete
)

func (k CommandKind) String() string {
	switch k {
	case CmdDiscoverService:
		return "DiscoverService"
	case CmdDiscoverCharacteristics:
		return "DiscoverCharacteristics"
	case CmdDiscoverDescriptors:
		return "DiscoverDescriptors"
	case CmdWrite:
		return "Write"
	case CmdNotify:
		return "Notify"
	case CmdComplete:
		return "Complete"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Outcome is the terminal result of a discovery attempt.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeReady
	OutcomeNotFound
	OutcomeError
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeReady:
		return "ready"
	case OutcomeNotFound:
		return "not found"
	case OutcomeError:
		return "error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Command is a side effect produced by Machine.Step.
//
//   - CmdDiscoverService: UUID
//   - CmdDiscoverCharacteristics: Start, End
//   - CmdDiscoverDescriptors: Start, End, Handle (characteristic value handle)
//   - CmdWrite: Handle, Value, NoResponse, Confirm (report EventWriteComplete)
//   - CmdNotify: Message
//   - CmdComplete: Outcome
type Command struct {
	Kind CommandKind
	Conn ConnID

	UUID       ble.UUID
	Start      uint16
	End        uint16
	Handle     uint16
	Value      []byte
	NoResponse bool
	Confirm    bool

	Message string
	Outcome Outcome
}

// ServiceResult is one item of a service discovery stream.
type ServiceResult struct {
	Status  Status
	Service *Service
}

// CharacteristicResult is one item of a characteristic discovery stream.
type CharacteristicResult struct {
	Status         Status
	Characteristic *Characteristic
}

// DescriptorResult is one item of a descriptor discovery stream.
type DescriptorResult struct {
	Status     Status
	Descriptor *Descriptor
}

// WriteRequest is a fire-and-forget attribute write. OnComplete, when set,
// is called once with the write status.
type WriteRequest struct {
	Handle     uint16
	Value      []byte
	NoResponse bool
	OnComplete func(Status)
}

// Host is the GATT host stack the client drives.
//
// Discovery callbacks deliver zero or more StatusOK items followed by exactly
// one terminal result carrying StatusDone or an error status. Callbacks must
// be delivered on the same serialized context that calls into Client.
type Host interface {
	DiscoverService(conn ConnID, uuid ble.UUID, cb func(ServiceResult))
	DiscoverCharacteristics(conn ConnID, start, end uint16, cb func(CharacteristicResult))
	DiscoverDescriptors(conn ConnID, start, end uint16, cb func(DescriptorResult))
	Write(conn ConnID, w WriteRequest)
}
