package ams

import (
	"fmt"
)

// Status is a host stack result code. Values 0x01-0xFF mirror ATT error codes,
// values above 0xFF are host-local failures.
type Status int

const (
	// StatusOK marks a delivered item in a discovery stream or a successful write.
	StatusOK Status = 0
	// StatusDone terminates a discovery stream without error.
	StatusDone Status = -1

	StatusNotConnected  Status = 0x100
	StatusTimeout       Status = 0x101
	StatusUnknownHandle Status = 0x102
	StatusHostFailure   Status = 0x103
)

// IsError reports whether s is neither a delivered item nor the done sentinel.
func (s Status) IsError() bool {
	return s != StatusOK && s != StatusDone
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDone:
		return "done"
	case StatusNotConnected:
		return "not connected"
	case StatusTimeout:
		return "timeout"
	case StatusUnknownHandle:
		return "unknown handle"
	case StatusHostFailure:
		return "host failure"
	}
	if s > 0 && s <= 0xFF {
		return fmt.Sprintf("att error 0x%02X", int(s))
	}
	return fmt.Sprintf("status %d", int(s))
}

// Err converts an error status into a *HostError. It returns nil for
// StatusOK and StatusDone.
func (s Status) Err(op string) error {
	if !s.IsError() {
		return nil
	}
	return &HostError{Status: s, Op: op}
}

// HostError is a failed host stack operation observed during discovery.
type HostError struct {
	Status Status
	Op     string
}

func (e *HostError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("host error: %s", e.Status)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}
