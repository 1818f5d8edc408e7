package goble

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ble/ble"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/device"
)

// NormalizeError maps known go-ble error strings to structured ConnectionError
// types, wrapping the original error.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "device not connected"),
		device.ContainsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case device.ContainsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case device.ContainsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", device.ErrNotInitialized, err)
	default:
		return err
	}
}

// statusOf converts a go-ble error into an ams.Status.
func statusOf(err error) ams.Status {
	if err == nil {
		return ams.StatusOK
	}

	var attErr ble.ATTError
	if errors.As(err, &attErr) {
		return ams.Status(attErr)
	}

	err = NormalizeError(err)
	switch {
	case errors.Is(err, device.ErrNotConnected), errors.Is(err, device.ErrNotInitialized):
		return ams.StatusNotConnected
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, device.ErrTimeout):
		return ams.StatusTimeout
	default:
		return ams.StatusHostFailure
	}
}
