package main

import (
	"errors"
	"fmt"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/device"
	"github.com/srg/blams/internal/host/goble"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the BLE connection was unexpectedly lost
	// while watching. It differs from device.ErrNotConnected, which means the
	// device was never connected.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNoAddress is returned when neither an argument nor the config file
	// names a device.
	ErrNoAddress = errors.New("device address required: pass it as an argument or set 'address' in the config file")
)

// FormatUserError turns known errors into short, actionable messages.
func FormatUserError(err error) string {
	var notFound *device.NotFoundError
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.As(err, &notFound) && notFound.Resource == "service" &&
		len(notFound.UUIDs) == 1 && notFound.UUIDs[0] == ams.ServiceUUID.String():
		return "device does not expose the Apple Media Service (is it an iOS device paired with this host?)"
	case errors.Is(err, goble.ErrCommandUnavailable):
		return "device does not accept remote commands"
	case errors.Is(err, ErrConnectionLost):
		return "connection to the device was lost"
	case errors.Is(err, device.ErrTimeout):
		return fmt.Sprintf("timed out: %v", err)
	case errors.Is(err, device.ErrNotConnected):
		return fmt.Sprintf("device is not connected: %v", err)
	default:
		return err.Error()
	}
}
