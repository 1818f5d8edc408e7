//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// DeviceFactory creates the platform ble.Device (overridden in tests).
//
//nolint:revive // exported for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return darwin.NewDevice()
}
