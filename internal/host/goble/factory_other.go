//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"

	"github.com/srg/blams/internal/device"
)

// DeviceFactory creates the platform ble.Device (overridden in tests).
//
//nolint:revive // exported for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE host for %s", device.ErrUnsupported, runtime.GOOS)
}
