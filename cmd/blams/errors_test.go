package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/device"
	"github.com/srg/blams/internal/host/goble"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "bluetooth off",
			err:  fmt.Errorf("failed to connect: %w", device.ErrBluetoothOff),
			want: "Bluetooth is turned off; enable it and try again",
		},
		{
			name: "AMS service missing",
			err:  &device.NotFoundError{Resource: "service", UUIDs: []string{ams.ServiceUUID.String()}},
			want: "device does not expose the Apple Media Service (is it an iOS device paired with this host?)",
		},
		{
			name: "other service missing",
			err:  &device.NotFoundError{Resource: "service", UUIDs: []string{"180d"}},
			want: `service "180d" not found`,
		},
		{
			name: "command unavailable",
			err:  fmt.Errorf("failed to send play: %w", goble.ErrCommandUnavailable),
			want: "device does not accept remote commands",
		},
		{
			name: "connection lost",
			err:  ErrConnectionLost,
			want: "connection to the device was lost",
		},
		{
			name: "timeout",
			err:  fmt.Errorf("AMS discovery: %w", device.ErrTimeout),
			want: "timed out: AMS discovery: timeout",
		},
		{
			name: "not connected",
			err:  device.ErrNotConnected,
			want: "device is not connected: not_connected",
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}
