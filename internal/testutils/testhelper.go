package testutils

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // track discovery flow in failing tests
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// MustHex decodes a hex string, ignoring spaces and colons.
func MustHex(s string) []byte {
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// PlayerPayload builds a player playback info notification.
func PlayerPayload(text string) []byte {
	return append([]byte{0x00, 0x01}, text...)
}

// TrackPayload builds a track attribute notification.
func TrackPayload(attr byte, text string) []byte {
	return append([]byte{0x02, attr}, text...)
}
