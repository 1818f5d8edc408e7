package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srg/blams/internal/ams"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <hex-payload>...",
	Short: "Decode captured AMS notification payloads",
	Long: `Applies captured notification payloads, in order, to an empty media state
and prints the result. Payloads are hex; spaces, colons and a 0x prefix are
accepted.

Examples:
  # Track title "Song"
  blams decode 0202536f6e67

  # Playback info "1,1.0,12.5" then artist "Band"
  blams decode 0001312c312e302c31322e35 020042616e64

  # Supported commands list from the remote command characteristic
  blams decode --source remote-command 00010203`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

var (
	decodeSource  string
	decodeJSON    bool
	decodeVerbose bool
)

func init() {
	decodeCmd.Flags().StringVar(&decodeSource, "source", "entity-update", "Characteristic the payloads came from: entity-update or remote-command")
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Output as JSON")
	decodeCmd.Flags().BoolVar(&decodeVerbose, "verbose", false, "Report payloads that did not change the media state")
}

// Offline handle layout used to route payloads through the decoder.
const (
	offlineRemoteCommandHandle uint16 = 0x0001
	offlineEntityUpdateHandle  uint16 = 0x0002
)

func offlineHandles() ams.HandleTable {
	return ams.HandleTable{
		RemoteCommand: ams.CharacteristicEntry{ValueHandle: offlineRemoteCommandHandle, Discovered: true},
		EntityUpdate:  ams.CharacteristicEntry{ValueHandle: offlineEntityUpdateHandle, Discovered: true},
	}
}

func parseSource(source string) (uint16, error) {
	switch strings.ToLower(source) {
	case "entity-update", "entity", "eu":
		return offlineEntityUpdateHandle, nil
	case "remote-command", "remote", "rc":
		return offlineRemoteCommandHandle, nil
	default:
		return 0, fmt.Errorf("invalid source %q: use entity-update or remote-command", source)
	}
}

// parseHexPayload decodes hex text, tolerating separators and a 0x prefix.
func parseHexPayload(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(strings.TrimSpace(s))
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload %q: %w", s, err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	handle, err := parseSource(decodeSource)
	if err != nil {
		return err
	}

	payloads := make([][]byte, 0, len(args))
	for _, a := range args {
		p, err := parseHexPayload(a)
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}

	cmd.SilenceUsage = true

	handles := offlineHandles()
	decoder := ams.NewDecoder(nil)
	for i, p := range payloads {
		if !decoder.Decode(handles, handle, p) && decodeVerbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "payload %d (%s) ignored\n", i+1, hex.EncodeToString(p))
		}
	}

	return newMediaPrinter(cmd.OutOrStdout(), decodeJSON).State(decoder.Snapshot())
}
