package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blams",
	Short: "Apple Media Service client for Bluetooth Low Energy",
	Long: `Apple Media Service (AMS) client that connects to an iOS media source over BLE:

- Discover the AMS service and subscribe to media updates
- Watch now-playing track and playback state
- Send remote commands (play, pause, next track, volume, ...)
- Decode captured AMS notification payloads offline

The peripheral must already be paired and bonded with this host.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(uuidsCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/blams/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug-notifications", false, "Print AMS discovery progress messages to stderr")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.SetVersionTemplate(fmt.Sprintf("blams {{.Version}} (commit %s, built %s)\n", commit, date))
}
