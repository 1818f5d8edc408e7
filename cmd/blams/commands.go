package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/blams/internal/ams"
)

// commandsCmd represents the commands command
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List AMS remote commands",
	Args:  cobra.NoArgs,
	RunE:  runCommands,
}

var commandsJSON bool

func init() {
	commandsCmd.Flags().BoolVar(&commandsJSON, "json", false, "Output as JSON")
}

type commandJSON struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
}

func runCommands(cmd *cobra.Command, _ []string) error {
	cmds := ams.RemoteCommands()

	if commandsJSON {
		out := make([]commandJSON, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, commandJSON{ID: uint8(c), Name: c.String()})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, c := range cmds {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", uint8(c), c)
	}
	return nil
}
