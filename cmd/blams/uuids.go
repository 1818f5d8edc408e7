package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/blams/internal/ams"
)

// uuidsCmd represents the uuids command
var uuidsCmd = &cobra.Command{
	Use:   "uuids",
	Short: "Print the Apple Media Service UUIDs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows := []struct {
			name string
			uuid fmt.Stringer
		}{
			{"Service", ams.ServiceUUID},
			{ams.CharacteristicName(ams.RemoteCommandUUID), ams.RemoteCommandUUID},
			{ams.CharacteristicName(ams.EntityUpdateUUID), ams.EntityUpdateUUID},
			{ams.CharacteristicName(ams.EntityAttributeUUID), ams.EntityAttributeUUID},
			{"CCCD", ams.CCCDUUID},
		}
		for _, r := range rows {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelColor(fmt.Sprintf("%-16s", r.name)), r.uuid)
		}
		return nil
	},
}
