package commands

import (
	"github.com/spf13/cobra"

	"mountcheck/internal/cli/output"
	"mountcheck/internal/probe"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List available probes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.PrintTable(cmd.OutOrStdout(), probeTable(probe.All()))
	},
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func probeTable(probes []probe.Probe) *output.TableData {
	table := output.NewTableData("Name", "Session", "Description")
	for _, p := range probes {
		mount := "ephemeral"
		switch {
		case p.Pending:
			mount = "pending"
		case p.Shared:
			mount = "shared"
		}
		table.AddRow(p.Name, mount, p.Description)
	}
	return table
}
