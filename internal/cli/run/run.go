package run

import (
	"github.com/spf13/cobra"
)

var CmdRun = &cobra.Command{
	Use:   "run",
	Short: "Manage pipeline runs",
	Long: `Manage pipeline runs.

A run is a single instance of a pipeline's execution.`,
}
