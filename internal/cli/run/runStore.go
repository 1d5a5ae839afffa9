package run

import (
	"github.com/spf13/cobra"
)

var cmdRunStore = &cobra.Command{
	Use:   "store",
	Short: "Store objects at the run level",
	Long: `Store objects at the run level.

Run objects are unlimited in number but only last a certain number of runs before being removed
wholesale.`,
}

func init() {
	CmdRun.AddCommand(cmdRunStore)
}
