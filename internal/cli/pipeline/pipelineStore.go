package pipeline

import (
	"github.com/spf13/cobra"
)

var cmdPipelineStore = &cobra.Command{
	Use:   "store",
	Short: "Store reusable objects at the pipeline level",
	Long: `Store reusable objects at the pipeline level.

Pipeline objects last forever but are limited in number; putting a new object once the pipeline
is at its limit evicts the oldest one.`,
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineStore)
}
