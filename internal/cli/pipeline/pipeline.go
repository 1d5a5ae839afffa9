package pipeline

import (
	"github.com/clintjedwards/gofer/internal/cli/pipeline/config"
	"github.com/clintjedwards/gofer/internal/cli/pipeline/extension"
	"github.com/spf13/cobra"
)

var CmdPipeline = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage pipelines",
	Long: `Manage pipelines.

A pipeline is a graph of containers that accomplish some goal. Pipelines are registered as config
versions and only activated by deploying a version.`,
}

func init() {
	CmdPipeline.AddCommand(config.CmdConfig)
	CmdPipeline.AddCommand(extension.CmdExtension)
}
