package config

import (
	"github.com/spf13/cobra"
)

var CmdConfig = &cobra.Command{
	Use:   "config",
	Short: "Manage pipeline config versions",
	Long: `Manage pipeline config versions.

Every registration of a pipeline creates a new config version. Only a handful of old versions are
kept around; the rest get pruned automatically.`,
}
