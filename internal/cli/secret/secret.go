package secret

import (
	"github.com/spf13/cobra"
)

var CmdSecret = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets",
	Long: `Manage secrets.

Secrets are stored encrypted and can be referenced by pipeline configurations through
interpolation. Global secrets are managed by administrators and shared across namespaces;
pipeline secrets belong to a single pipeline.`,
}

var cmdGlobalSecret = &cobra.Command{
	Use:   "global",
	Short: "Manage global secrets",
}

var cmdPipelineSecret = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage pipeline secrets",
}

func init() {
	CmdSecret.AddCommand(cmdGlobalSecret)
	CmdSecret.AddCommand(cmdPipelineSecret)
}
