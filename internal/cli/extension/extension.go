package extension

import (
	"github.com/spf13/cobra"
)

var CmdExtension = &cobra.Command{
	Use:   "extension",
	Short: "Manage installed extensions",
	Long: `Manage installed extensions.

Extensions are long running containers that add new functionality to the server, like
scheduling runs on a cron or watching for external events. These commands manage the
server-wide installations; use "gofer pipeline extension" to subscribe individual
pipelines to an installed extension.`,
}
