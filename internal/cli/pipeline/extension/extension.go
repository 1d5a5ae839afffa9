package extension

import (
	"github.com/spf13/cobra"
)

var CmdExtension = &cobra.Command{
	Use:   "extension",
	Short: "Manage a pipeline's extension subscriptions",
	Long: `Manage a pipeline's extension subscriptions.

Pipelines subscribe to extensions so the extension can start runs on their behalf; a cron
extension for example starts runs on a schedule.`,
}
