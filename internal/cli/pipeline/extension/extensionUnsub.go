package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdExtensionUnsub = &cobra.Command{
	Use:     "unsubscribe <pipeline_id> <extension_id> <label>",
	Short:   "Remove a pipeline's subscription to an extension",
	Example: `$ gofer pipeline extension unsubscribe simple cron every_morning`,
	RunE:    extensionUnsub,
	Args:    cobra.ExactArgs(3),
}

func init() {
	CmdExtension.AddCommand(cmdExtensionUnsub)
}

func extensionUnsub(_ *cobra.Command, args []string) error {
	pipelineID := args[0]
	extensionID := args[1]
	label := args[2]

	cl.State.Fmt.Print("Unsubscribing pipeline from extension")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/subscriptions/%s/%s",
		cl.State.NamespaceOrDefault(), pipelineID, extensionID, label)
	err := cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not unsubscribe from extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Unsubscribed pipeline %s from extension %s (%s)",
		pipelineID, extensionID, label))
	cl.State.Fmt.Finish()
	return nil
}
