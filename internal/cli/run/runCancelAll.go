package run

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdRunCancelAll = &cobra.Command{
	Use:     "cancel-all <pipeline_id>",
	Short:   "Cancel all in progress runs for a pipeline",
	Example: `$ gofer run cancel-all simple`,
	RunE:    runCancelAll,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdRunCancelAll.Flags().BoolP("force", "f", false, "kill containers immediately")
	CmdRun.AddCommand(cmdRunCancelAll)
}

func runCancelAll(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	force, _ := cmd.Flags().GetBool("force")

	cl.State.Fmt.Print("Cancelling all runs")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs?force=%t",
		cl.State.NamespaceOrDefault(), pipelineID, force)
	err := cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not cancel runs: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Cancelled all in progress runs for pipeline %s", pipelineID))
	cl.State.Fmt.Finish()
	return nil
}
