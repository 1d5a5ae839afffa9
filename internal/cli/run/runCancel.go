package run

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdRunCancel = &cobra.Command{
	Use:   "cancel <pipeline_id> <run_id>",
	Short: "Cancel a run in progress",
	Long: `Cancel a run in progress.

Stops all task executions belonging to the run. Containers get a grace period before being force
killed; pass --force to skip the grace period.`,
	Example: `$ gofer run cancel simple 3
$ gofer run cancel simple 3 --force`,
	RunE: runCancel,
	Args: cobra.ExactArgs(2),
}

func init() {
	cmdRunCancel.Flags().BoolP("force", "f", false, "kill containers immediately")
	CmdRun.AddCommand(cmdRunCancel)
}

func runCancel(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	force, _ := cmd.Flags().GetBool("force")

	cl.State.Fmt.Print("Cancelling run")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d?force=%t",
		cl.State.NamespaceOrDefault(), pipelineID, runID, force)
	err = cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not cancel run: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Cancelled run %d for pipeline %s", runID, pipelineID))
	cl.State.Fmt.Finish()
	return nil
}
