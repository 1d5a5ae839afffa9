package taskexecution

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTaskExecutionCancel = &cobra.Command{
	Use:     "cancel <pipeline_id> <run_id> <id>",
	Short:   "Cancel a task execution in progress",
	Example: `$ gofer taskexecution cancel simple 3 build`,
	RunE:    taskExecutionCancel,
	Args:    cobra.ExactArgs(3),
}

func init() {
	cmdTaskExecutionCancel.Flags().BoolP("force", "f", false, "kill the container immediately")
	CmdTaskExecution.AddCommand(cmdTaskExecutionCancel)
}

func taskExecutionCancel(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	id := args[2]

	force, _ := cmd.Flags().GetBool("force")

	cl.State.Fmt.Print("Cancelling task execution")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d/tasks/%s?force=%t",
		cl.State.NamespaceOrDefault(), pipelineID, runID, id, force)
	err = cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not cancel task execution: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Cancelled task execution %s", id))
	cl.State.Fmt.Finish()
	return nil
}
