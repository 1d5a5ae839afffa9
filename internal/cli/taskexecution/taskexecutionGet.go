package taskexecution

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdTaskExecutionGet = &cobra.Command{
	Use:     "get <pipeline_id> <run_id> <id>",
	Short:   "Get details on a specific task execution",
	Example: `$ gofer taskexecution get simple 3 build`,
	RunE:    taskExecutionGet,
	Args:    cobra.ExactArgs(3),
}

func init() {
	CmdTaskExecution.AddCommand(cmdTaskExecutionGet)
}

func taskExecutionGet(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	id := args[2]

	cl.State.Fmt.Print("Retrieving task execution")

	resp := struct {
		TaskExecution models.TaskExecution `json:"task_execution"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d/tasks/%s",
		cl.State.NamespaceOrDefault(), pipelineID, runID, id)
	err = cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get task execution: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	execution := resp.TaskExecution

	exitCode := "None"
	if execution.ExitCode != nil {
		exitCode = strconv.FormatInt(*execution.ExitCode, 10)
	}

	statusReason := ""
	if execution.StatusReason != nil {
		statusReason = fmt.Sprintf("\n  Reason: %s", execution.StatusReason.Description)
	}

	cl.State.Fmt.Println(fmt.Sprintf("  Task execution %s (run #%d, pipeline %s)\n\n  Image: %s\n  Started %s and ran for %s\n  Exit code: %s\n  State: %s | Status: %s%s",
		color.BlueString(execution.ID),
		runID,
		pipelineID,
		execution.Task.Image,
		cliformat.UnixMilli(execution.Started, "Not yet", cl.State.Config.Detail),
		cliformat.Duration(execution.Started, execution.Ended),
		exitCode,
		cliformat.ColorizeTaskExecutionState(cliformat.NormalizeEnumValue(string(execution.State), "Unknown")),
		cliformat.ColorizeTaskExecutionStatus(cliformat.NormalizeEnumValue(string(execution.Status), "Unknown")),
		statusReason))
	cl.State.Fmt.Finish()
	return nil
}
