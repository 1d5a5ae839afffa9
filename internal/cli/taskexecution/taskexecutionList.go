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

var cmdTaskExecutionList = &cobra.Command{
	Use:     "list <pipeline_id> <run_id>",
	Short:   "List all task executions for a run",
	Example: `$ gofer taskexecution list simple 3`,
	RunE:    taskExecutionList,
	Args:    cobra.ExactArgs(2),
}

func init() {
	CmdTaskExecution.AddCommand(cmdTaskExecutionList)
}

func taskExecutionList(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	cl.State.Fmt.Print("Retrieving task executions")

	resp := struct {
		TaskExecutions []models.TaskExecution `json:"task_executions"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d/tasks",
		cl.State.NamespaceOrDefault(), pipelineID, runID)
	err = cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list task executions: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.TaskExecutions) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No task executions found for run %d", runID))
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, execution := range resp.TaskExecutions {
		exitCode := "None"
		if execution.ExitCode != nil {
			exitCode = strconv.FormatInt(*execution.ExitCode, 10)
		}

		data = append(data, []string{
			execution.ID,
			cliformat.UnixMilli(execution.Started, "Not yet", cl.State.Config.Detail),
			cliformat.Duration(execution.Started, execution.Ended),
			exitCode,
			cliformat.ColorizeTaskExecutionState(cliformat.NormalizeEnumValue(string(execution.State), "Unknown")),
			cliformat.ColorizeTaskExecutionStatus(cliformat.NormalizeEnumValue(string(execution.Status), "Unknown")),
		})
	}

	table := cliformat.Table([]string{"ID", "Started", "Duration", "Exit Code", "State", "Status"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Task executions for run %s\n\n%s",
		color.BlueString("#"+strconv.FormatInt(runID, 10)), table))
	cl.State.Fmt.Finish()
	return nil
}
