package taskexecution

import (
	"fmt"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var cmdTaskExecutionLogs = &cobra.Command{
	Use:   "logs <pipeline_id> <run_id> <id>",
	Short: "Examine logs for a particular task execution",
	Long: `Examine logs for a particular task execution.

Logs are streamed as they are produced, so running this against an in-progress task execution
follows the container output until the container finishes.`,
	Example: `$ gofer taskexecution logs simple 3 build`,
	RunE:    taskExecutionLogs,
	Args:    cobra.ExactArgs(3),
}

func init() {
	CmdTaskExecution.AddCommand(cmdTaskExecutionLogs)
}

func taskExecutionLogs(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	id := args[2]

	cl.State.Fmt.Print("Retrieving logs")

	path := fmt.Sprintf("/api/pipelines/%s/runs/%d/tasks/%s/logs?namespace_id=%s",
		pipelineID, runID, id, cl.State.NamespaceOrDefault())
	conn, err := cl.State.Websocket(path)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not retrieve logs: %v", err))
		cl.State.Fmt.Finish()
		return err
	}
	defer conn.Close()

	cl.State.Fmt.Finish()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}

			return fmt.Errorf("lost connection to log stream: %w", err)
		}

		fmt.Println(string(message))
	}
}
