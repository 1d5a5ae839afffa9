package taskexecution

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var cmdTaskExecutionAttach = &cobra.Command{
	Use:   "attach <pipeline_id> <run_id> <id>",
	Short: "Attach a shell to a running task execution",
	Long: `Attach a shell to a running task execution.

Opens an interactive session inside the task execution's container. Useful for debugging
in flight tasks. The session ends when the container finishes or the connection is closed.`,
	Example: `$ gofer taskexecution attach simple 3 build`,
	RunE:    taskExecutionAttach,
	Args:    cobra.ExactArgs(3),
}

func init() {
	cmdTaskExecutionAttach.Flags().String("command", "", "command to run inside the container instead of /bin/sh")
	CmdTaskExecution.AddCommand(cmdTaskExecutionAttach)
}

func taskExecutionAttach(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	id := args[2]

	command, _ := cmd.Flags().GetString("command")

	cl.State.Fmt.Print("Attaching to container")

	path := fmt.Sprintf("/api/pipelines/%s/runs/%d/tasks/%s/attach?namespace_id=%s",
		pipelineID, runID, id, cl.State.NamespaceOrDefault())
	if command != "" {
		path += "&command=" + url.QueryEscape(command)
	}

	conn, err := cl.State.Websocket(path)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not attach to container: %v", err))
		cl.State.Fmt.Finish()
		return err
	}
	defer conn.Close()

	cl.State.Fmt.Println("Attached; type commands below. Ctrl-C to exit.")
	cl.State.Fmt.Finish()

	done := make(chan error, 1)

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					done <- nil
					return
				}

				done <- fmt.Errorf("lost connection to container: %w", err)
				return
			}

			fmt.Print(string(message))
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			err := conn.WriteMessage(websocket.TextMessage, []byte(line))
			if err != nil {
				done <- fmt.Errorf("lost connection to container: %w", err)
				return
			}
		}

		done <- nil
	}()

	return <-done
}
