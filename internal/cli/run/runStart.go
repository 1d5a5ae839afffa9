package run

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdRunStart = &cobra.Command{
	Use:   "start <pipeline_id>",
	Short: "Start a new run of a pipeline",
	Long: `Start a new run of a pipeline.

Launches the pipeline's live config version. Variables passed here are injected into every task
execution of the run.`,
	Example: `$ gofer run start simple
$ gofer run start simple -v foo=bar -v baz=qux`,
	RunE: runStart,
	Args: cobra.ExactArgs(1),
}

func init() {
	cmdRunStart.Flags().StringToStringP("variable", "v", nil, "variables to inject into every task execution")
	CmdRun.AddCommand(cmdRunStart)
}

func runStart(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	variables, _ := cmd.Flags().GetStringToString("variable")

	cl.State.Fmt.Print("Starting run")

	body := struct {
		Variables map[string]string `json:"variables,omitempty"`
	}{
		Variables: variables,
	}

	resp := struct {
		Run models.Run `json:"run"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs", cl.State.NamespaceOrDefault(), pipelineID)
	err := cl.State.Request(http.MethodPost, path, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not start run: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Started run %d for pipeline %s", resp.Run.RunID, pipelineID))
	cl.State.Fmt.Println(fmt.Sprintf("\n  View details with: gofer run get %s %d", pipelineID, resp.Run.RunID))
	cl.State.Fmt.Finish()
	return nil
}
