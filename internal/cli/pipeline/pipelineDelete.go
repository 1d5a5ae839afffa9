package pipeline

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineDelete = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently remove a pipeline",
	Long: `Permanently remove a pipeline.

Removes the pipeline along with its config versions, runs and task executions. This cannot
be undone.`,
	Example: `$ gofer pipeline delete simple`,
	RunE:    pipelineDelete,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineDelete)
}

func pipelineDelete(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Deleting pipeline")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete pipeline: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted pipeline %s", id))
	cl.State.Fmt.Finish()
	return nil
}
