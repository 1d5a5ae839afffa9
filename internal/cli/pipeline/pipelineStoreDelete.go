package pipeline

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineStoreDelete = &cobra.Command{
	Use:     "delete <pipeline_id> <key>",
	Short:   "Remove a pipeline object",
	Example: `$ gofer pipeline store delete simple my_key`,
	RunE:    pipelineStoreDelete,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdPipelineStore.AddCommand(cmdPipelineStoreDelete)
}

func pipelineStoreDelete(_ *cobra.Command, args []string) error {
	id := args[0]
	key := args[1]

	cl.State.Fmt.Print("Deleting object")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/objects/%s", cl.State.NamespaceOrDefault(), id, key)
	err := cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete object: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted object %q", key))
	cl.State.Fmt.Finish()
	return nil
}
