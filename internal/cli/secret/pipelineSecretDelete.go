package secret

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineSecretDelete = &cobra.Command{
	Use:     "delete <pipeline_id> <key>",
	Short:   "Delete a pipeline secret",
	Example: `$ gofer secret pipeline delete simple example_key`,
	RunE:    pipelineSecretDelete,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdPipelineSecret.AddCommand(cmdPipelineSecretDelete)
}

func pipelineSecretDelete(_ *cobra.Command, args []string) error {
	pipelineID := args[0]
	key := args[1]

	cl.State.Fmt.Print("Deleting pipeline secret")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/secrets/%s",
		cl.State.NamespaceOrDefault(), pipelineID, key)
	err := cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete pipeline secret: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted pipeline secret %q", key))
	cl.State.Fmt.Finish()
	return nil
}
