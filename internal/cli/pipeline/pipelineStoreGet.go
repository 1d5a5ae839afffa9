package pipeline

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineStoreGet = &cobra.Command{
	Use:     "get <pipeline_id> <key>",
	Short:   "Print the content of a pipeline object",
	Example: `$ gofer pipeline store get simple my_key`,
	RunE:    pipelineStoreGet,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdPipelineStore.AddCommand(cmdPipelineStoreGet)
}

func pipelineStoreGet(_ *cobra.Command, args []string) error {
	id := args[0]
	key := args[1]

	cl.State.Fmt.Print("Retrieving object")

	resp := struct {
		Content string `json:"content"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/objects/%s", cl.State.NamespaceOrDefault(), id, key)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get object: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	content, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not decode object: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.Finish()
	_, _ = os.Stdout.Write(content)
	return nil
}
