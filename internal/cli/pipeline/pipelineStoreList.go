package pipeline

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdPipelineStoreList = &cobra.Command{
	Use:     "list <pipeline_id>",
	Short:   "List all object keys for a pipeline",
	Example: `$ gofer pipeline store list simple`,
	RunE:    pipelineStoreList,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdPipelineStore.AddCommand(cmdPipelineStoreList)
}

func pipelineStoreList(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving object keys")

	resp := struct {
		Keys []models.ObjectStoreKey `json:"keys"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/objects", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list objects: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Keys) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No objects found for pipeline %s", id))
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, key := range resp.Keys {
		data = append(data, []string{
			key.Key,
			cliformat.UnixMilli(key.Created, "Unknown", cl.State.Config.Detail),
		})
	}

	table := cliformat.Table([]string{"Key", "Created"}, data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Objects for pipeline %s\n\n%s", id, table))
	cl.State.Fmt.Finish()
	return nil
}
