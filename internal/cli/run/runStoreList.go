package run

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdRunStoreList = &cobra.Command{
	Use:     "list <pipeline_id> <run_id>",
	Short:   "List all object keys for a run",
	Example: `$ gofer run store list simple 3`,
	RunE:    runStoreList,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdRunStore.AddCommand(cmdRunStoreList)
}

func runStoreList(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	cl.State.Fmt.Print("Retrieving object keys")

	resp := struct {
		Keys []models.ObjectStoreKey `json:"keys"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d/objects",
		cl.State.NamespaceOrDefault(), pipelineID, runID)
	err = cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list objects: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Keys) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No objects found for run %d", runID))
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

	cl.State.Fmt.Println(fmt.Sprintf("  Objects for run %d\n\n%s", runID, table))
	cl.State.Fmt.Finish()
	return nil
}
