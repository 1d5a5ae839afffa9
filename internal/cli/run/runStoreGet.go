package run

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdRunStoreGet = &cobra.Command{
	Use:     "get <pipeline_id> <run_id> <key>",
	Short:   "Print the content of a run object",
	Example: `$ gofer run store get simple 3 my_key`,
	RunE:    runStoreGet,
	Args:    cobra.ExactArgs(3),
}

func init() {
	cmdRunStore.AddCommand(cmdRunStoreGet)
}

func runStoreGet(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	key := args[2]

	cl.State.Fmt.Print("Retrieving object")

	resp := struct {
		Content string `json:"content"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d/objects/%s",
		cl.State.NamespaceOrDefault(), pipelineID, runID, key)
	err = cl.State.Request(http.MethodGet, path, nil, &resp)
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
