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

var cmdRunStorePut = &cobra.Command{
	Use:     "put <pipeline_id> <run_id> <key> <path>",
	Short:   "Store a file as a run object",
	Example: `$ gofer run store put simple 3 my_key ./results.json`,
	RunE:    runStorePut,
	Args:    cobra.ExactArgs(4),
}

func init() {
	cmdRunStorePut.Flags().BoolP("force", "f", false, "overwrite the object if the key already exists")
	cmdRunStore.AddCommand(cmdRunStorePut)
}

func runStorePut(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	key := args[2]
	filePath := args[3]

	force, _ := cmd.Flags().GetBool("force")

	cl.State.Fmt.Print("Storing object")

	content, err := os.ReadFile(filePath)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not read file: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	body := struct {
		Key     string `json:"key"`
		Content string `json:"content"`
		Force   bool   `json:"force,omitempty"`
	}{
		Key:     key,
		Content: base64.StdEncoding.EncodeToString(content),
		Force:   force,
	}

	resp := struct {
		Bytes int64 `json:"bytes"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d/objects",
		cl.State.NamespaceOrDefault(), pipelineID, runID)
	err = cl.State.Request(http.MethodPost, path, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not store object: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Stored object %q (%d bytes)", key, resp.Bytes))
	cl.State.Fmt.Finish()
	return nil
}
