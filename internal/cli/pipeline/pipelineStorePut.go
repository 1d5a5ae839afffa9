package pipeline

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineStorePut = &cobra.Command{
	Use:   "put <pipeline_id> <key> <path>",
	Short: "Store a file as a pipeline object",
	Long: `Store a file as a pipeline object.

If the pipeline is over its object limit the oldest object is evicted to make room.`,
	Example: `$ gofer pipeline store put simple my_key ./artifact.tar.gz
$ gofer pipeline store put simple my_key ./artifact.tar.gz --force`,
	RunE: pipelineStorePut,
	Args: cobra.ExactArgs(3),
}

func init() {
	cmdPipelineStorePut.Flags().BoolP("force", "f", false, "overwrite the object if the key already exists")
	cmdPipelineStore.AddCommand(cmdPipelineStorePut)
}

func pipelineStorePut(cmd *cobra.Command, args []string) error {
	id := args[0]
	key := args[1]
	filePath := args[2]

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
		Bytes      int64  `json:"bytes"`
		EvictedKey string `json:"evicted_key"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/objects", cl.State.NamespaceOrDefault(), id)
	err = cl.State.Request(http.MethodPost, path, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not store object: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if resp.EvictedKey != "" {
		cl.State.Fmt.Println(fmt.Sprintf("Evicted oldest object %q to make room", resp.EvictedKey))
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Stored object %q (%d bytes)", key, resp.Bytes))
	cl.State.Fmt.Finish()
	return nil
}
