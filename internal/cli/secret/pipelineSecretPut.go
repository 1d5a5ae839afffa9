package secret

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineSecretPut = &cobra.Command{
	Use:     "put <pipeline_id> <key> <content>",
	Short:   "Store a new pipeline secret",
	Example: `$ gofer secret pipeline put simple example_key example_value`,
	RunE:    pipelineSecretPut,
	Args:    cobra.ExactArgs(3),
}

func init() {
	cmdPipelineSecretPut.Flags().BoolP("force", "f", false, "overwrite the secret if the key already exists")
	cmdPipelineSecret.AddCommand(cmdPipelineSecretPut)
}

func pipelineSecretPut(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]
	key := args[1]
	content := args[2]

	force, _ := cmd.Flags().GetBool("force")

	cl.State.Fmt.Print("Storing pipeline secret")

	body := struct {
		Key     string `json:"key"`
		Content string `json:"content"`
		Force   bool   `json:"force,omitempty"`
	}{
		Key:     key,
		Content: content,
		Force:   force,
	}

	resp := struct {
		Key string `json:"key"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/secrets", cl.State.NamespaceOrDefault(), pipelineID)
	err := cl.State.Request(http.MethodPost, path, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not store pipeline secret: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Stored pipeline secret %q", resp.Key))
	cl.State.Fmt.Finish()
	return nil
}
