package secret

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdPipelineSecretGet = &cobra.Command{
	Use:     "get <pipeline_id> <key>",
	Short:   "Get details on a specific pipeline secret",
	Example: `$ gofer secret pipeline get simple example_key --include-secret`,
	RunE:    pipelineSecretGet,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdPipelineSecretGet.Flags().Bool("include-secret", false, "print the plaintext secret value")
	cmdPipelineSecret.AddCommand(cmdPipelineSecretGet)
}

func pipelineSecretGet(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]
	key := args[1]

	includeSecret, _ := cmd.Flags().GetBool("include-secret")

	cl.State.Fmt.Print("Retrieving pipeline secret")

	resp := struct {
		Key    string `json:"key"`
		Secret string `json:"secret,omitempty"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/secrets/%s?include_secret=%t",
		cl.State.NamespaceOrDefault(), pipelineID, key, includeSecret)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get pipeline secret: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	secret := ""
	if includeSecret {
		secret = fmt.Sprintf("\n  Secret: %s", color.YellowString(resp.Secret))
	}

	cl.State.Fmt.Println(fmt.Sprintf("  Pipeline secret %s (pipeline %s)%s",
		color.BlueString(resp.Key), pipelineID, secret))
	cl.State.Fmt.Finish()
	return nil
}
