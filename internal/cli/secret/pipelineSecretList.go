package secret

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdPipelineSecretList = &cobra.Command{
	Use:     "list <pipeline_id>",
	Short:   "List all secrets for a pipeline",
	Example: `$ gofer secret pipeline list simple`,
	RunE:    pipelineSecretList,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdPipelineSecret.AddCommand(cmdPipelineSecretList)
}

func pipelineSecretList(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	cl.State.Fmt.Print("Retrieving pipeline secrets")

	resp := struct {
		Keys []models.SecretStoreKey `json:"keys"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/secrets", cl.State.NamespaceOrDefault(), pipelineID)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list pipeline secrets: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Keys) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No secrets found for pipeline %s", pipelineID))
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

	cl.State.Fmt.Println(fmt.Sprintf("  Secrets for pipeline %s\n\n%s", color.BlueString(pipelineID), table))
	cl.State.Fmt.Finish()
	return nil
}
