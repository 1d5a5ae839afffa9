package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdExtensionList = &cobra.Command{
	Use:     "list <pipeline_id>",
	Short:   "List a pipeline's extension subscriptions",
	Example: `$ gofer pipeline extension list simple`,
	RunE:    extensionList,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdExtension.AddCommand(cmdExtensionList)
}

func extensionList(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	cl.State.Fmt.Print("Retrieving extension subscriptions")

	resp := struct {
		Subscriptions []models.PipelineExtensionSubscription `json:"subscriptions"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/subscriptions", cl.State.NamespaceOrDefault(), pipelineID)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list extension subscriptions: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Subscriptions) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No extension subscriptions found for pipeline %s", pipelineID))
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, subscription := range resp.Subscriptions {
		data = append(data, []string{
			subscription.ExtensionID,
			subscription.Label,
			cliformat.NormalizeEnumValue(string(subscription.Status), "Unknown"),
		})
	}

	table := cliformat.Table([]string{"Extension", "Label", "Status"}, data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Extension subscriptions for pipeline %s\n\n%s", pipelineID, table))
	cl.State.Fmt.Finish()
	return nil
}
