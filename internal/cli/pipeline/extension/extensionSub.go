package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdExtensionSub = &cobra.Command{
	Use:   "subscribe <pipeline_id> <extension_id> <label>",
	Short: "Subscribe a pipeline to an extension",
	Long: `Subscribe a pipeline to an extension.

The label differentiates multiple subscriptions to the same extension. Settings are extension
specific; consult the extension's documentation for which ones it accepts.`,
	Example: `$ gofer pipeline extension subscribe simple cron every_morning -s expression="0 7 * * *"`,
	RunE:    extensionSub,
	Args:    cobra.ExactArgs(3),
}

func init() {
	cmdExtensionSub.Flags().StringToStringP("setting", "s", nil, "extension specific subscription settings")
	CmdExtension.AddCommand(cmdExtensionSub)
}

func extensionSub(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]
	extensionID := args[1]
	label := args[2]

	settings, _ := cmd.Flags().GetStringToString("setting")

	cl.State.Fmt.Print("Subscribing pipeline to extension")

	body := struct {
		ExtensionID string            `json:"extension_id"`
		Label       string            `json:"label"`
		Settings    map[string]string `json:"settings,omitempty"`
	}{
		ExtensionID: extensionID,
		Label:       label,
		Settings:    settings,
	}

	resp := struct {
		Subscription models.PipelineExtensionSubscription `json:"subscription"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/subscriptions", cl.State.NamespaceOrDefault(), pipelineID)
	err := cl.State.Request(http.MethodPost, path, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not subscribe to extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Subscribed pipeline %s to extension %s (%s)",
		pipelineID, extensionID, resp.Subscription.Label))
	cl.State.Fmt.Finish()
	return nil
}
