package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdExtensionInstall = &cobra.Command{
	Use:   "install <id> <image>",
	Short: "Install a new extension",
	Long: `Install a new extension.

The server launches the given image as a long running container and registers it under
the given id. Extension specific configuration is passed with repeated --variable flags;
consult the extension's documentation for which variables it requires.`,
	Example: `$ gofer extension install cron ghcr.io/clintjedwards/gofer/extensions/cron:latest`,
	RunE:    extensionInstall,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdExtensionInstall.Flags().StringToStringP("variable", "v", nil, "extension config variables; repeatable")
	cmdExtensionInstall.Flags().String("registry-user", "", "user for the image's container registry")
	cmdExtensionInstall.Flags().String("registry-pass", "", "password for the image's container registry")
	CmdExtension.AddCommand(cmdExtensionInstall)
}

func extensionInstall(cmd *cobra.Command, args []string) error {
	id := args[0]
	image := args[1]

	variables, _ := cmd.Flags().GetStringToString("variable")
	registryUser, _ := cmd.Flags().GetString("registry-user")
	registryPass, _ := cmd.Flags().GetString("registry-pass")

	var registryAuth *models.RegistryAuth
	if registryUser != "" {
		registryAuth = &models.RegistryAuth{
			User: registryUser,
			Pass: registryPass,
		}
	}

	cl.State.Fmt.Print("Installing extension")

	body := struct {
		ID           string               `json:"id"`
		Image        string               `json:"image"`
		RegistryAuth *models.RegistryAuth `json:"registry_auth,omitempty"`
		Variables    map[string]string    `json:"variables,omitempty"`
	}{
		ID:           id,
		Image:        image,
		RegistryAuth: registryAuth,
		Variables:    variables,
	}

	resp := struct {
		ExtensionID string `json:"extension_id"`
	}{}

	err := cl.State.Request(http.MethodPost, "/api/extensions", &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not install extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Installed extension %s", resp.ExtensionID))
	cl.State.Fmt.Finish()
	return nil
}
