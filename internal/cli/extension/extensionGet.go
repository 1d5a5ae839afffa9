package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdExtensionGet = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get details on a specific extension",
	Example: `$ gofer extension get cron`,
	RunE:    extensionGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdExtension.AddCommand(cmdExtensionGet)
}

func extensionGet(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving extension")

	resp := struct {
		Extension models.Extension `json:"extension"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/extensions/"+id, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	extension := resp.Extension

	documentation := extension.Documentation
	if documentation == "" {
		documentation = "No documentation found"
	}

	cl.State.Fmt.Println(fmt.Sprintf("  Extension %s\n\n  Image: %s\n  Started %s\n  State: %s | Status: %s\n  URL: %s\n\n  Documentation:\n\n%s",
		color.BlueString(extension.Registration.ID),
		extension.Registration.Image,
		cliformat.UnixMilli(extension.Started, "Not yet", cl.State.Config.Detail),
		cliformat.ColorizeExtensionState(cliformat.NormalizeEnumValue(string(extension.State), "Unknown")),
		cliformat.NormalizeEnumValue(string(extension.Registration.Status), "Unknown"),
		extension.URL,
		documentation))
	cl.State.Fmt.Finish()
	return nil
}
