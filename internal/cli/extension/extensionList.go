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
	Use:     "list",
	Short:   "List all installed extensions",
	Example: `$ gofer extension list`,
	RunE:    extensionList,
}

func init() {
	CmdExtension.AddCommand(cmdExtensionList)
}

func extensionList(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Retrieving extensions")

	resp := struct {
		Extensions []models.Extension `json:"extensions"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/extensions", nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list extensions: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Extensions) == 0 {
		cl.State.Fmt.Println("No extensions installed")
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, extension := range resp.Extensions {
		data = append(data, []string{
			extension.Registration.ID,
			extension.Registration.Image,
			cliformat.UnixMilli(extension.Started, "Not yet", cl.State.Config.Detail),
			cliformat.ColorizeExtensionState(cliformat.NormalizeEnumValue(string(extension.State), "Unknown")),
			cliformat.NormalizeEnumValue(string(extension.Registration.Status), "Unknown"),
		})
	}

	table := cliformat.Table([]string{"ID", "Image", "Started", "State", "Status"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(table)
	cl.State.Fmt.Finish()
	return nil
}
