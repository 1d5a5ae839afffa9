package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdExtensionUninstall = &cobra.Command{
	Use:     "uninstall <id>",
	Short:   "Uninstall an extension",
	Example: `$ gofer extension uninstall cron`,
	RunE:    extensionUninstall,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdExtension.AddCommand(cmdExtensionUninstall)
}

func extensionUninstall(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Uninstalling extension")

	err := cl.State.Request(http.MethodDelete, "/api/extensions/"+id, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not uninstall extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Uninstalled extension %s", id))
	cl.State.Fmt.Finish()
	return nil
}
