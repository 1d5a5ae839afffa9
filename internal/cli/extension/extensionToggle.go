package extension

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdExtensionEnable = &cobra.Command{
	Use:     "enable <id>",
	Short:   "Re-enable a disabled extension",
	Example: `$ gofer extension enable cron`,
	RunE:    extensionEnable,
	Args:    cobra.ExactArgs(1),
}

var cmdExtensionDisable = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an extension",
	Long: `Disable an extension.

Disabled extensions keep their pipeline subscriptions but stop launching new runs until
they are enabled again.`,
	Example: `$ gofer extension disable cron`,
	RunE:    extensionDisable,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdExtension.AddCommand(cmdExtensionEnable)
	CmdExtension.AddCommand(cmdExtensionDisable)
}

func extensionEnable(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Enabling extension")

	err := cl.State.Request(http.MethodPut, fmt.Sprintf("/api/extensions/%s/enable", id), nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not enable extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Enabled extension %s", id))
	cl.State.Fmt.Finish()
	return nil
}

func extensionDisable(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Disabling extension")

	err := cl.State.Request(http.MethodPut, fmt.Sprintf("/api/extensions/%s/disable", id), nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not disable extension: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Disabled extension %s", id))
	cl.State.Fmt.Finish()
	return nil
}
