package token

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTokenEnable = &cobra.Command{
	Use:     "enable <id>",
	Short:   "Re-enable a disabled token",
	Example: `$ gofer service token enable de3foi`,
	RunE:    tokenEnable,
	Args:    cobra.ExactArgs(1),
}

var cmdTokenDisable = &cobra.Command{
	Use:     "disable <id>",
	Short:   "Disable a token without deleting it",
	Example: `$ gofer service token disable de3foi`,
	RunE:    tokenDisable,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdToken.AddCommand(cmdTokenEnable)
	CmdToken.AddCommand(cmdTokenDisable)
}

func tokenEnable(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Enabling token")

	err := cl.State.Request(http.MethodPut, fmt.Sprintf("/api/tokens/%s/enable", id), nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not enable token: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Enabled token %s", id))
	cl.State.Fmt.Finish()
	return nil
}

func tokenDisable(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Disabling token")

	err := cl.State.Request(http.MethodPut, fmt.Sprintf("/api/tokens/%s/disable", id), nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not disable token: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Disabled token %s", id))
	cl.State.Fmt.Finish()
	return nil
}
