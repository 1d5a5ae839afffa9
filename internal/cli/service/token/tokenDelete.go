package token

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTokenDelete = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Permanently remove a token",
	Example: `$ gofer service token delete de3foi`,
	RunE:    tokenDelete,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdToken.AddCommand(cmdTokenDelete)
}

func tokenDelete(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Deleting token")

	err := cl.State.Request(http.MethodDelete, "/api/tokens/"+id, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete token: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted token %s", id))
	cl.State.Fmt.Finish()
	return nil
}
