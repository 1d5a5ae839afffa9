package secret

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdGlobalSecretDelete = &cobra.Command{
	Use:     "delete <key>",
	Short:   "Delete a global secret",
	Example: `$ gofer secret global delete example_key`,
	RunE:    globalSecretDelete,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdGlobalSecret.AddCommand(cmdGlobalSecretDelete)
}

func globalSecretDelete(_ *cobra.Command, args []string) error {
	key := args[0]

	cl.State.Fmt.Print("Deleting global secret")

	err := cl.State.Request(http.MethodDelete, "/api/secrets/global/"+key, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete global secret: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted global secret %q", key))
	cl.State.Fmt.Finish()
	return nil
}
