package namespace

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdNamespaceDelete = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a namespace",
	Long: `Delete a namespace.

Namespaces are soft-deleted; their pipelines stop being accessible but the underlying records stick
around for bookkeeping.`,
	Example: `$ gofer namespace delete old_namespace`,
	RunE:    namespaceDelete,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdNamespace.AddCommand(cmdNamespaceDelete)
}

func namespaceDelete(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Deleting namespace")

	err := cl.State.Request(http.MethodDelete, "/api/namespaces/"+id, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete namespace: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted namespace %s", id))
	cl.State.Fmt.Finish()
	return nil
}
