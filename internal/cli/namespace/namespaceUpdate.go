package namespace

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdNamespaceUpdate = &cobra.Command{
	Use:     "update <id>",
	Short:   "Update details on a specific namespace",
	Example: `$ gofer namespace update default --name="Default" --description="The default namespace"`,
	RunE:    namespaceUpdate,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdNamespaceUpdate.Flags().String("name", "", "Humanized name for the namespace")
	cmdNamespaceUpdate.Flags().StringP("description", "d", "", "Description on use for namespace")
	CmdNamespace.AddCommand(cmdNamespaceUpdate)
}

func namespaceUpdate(cmd *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Updating namespace")

	body := struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
	}{}

	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		body.Name = &name
	}

	if cmd.Flags().Changed("description") {
		description, _ := cmd.Flags().GetString("description")
		body.Description = &description
	}

	err := cl.State.Request(http.MethodPatch, "/api/namespaces/"+id, &body, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not update namespace: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Updated namespace %s", id))
	cl.State.Fmt.Finish()
	return nil
}
