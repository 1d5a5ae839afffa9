package namespace

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdNamespaceGet = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get details on a specific namespace",
	Example: `$ gofer namespace get default`,
	RunE:    namespaceGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdNamespace.AddCommand(cmdNamespaceGet)
}

func namespaceGet(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving namespace")

	resp := struct {
		Namespace models.Namespace `json:"namespace"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/namespaces/"+id, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get namespace: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	namespace := resp.Namespace

	cl.State.Fmt.Println(fmt.Sprintf("  [%s] %s\n\n  %s\n\n  Created %s | Modified %s",
		color.BlueString(namespace.ID),
		namespace.Name,
		namespace.Description,
		cliformat.UnixMilli(namespace.Created, "Unknown", cl.State.Config.Detail),
		cliformat.UnixMilli(namespace.Modified, "Never", cl.State.Config.Detail)))
	cl.State.Fmt.Finish()
	return nil
}
