package namespace

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdNamespaceList = &cobra.Command{
	Use:     "list",
	Short:   "List all namespaces",
	Example: `$ gofer namespace list`,
	RunE:    namespaceList,
}

func init() {
	cmdNamespaceList.Flags().IntP("limit", "l", 0, "limit the amount of results returned")
	CmdNamespace.AddCommand(cmdNamespaceList)
}

func namespaceList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cl.State.Fmt.Print("Retrieving namespaces")

	resp := struct {
		Namespaces []models.Namespace `json:"namespaces"`
	}{}

	err := cl.State.Request(http.MethodGet, fmt.Sprintf("/api/namespaces?limit=%d", limit), nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list namespaces: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	data := [][]string{}
	for _, namespace := range resp.Namespaces {
		data = append(data, []string{
			namespace.ID,
			namespace.Name,
			namespace.Description,
			cliformat.UnixMilli(namespace.Created, "Unknown", cl.State.Config.Detail),
		})
	}

	table := cliformat.Table([]string{"ID", "Name", "Description", "Created"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Namespaces\n\n%s", table))
	cl.State.Fmt.Finish()
	return nil
}
