package secret

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdGlobalSecretList = &cobra.Command{
	Use:     "list",
	Short:   "List all global secrets",
	Example: `$ gofer secret global list`,
	RunE:    globalSecretList,
}

func init() {
	cmdGlobalSecret.AddCommand(cmdGlobalSecretList)
}

func globalSecretList(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Retrieving global secrets")

	resp := struct {
		Keys []models.SecretStoreKey `json:"keys"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/secrets/global", nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list global secrets: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Keys) == 0 {
		cl.State.Fmt.Println("No global secrets found")
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, key := range resp.Keys {
		data = append(data, []string{
			key.Key,
			strings.Join(key.Namespaces, ", "),
			cliformat.UnixMilli(key.Created, "Unknown", cl.State.Config.Detail),
		})
	}

	table := cliformat.Table([]string{"Key", "Namespaces", "Created"}, data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(table)
	cl.State.Fmt.Finish()
	return nil
}
