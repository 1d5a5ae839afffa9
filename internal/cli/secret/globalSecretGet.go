package secret

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdGlobalSecretGet = &cobra.Command{
	Use:     "get <key>",
	Short:   "Get details on a specific global secret",
	Example: `$ gofer secret global get example_key --include-secret`,
	RunE:    globalSecretGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdGlobalSecretGet.Flags().Bool("include-secret", false, "print the plaintext secret value")
	cmdGlobalSecret.AddCommand(cmdGlobalSecretGet)
}

func globalSecretGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	includeSecret, _ := cmd.Flags().GetBool("include-secret")

	cl.State.Fmt.Print("Retrieving global secret")

	resp := struct {
		Metadata models.SecretStoreKey `json:"metadata"`
		Secret   string                `json:"secret,omitempty"`
	}{}

	path := fmt.Sprintf("/api/secrets/global/%s?include_secret=%t", key, includeSecret)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get global secret: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	secret := ""
	if includeSecret {
		secret = fmt.Sprintf("\n  Secret: %s", color.YellowString(resp.Secret))
	}

	cl.State.Fmt.Println(fmt.Sprintf("  Global secret %s\n\n  Namespaces: %s\n  Created %s%s",
		color.BlueString(resp.Metadata.Key),
		strings.Join(resp.Metadata.Namespaces, ", "),
		cliformat.UnixMilli(resp.Metadata.Created, "Unknown", cl.State.Config.Detail),
		secret))
	cl.State.Fmt.Finish()
	return nil
}
