package token

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

var cmdTokenGet = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get details on a specific token",
	Example: `$ gofer service token get de3foi`,
	RunE:    tokenGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdToken.AddCommand(cmdTokenGet)
}

func tokenGet(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving token")

	resp := struct {
		Token models.Token `json:"token"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/tokens/"+id, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get token: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	token := resp.Token

	state := "Active"
	if token.Disabled {
		state = color.YellowString("Disabled")
	}

	metadata := []string{}
	for key, value := range token.Metadata {
		metadata = append(metadata, fmt.Sprintf("%s=%s", key, value))
	}

	cl.State.Fmt.Println(fmt.Sprintf("  Token %s [%s] :: %s\n\n  Namespaces: %s\n  Created: %s\n  Expires: %s\n  Metadata: %s",
		color.BlueString(token.ID),
		token.TokenType,
		state,
		strings.Join(token.Namespaces, ", "),
		cliformat.UnixMilli(token.Created, "Unknown", cl.State.Config.Detail),
		cliformat.UnixMilli(token.Expires, "Never", cl.State.Config.Detail),
		strings.Join(metadata, ", ")))
	cl.State.Fmt.Finish()
	return nil
}
