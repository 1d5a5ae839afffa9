package token

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdTokenList = &cobra.Command{
	Use:     "list",
	Short:   "List all api tokens",
	Example: `$ gofer service token list`,
	RunE:    tokenList,
}

func init() {
	cmdTokenList.Flags().IntP("limit", "l", 0, "limit the amount of results returned")
	CmdToken.AddCommand(cmdTokenList)
}

func tokenList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cl.State.Fmt.Print("Retrieving tokens")

	resp := struct {
		Tokens []models.Token `json:"tokens"`
	}{}

	err := cl.State.Request(http.MethodGet, fmt.Sprintf("/api/tokens?limit=%d", limit), nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list tokens: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Tokens) == 0 {
		cl.State.Fmt.Println("No tokens found")
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, token := range resp.Tokens {
		state := "Active"
		if token.Disabled {
			state = "Disabled"
		}

		data = append(data, []string{
			token.ID,
			string(token.TokenType),
			strings.Join(token.Namespaces, ", "),
			cliformat.UnixMilli(token.Created, "Unknown", cl.State.Config.Detail),
			cliformat.UnixMilli(token.Expires, "Never", cl.State.Config.Detail),
			state,
		})
	}

	table := cliformat.Table([]string{"ID", "Type", "Namespaces", "Created", "Expires", "State"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Tokens\n\n%s", table))
	cl.State.Fmt.Finish()
	return nil
}
