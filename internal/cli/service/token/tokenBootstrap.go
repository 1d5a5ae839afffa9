package token

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdTokenBootstrap = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first management token",
	Long: `Create the first management token.

Only works once on a fresh install; afterwards all token creation requires an existing
management token.`,
	Example: `$ gofer service token bootstrap`,
	RunE:    tokenBootstrap,
}

func init() {
	CmdToken.AddCommand(cmdTokenBootstrap)
}

func tokenBootstrap(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Creating bootstrap token")

	resp := struct {
		Details models.Token `json:"details"`
		Secret  string       `json:"secret"`
	}{}

	err := cl.State.Request(http.MethodPost, "/api/tokens/bootstrap", nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not create bootstrap token: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Created bootstrap token [%s]", resp.Details.ID))
	cl.State.Fmt.Println(fmt.Sprintf("\n  Token: %s\n\n  This is the only time the token is shown; store it somewhere safe.",
		color.YellowString(resp.Secret)))
	cl.State.Fmt.Finish()
	return nil
}
