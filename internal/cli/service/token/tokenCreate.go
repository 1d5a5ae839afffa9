package token

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdTokenCreate = &cobra.Command{
	Use:   "create <type>",
	Short: "Create a new api token",
	Long: `Create a new api token.

The type must be either 'client' or 'management'. Client tokens are scoped to a set of namespaces;
management tokens can administer the whole service.`,
	Example: `$ gofer service token create client --namespaces="default"
$ gofer service token create management --expiry-hours=48`,
	RunE: tokenCreate,
	Args: cobra.ExactArgs(1),
}

func init() {
	cmdTokenCreate.Flags().StringSliceP("namespaces", "n", []string{"default"}, "namespaces this token has access to; regexes allowed")
	cmdTokenCreate.Flags().StringToStringP("metadata", "m", nil, "extra labels to attach to the token")
	cmdTokenCreate.Flags().IntP("expiry-hours", "e", 0, "hours until the token expires; 0 means effectively never")
	CmdToken.AddCommand(cmdTokenCreate)
}

func tokenCreate(cmd *cobra.Command, args []string) error {
	kind := args[0]

	namespaces, _ := cmd.Flags().GetStringSlice("namespaces")
	metadata, _ := cmd.Flags().GetStringToString("metadata")
	expiryHrs, _ := cmd.Flags().GetInt("expiry-hours")

	var tokenType models.TokenType
	switch kind {
	case "client":
		tokenType = models.TokenTypeClient
	case "management":
		tokenType = models.TokenTypeManagement
	default:
		return fmt.Errorf("token type must be either 'client' or 'management'; got %q", kind)
	}

	cl.State.Fmt.Print("Creating token")

	body := struct {
		TokenType  models.TokenType  `json:"token_type"`
		Namespaces []string          `json:"namespaces"`
		Metadata   map[string]string `json:"metadata,omitempty"`
		ExpiryHrs  int               `json:"expiry_hrs"`
	}{
		TokenType:  tokenType,
		Namespaces: namespaces,
		Metadata:   metadata,
		ExpiryHrs:  expiryHrs,
	}

	resp := struct {
		Details models.Token `json:"details"`
		Secret  string       `json:"secret"`
	}{}

	err := cl.State.Request(http.MethodPost, "/api/tokens", &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not create token: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Created %s token [%s]", kind, resp.Details.ID))
	cl.State.Fmt.Println(fmt.Sprintf("\n  Token: %s\n\n  This is the only time the token is shown; store it somewhere safe.",
		color.YellowString(resp.Secret)))
	cl.State.Fmt.Finish()
	return nil
}
