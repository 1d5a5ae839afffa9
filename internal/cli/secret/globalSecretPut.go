package secret

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdGlobalSecretPut = &cobra.Command{
	Use:   "put <key> <content>",
	Short: "Store a new global secret",
	Long: `Store a new global secret.

The namespaces flag controls which namespaces may reference the secret; entries are
treated as regexes, so ".*" shares the secret with every namespace.`,
	Example: `$ gofer secret global put example_key example_value --namespaces=".*"`,
	RunE:    globalSecretPut,
	Args:    cobra.ExactArgs(2),
}

func init() {
	cmdGlobalSecretPut.Flags().StringSliceP("namespaces", "n", []string{"default"}, "namespaces allowed to access this secret; repeatable, regexes allowed")
	cmdGlobalSecretPut.Flags().BoolP("force", "f", false, "overwrite the secret if the key already exists")
	cmdGlobalSecret.AddCommand(cmdGlobalSecretPut)
}

func globalSecretPut(cmd *cobra.Command, args []string) error {
	key := args[0]
	content := args[1]

	namespaces, _ := cmd.Flags().GetStringSlice("namespaces")
	force, _ := cmd.Flags().GetBool("force")

	cl.State.Fmt.Print("Storing global secret")

	body := struct {
		Key        string   `json:"key"`
		Content    string   `json:"content"`
		Namespaces []string `json:"namespaces"`
		Force      bool     `json:"force,omitempty"`
	}{
		Key:        key,
		Content:    content,
		Namespaces: namespaces,
		Force:      force,
	}

	resp := struct {
		Key models.SecretStoreKey `json:"key"`
	}{}

	err := cl.State.Request(http.MethodPost, "/api/secrets/global", &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not store global secret: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Stored global secret %q", resp.Key.Key))
	cl.State.Fmt.Finish()
	return nil
}
