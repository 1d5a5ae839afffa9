package token

import (
	"github.com/spf13/cobra"
)

var CmdToken = &cobra.Command{
	Use:   "token",
	Short: "Manage api tokens",
	Long: `Manage api tokens.

Tokens are the sole authentication mechanism for the API. Management tokens can administer the
entire service while client tokens are scoped to a set of namespaces.`,
}
