package config

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdConfigDelete = &cobra.Command{
	Use:   "delete <pipeline_id> <version>",
	Short: "Remove a pipeline config version",
	Long: `Remove a pipeline config version.

The live version and the only remaining version of a pipeline cannot be removed.`,
	Example: `$ gofer pipeline config delete simple 1`,
	RunE:    configDelete,
	Args:    cobra.ExactArgs(2),
}

func init() {
	CmdConfig.AddCommand(cmdConfigDelete)
}

func configDelete(_ *cobra.Command, args []string) error {
	id := args[0]

	version, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse version %q", args[1])
	}

	cl.State.Fmt.Print("Deleting pipeline config")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/configs/%d", cl.State.NamespaceOrDefault(), id, version)
	err = cl.State.Request(http.MethodDelete, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete pipeline config: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted pipeline %s config v%d", id, version))
	cl.State.Fmt.Finish()
	return nil
}
