package pipeline

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdPipelineEnable = &cobra.Command{
	Use:     "enable <id>",
	Short:   "Re-enable a disabled pipeline",
	Example: `$ gofer pipeline enable simple`,
	RunE:    pipelineEnable,
	Args:    cobra.ExactArgs(1),
}

var cmdPipelineDisable = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a pipeline",
	Long: `Disable a pipeline.

Disabled pipelines refuse new runs but keep all of their history and configuration.`,
	Example: `$ gofer pipeline disable simple`,
	RunE:    pipelineDisable,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineEnable)
	CmdPipeline.AddCommand(cmdPipelineDisable)
}

func pipelineEnable(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Enabling pipeline")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/enable", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodPut, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not enable pipeline: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Enabled pipeline %s", id))
	cl.State.Fmt.Finish()
	return nil
}

func pipelineDisable(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Disabling pipeline")

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/disable", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodPut, path, nil, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not disable pipeline: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Disabled pipeline %s", id))
	cl.State.Fmt.Finish()
	return nil
}
