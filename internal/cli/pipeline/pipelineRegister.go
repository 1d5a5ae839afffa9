package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdPipelineRegister = &cobra.Command{
	Use:   "register <path>",
	Short: "Register a new pipeline config version",
	Long: `Register a new pipeline config version.

Takes a JSON pipeline configuration file. Registering does not change what is currently running;
use 'gofer pipeline deploy' to promote the new version to live.`,
	Example: `$ gofer pipeline register ./pipeline.json`,
	RunE:    pipelineRegister,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineRegister)
}

type pipelineConfigFile struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parallelism int64                  `json:"parallelism,omitempty"`
	Tasks       map[string]models.Task `json:"tasks"`
}

func pipelineRegister(_ *cobra.Command, args []string) error {
	path := args[0]

	cl.State.Fmt.Print("Registering pipeline config")

	rawConfig, err := os.ReadFile(path)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not read config file: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	body := pipelineConfigFile{}
	err = json.Unmarshal(rawConfig, &body)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not parse config file: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	resp := struct {
		Pipeline models.PipelineMetadata `json:"pipeline"`
		Config   models.PipelineConfig   `json:"config"`
	}{}

	apiPath := fmt.Sprintf("/api/namespaces/%s/pipelines/configs", cl.State.NamespaceOrDefault())
	err = cl.State.Request(http.MethodPost, apiPath, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not register pipeline config: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Registered pipeline %q config v%d", resp.Pipeline.ID, resp.Config.Version))
	cl.State.Fmt.Println(fmt.Sprintf("\n  Deploy it with: gofer pipeline deploy %s %d", resp.Pipeline.ID, resp.Config.Version))
	cl.State.Fmt.Finish()
	return nil
}
