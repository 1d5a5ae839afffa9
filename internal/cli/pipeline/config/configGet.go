package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdConfigGet = &cobra.Command{
	Use:     "get <pipeline_id> <version>",
	Short:   "Print a pipeline config version as JSON",
	Example: `$ gofer pipeline config get simple 2`,
	RunE:    configGet,
	Args:    cobra.ExactArgs(2),
}

func init() {
	CmdConfig.AddCommand(cmdConfigGet)
}

func configGet(_ *cobra.Command, args []string) error {
	id := args[0]

	version, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse version %q", args[1])
	}

	cl.State.Fmt.Print("Retrieving pipeline config")

	resp := struct {
		Config models.PipelineConfig `json:"config"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/configs/%d", cl.State.NamespaceOrDefault(), id, version)
	err = cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get pipeline config: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	rawConfig, err := json.MarshalIndent(resp.Config, "", "  ")
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not serialize pipeline config: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.Println(string(rawConfig))
	cl.State.Fmt.Finish()
	return nil
}
