package config

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdConfigList = &cobra.Command{
	Use:     "list <pipeline_id>",
	Short:   "List all config versions for a pipeline",
	Example: `$ gofer pipeline config list simple`,
	RunE:    configList,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdConfig.AddCommand(cmdConfigList)
}

func configList(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving pipeline configs")

	resp := struct {
		Configs []models.PipelineConfig `json:"configs"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/configs", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list pipeline configs: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Configs) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No configs found for pipeline %s", id))
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, config := range resp.Configs {
		data = append(data, []string{
			strconv.FormatInt(config.Version, 10),
			cliformat.NormalizeEnumValue(string(config.State), "Unknown"),
			strconv.Itoa(len(config.Tasks)),
			cliformat.UnixMilli(config.Registered, "Unknown", cl.State.Config.Detail),
			cliformat.UnixMilli(config.Deprecated, "Still active", cl.State.Config.Detail),
		})
	}

	table := cliformat.Table([]string{"Version", "State", "Tasks", "Registered", "Deprecated"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Configs for pipeline %s\n\n%s", id, table))
	cl.State.Fmt.Finish()
	return nil
}
