package pipeline

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdPipelineList = &cobra.Command{
	Use:     "list",
	Short:   "List all pipelines",
	Example: `$ gofer pipeline list`,
	RunE:    pipelineList,
}

func init() {
	cmdPipelineList.Flags().IntP("limit", "l", 0, "limit the amount of results returned")
	CmdPipeline.AddCommand(cmdPipelineList)
}

func pipelineList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cl.State.Fmt.Print("Retrieving pipelines")

	resp := struct {
		Pipelines []models.PipelineMetadata `json:"pipelines"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines?limit=%d", cl.State.NamespaceOrDefault(), limit)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list pipelines: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Pipelines) == 0 {
		cl.State.Fmt.Println("No pipelines found")
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, pipeline := range resp.Pipelines {
		data = append(data, []string{
			pipeline.ID,
			cliformat.ColorizePipelineState(cliformat.NormalizeEnumValue(string(pipeline.State), "Unknown")),
			cliformat.UnixMilli(pipeline.Created, "Unknown", cl.State.Config.Detail),
			cliformat.UnixMilli(pipeline.Modified, "Never", cl.State.Config.Detail),
		})
	}

	table := cliformat.Table([]string{"ID", "State", "Created", "Last Modified"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Pipelines\n\n%s", table))
	cl.State.Fmt.Finish()
	return nil
}
