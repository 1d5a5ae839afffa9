package pipeline

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdPipelineGet = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get details on a specific pipeline",
	Example: `$ gofer pipeline get simple`,
	RunE:    pipelineGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineGet)
}

func pipelineGet(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving pipeline")

	resp := struct {
		Metadata models.PipelineMetadata `json:"metadata"`
		Config   models.PipelineConfig   `json:"config"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get pipeline: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	tasks := []string{}
	for taskID, task := range resp.Config.Tasks {
		parents := []string{}
		for parent := range task.DependsOn {
			parents = append(parents, parent)
		}

		if len(parents) == 0 {
			tasks = append(tasks, fmt.Sprintf("    • %s", taskID))
			continue
		}

		tasks = append(tasks, fmt.Sprintf("    • %s (after %s)", taskID, strings.Join(parents, ", ")))
	}

	cl.State.Fmt.Println(fmt.Sprintf("  [%s] %s :: %s\n\n  %s\n\n  Config v%d (%s) | Parallelism %d\n  Tasks:\n%s\n\n  Created %s | Modified %s",
		color.BlueString(resp.Metadata.ID),
		resp.Config.Name,
		cliformat.ColorizePipelineState(cliformat.NormalizeEnumValue(string(resp.Metadata.State), "Unknown")),
		resp.Config.Description,
		resp.Config.Version,
		cliformat.NormalizeEnumValue(string(resp.Config.State), "Unknown"),
		resp.Config.Parallelism,
		strings.Join(tasks, "\n"),
		cliformat.UnixMilli(resp.Metadata.Created, "Unknown", cl.State.Config.Detail),
		cliformat.UnixMilli(resp.Metadata.Modified, "Never", cl.State.Config.Detail)))
	cl.State.Fmt.Finish()
	return nil
}
