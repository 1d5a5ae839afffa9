package pipeline

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdPipelineDeployments = &cobra.Command{
	Use:     "deployments <pipeline_id>",
	Short:   "List all deployments for a pipeline",
	Example: `$ gofer pipeline deployments simple`,
	RunE:    pipelineDeployments,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineDeployments)
}

func pipelineDeployments(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving deployments")

	resp := struct {
		Deployments []models.Deployment `json:"deployments"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/deployments", cl.State.NamespaceOrDefault(), id)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list deployments: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Deployments) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No deployments found for pipeline %s", id))
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, deployment := range resp.Deployments {
		data = append(data, []string{
			strconv.FormatInt(deployment.DeploymentID, 10),
			fmt.Sprintf("v%d -> v%d", deployment.StartVersion, deployment.EndVersion),
			cliformat.UnixMilli(deployment.Started, "Not yet", cl.State.Config.Detail),
			cliformat.Duration(deployment.Started, deployment.Ended),
			cliformat.NormalizeEnumValue(string(deployment.State), "Unknown"),
			cliformat.ColorizeRunStatus(cliformat.NormalizeEnumValue(string(deployment.Status), "Unknown")),
		})
	}

	table := cliformat.Table([]string{"ID", "Versions", "Started", "Duration", "State", "Status"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Deployments for pipeline %s\n\n%s", id, table))
	cl.State.Fmt.Finish()
	return nil
}
