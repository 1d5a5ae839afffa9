package pipeline

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdPipelineDeploy = &cobra.Command{
	Use:   "deploy <pipeline_id> <version>",
	Short: "Deploy a registered config version as the new live version",
	Long: `Deploy a registered config version as the new live version.

Runs started after the deployment use the new version. Runs already in flight keep the version
they started with.`,
	Example: `$ gofer pipeline deploy simple 2`,
	RunE:    pipelineDeploy,
	Args:    cobra.ExactArgs(2),
}

func init() {
	CmdPipeline.AddCommand(cmdPipelineDeploy)
}

func pipelineDeploy(_ *cobra.Command, args []string) error {
	id := args[0]

	version, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse version %q", args[1])
	}

	cl.State.Fmt.Print("Deploying pipeline config")

	body := struct {
		Version int64 `json:"version"`
	}{
		Version: version,
	}

	resp := struct {
		Deployment models.Deployment `json:"deployment"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/deployments", cl.State.NamespaceOrDefault(), id)
	err = cl.State.Request(http.MethodPost, path, &body, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not deploy pipeline: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deployed pipeline %s v%d -> v%d",
		id, resp.Deployment.StartVersion, resp.Deployment.EndVersion))
	cl.State.Fmt.Finish()
	return nil
}
