package run

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdRunGet = &cobra.Command{
	Use:     "get <pipeline_id> <run_id>",
	Short:   "Get details on a specific run",
	Example: `$ gofer run get simple 3`,
	RunE:    runGet,
	Args:    cobra.ExactArgs(2),
}

func init() {
	CmdRun.AddCommand(cmdRunGet)
}

func runGet(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	cl.State.Fmt.Print("Retrieving run")

	resp := struct {
		Run models.Run `json:"run"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs/%d", cl.State.NamespaceOrDefault(), pipelineID, runID)
	err = cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get run: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	run := resp.Run

	statusReason := ""
	if run.StatusReason != nil {
		statusReason = fmt.Sprintf("\n  Reason: %s", run.StatusReason.Description)
	}

	cl.State.Fmt.Println(fmt.Sprintf("  Run %s for pipeline %s (config v%d)\n\n  Started %s and ran for %s\n  State: %s | Status: %s%s\n  Started by %s (%s)",
		color.BlueString("#"+strconv.FormatInt(run.RunID, 10)),
		color.BlueString(run.PipelineID),
		run.Version,
		cliformat.UnixMilli(run.Started, "Not yet", cl.State.Config.Detail),
		cliformat.Duration(run.Started, run.Ended),
		cliformat.ColorizeRunState(cliformat.NormalizeEnumValue(string(run.State), "Unknown")),
		cliformat.ColorizeRunStatus(cliformat.NormalizeEnumValue(string(run.Status), "Unknown")),
		statusReason,
		run.Initiator.Name,
		run.Initiator.Reason))
	cl.State.Fmt.Finish()
	return nil
}
