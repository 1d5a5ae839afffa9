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

var cmdRunList = &cobra.Command{
	Use:   "list <pipeline_id>",
	Short: "List all runs",
	Long: `List all runs.

A short listing of all pipeline runs.`,
	Example: `$ gofer run list simple`,
	RunE:    runList,
	Args:    cobra.ExactArgs(1),
}

func init() {
	cmdRunList.Flags().IntP("limit", "l", 10, "limit the amount of results returned")
	CmdRun.AddCommand(cmdRunList)
}

func runList(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	limit, _ := cmd.Flags().GetInt("limit")

	cl.State.Fmt.Print("Retrieving runs")

	resp := struct {
		Runs []models.Run `json:"runs"`
	}{}

	path := fmt.Sprintf("/api/namespaces/%s/pipelines/%s/runs?limit=%d",
		cl.State.NamespaceOrDefault(), pipelineID, limit)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list runs: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Runs) == 0 {
		cl.State.Fmt.Println(fmt.Sprintf("No runs found for pipeline %s", pipelineID))
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, run := range resp.Runs {
		data = append(data, []string{
			strconv.FormatInt(run.RunID, 10),
			cliformat.UnixMilli(run.Started, "Not yet", cl.State.Config.Detail),
			cliformat.UnixMilli(run.Ended, "Still running", cl.State.Config.Detail),
			cliformat.Duration(run.Started, run.Ended),
			cliformat.ColorizeRunState(cliformat.NormalizeEnumValue(string(run.State), "Unknown")),
			cliformat.ColorizeRunStatus(cliformat.NormalizeEnumValue(string(run.Status), "Unknown")),
			fmt.Sprintf("%s(%s)", run.Initiator.Type, color.YellowString(run.Initiator.Name)),
		})
	}

	table := cliformat.Table([]string{"ID", "Started", "Ended", "Duration", "State", "Status", "Started By"},
		data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Runs for pipeline %s\n\n%s", color.BlueString(pipelineID), table))
	cl.State.Fmt.Finish()
	return nil
}
