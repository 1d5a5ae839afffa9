package service

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdServiceRepairOrphan = &cobra.Command{
	Use:   "repair-orphan <pipeline_id> <run_id>",
	Short: "Attempt to repair a run stuck in an incomplete state",
	Long: `Attempt to repair a run stuck in an incomplete state.

Usually Gofer resolves orphaned runs on startup, but if a run got stuck while the service kept
running this command forces a re-evaluation of the run and its task executions.`,
	Example: `$ gofer service repair-orphan simple 5`,
	RunE:    serviceRepairOrphan,
	Args:    cobra.ExactArgs(2),
}

func init() {
	CmdService.AddCommand(cmdServiceRepairOrphan)
}

func serviceRepairOrphan(_ *cobra.Command, args []string) error {
	pipelineID := args[0]

	runID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse run id %q", args[1])
	}

	cl.State.Fmt.Print("Repairing orphaned run")

	body := struct {
		NamespaceID string `json:"namespace_id"`
		PipelineID  string `json:"pipeline_id"`
		RunID       int64  `json:"run_id"`
	}{
		NamespaceID: cl.State.NamespaceOrDefault(),
		PipelineID:  pipelineID,
		RunID:       runID,
	}

	err = cl.State.Request(http.MethodPost, "/api/system/repair-orphan", &body, nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not repair run: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Repaired run %d for pipeline %s", runID, pipelineID))
	cl.State.Fmt.Finish()
	return nil
}
