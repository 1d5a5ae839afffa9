package taskexecution

import (
	"github.com/spf13/cobra"
)

var CmdTaskExecution = &cobra.Command{
	Use:   "taskexecution",
	Short: "Manage task executions",
	Long: `Manage task executions.

A task execution is a single container launched on behalf of a task within a run.`,
}
