package event

import (
	"github.com/spf13/cobra"
)

var CmdEvent = &cobra.Command{
	Use:   "event",
	Short: "Examine system events",
	Long: `Examine system events.

Every notable action the server takes emits an event. These commands page through the
event log or follow it live.`,
}
