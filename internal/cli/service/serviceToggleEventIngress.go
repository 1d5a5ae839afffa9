package service

import (
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdServiceToggleEventIngress = &cobra.Command{
	Use:   "toggle-event-ingress",
	Short: "Allows the admin to pause all run activity",
	Long: `Allows the admin to pause all run activity.

While the event ingress is off no new runs can be started, either by users or extensions. Useful
for maintenance windows. Requires a management token.`,
	Example: `$ gofer service toggle-event-ingress`,
	RunE:    serviceToggleEventIngress,
}

func init() {
	CmdService.AddCommand(cmdServiceToggleEventIngress)
}

func serviceToggleEventIngress(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Toggling event ingress")

	resp := struct {
		Value bool `json:"value"`
	}{}

	err := cl.State.Request(http.MethodPost, "/api/system/toggle-event-ingress", nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not toggle event ingress: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if resp.Value {
		cl.State.Fmt.PrintSuccess("Event ingress is now off; new runs are rejected")
	} else {
		cl.State.Fmt.PrintSuccess("Event ingress is now on; new runs are accepted")
	}
	cl.State.Fmt.Finish()
	return nil
}
