package event

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdEventGet = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get details on a specific event",
	Example: `$ gofer event get 018e8b41-7a8d-7aa3-9d3f-2a0e3c49c2f1`,
	RunE:    eventGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdEvent.AddCommand(cmdEventGet)
}

func eventGet(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving event")

	resp := struct {
		Event models.Event `json:"event"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/events/"+id, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get event: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	details, _ := json.MarshalIndent(resp.Event.Details, "  ", "  ")

	cl.State.Fmt.Println(fmt.Sprintf("  Event %s\n\n  Kind: %s\n  Emitted: %s\n  Details:\n  %s",
		color.BlueString(resp.Event.ID),
		resp.Event.Kind,
		cliformat.UnixMilli(resp.Event.Emitted, "Unknown", cl.State.Config.Detail),
		string(details)))
	cl.State.Fmt.Finish()
	return nil
}
