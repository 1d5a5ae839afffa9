package event

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	cliformat "github.com/clintjedwards/gofer/internal/cli/format"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/spf13/cobra"
)

var cmdEventList = &cobra.Command{
	Use:     "list",
	Short:   "List system events",
	Example: `$ gofer event list --limit 20 --reverse`,
	RunE:    eventList,
}

func init() {
	cmdEventList.Flags().IntP("limit", "l", 20, "limit the amount of results returned")
	cmdEventList.Flags().Int("offset", 0, "offset into the event log")
	cmdEventList.Flags().BoolP("reverse", "r", false, "sort events newest first")
	CmdEvent.AddCommand(cmdEventList)
}

func eventList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	reverse, _ := cmd.Flags().GetBool("reverse")

	cl.State.Fmt.Print("Retrieving events")

	resp := struct {
		Events []models.Event `json:"events"`
	}{}

	path := fmt.Sprintf("/api/events?offset=%d&limit=%d&reverse=%t", offset, limit, reverse)
	err := cl.State.Request(http.MethodGet, path, nil, &resp)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list events: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Events) == 0 {
		cl.State.Fmt.Println("No events found")
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, event := range resp.Events {
		details, _ := json.Marshal(event.Details)

		data = append(data, []string{
			event.ID,
			string(event.Kind),
			string(details),
			cliformat.UnixMilli(event.Emitted, "Unknown", cl.State.Config.Detail),
		})
	}

	table := cliformat.Table([]string{"ID", "Kind", "Details", "Emitted"}, data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(table)
	cl.State.Fmt.Finish()
	return nil
}
