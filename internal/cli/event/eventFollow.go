package event

import (
	"fmt"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var cmdEventFollow = &cobra.Command{
	Use:   "follow",
	Short: "Stream system events as they happen",
	Long: `Stream system events as they happen.

With --history the stream starts from the beginning of the event log and transitions into
live events once it has caught up.`,
	Example: `$ gofer event follow`,
	RunE:    eventFollow,
}

func init() {
	cmdEventFollow.Flags().Bool("history", false, "replay the event log from the beginning before following")
	CmdEvent.AddCommand(cmdEventFollow)
}

func eventFollow(cmd *cobra.Command, _ []string) error {
	history, _ := cmd.Flags().GetBool("history")

	cl.State.Fmt.Print("Connecting to event stream")

	conn, err := cl.State.Websocket(fmt.Sprintf("/api/events/stream?history=%t", history))
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not connect to event stream: %v", err))
		cl.State.Fmt.Finish()
		return err
	}
	defer conn.Close()

	cl.State.Fmt.Finish()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}

			return fmt.Errorf("lost connection to event stream: %w", err)
		}

		fmt.Println(string(message))
	}
}
