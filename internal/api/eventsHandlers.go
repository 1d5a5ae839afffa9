package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (apictx *APIContext) registerListEvents(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "ListEvents",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "List events",
		Description: "Returns a paginated list of system events, oldest first. Set reverse to get newest first.",
		Tags:        []string{"Events"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth    string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		Offset  int    `query:"offset" default:"0" doc:"The offset into the list of events"`
		Limit   int    `query:"limit" default:"0" doc:"The limit of how many events to return"`
		Reverse bool   `query:"reverse" default:"false" doc:"Sort events newest first"`
	},
	) (*ListEventsResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		storedEvents, err := apictx.db.ListEvents(apictx.db.Read(), request.Offset, request.Limit,
			request.Reverse)
		if err != nil {
			return nil, huma.NewError(http.StatusInternalServerError, "could not get events", err)
		}

		events := []models.Event{}

		for _, storedEvent := range storedEvents {
			var event models.Event
			event.FromStorage(&storedEvent)
			events = append(events, event)
		}

		resp := &ListEventsResponse{}
		resp.Body.Events = events

		return resp, nil
	})
}

type ListEventsResponse struct {
	Body struct {
		Events []models.Event `json:"events" doc:"A list of events"`
	}
}

func (apictx *APIContext) registerDescribeEvent(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeEvent",
		Method:      http.MethodGet,
		Path:        "/api/events/{event_id}",
		Summary:     "Describe an event",
		Description: "Returns details on a specific event.",
		Tags:        []string{"Events"},
		// Handler //
	}, func(ctx context.Context, request *struct {
		Auth    string `header:"Authorization" example:"Bearer <your_api_token>" required:"true"`
		EventID string `path:"event_id" example:"018e8b41-7a8d-7aa3-9d3f-2a0e3c49c2f1" doc:"The unique identifier for the target event"`
	},
	) (*DescribeEventResponse, error) {
		if !isManagementUser(ctx) {
			return nil, huma.NewError(http.StatusUnauthorized,
				"management token required for this action")
		}

		event, err := apictx.events.Get(request.EventID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil, huma.NewError(http.StatusNotFound, "event not found")
			}

			return nil, huma.NewError(http.StatusInternalServerError, "could not get event", err)
		}

		resp := &DescribeEventResponse{}
		resp.Body.Event = event

		return resp, nil
	})
}

type DescribeEventResponse struct {
	Body struct {
		Event models.Event `json:"event" doc:"The requested event"`
	}
}

// streamEventsHandler streams events over a websocket connection. With history set the stream
// starts from the beginning of the event log and seamlessly transitions into live events once it
// has caught up; without it only new events are streamed. Reverse is only meaningful when replaying
// history and cannot be combined with the live follow.
func (apictx *APIContext) streamEventsHandler(resp http.ResponseWriter, req *http.Request) {
	history, _ := strconv.ParseBool(req.URL.Query().Get("history"))
	reverse, _ := strconv.ParseBool(req.URL.Query().Get("reverse"))

	conn, err := websocketUpgrader.Upgrade(resp, req, nil)
	if err != nil {
		log.Error().Err(err).Msg("could not upgrade connection to websocket")
		return
	}
	defer conn.Close()

	// Reverse is only meaningful when replaying history.
	if !history && reverse {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData,
				"reverse can only be used together with history"))
		return
	}

	writeEvent := func(event models.Event) bool {
		rawEvent, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("could not serialize event for streaming")
			return false
		}

		return conn.WriteMessage(websocket.TextMessage, rawEvent) == nil
	}

	if history && reverse {
		for event := range apictx.events.GetAll(true) {
			if !writeEvent(event) {
				return
			}
		}

		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}

	// Subscribe to live events before replaying history so that nothing emitted during the replay
	// is missed. Duplicates across the boundary are filtered by id below.
	listener := apictx.events.SubscribeLive()
	defer apictx.events.Unsubscribe(listener)

	lastSentID := ""

	if history {
		for event := range apictx.events.SubscribeHistorical("") {
			if !writeEvent(event) {
				return
			}

			lastSentID = event.ID
		}
	}

	for event := range listener.Events {
		// Event ids sort in emission order, so anything at or before the last replayed id has
		// already been sent.
		if lastSentID != "" && event.ID <= lastSentID {
			continue
		}

		if !writeEvent(event) {
			return
		}
	}
}
