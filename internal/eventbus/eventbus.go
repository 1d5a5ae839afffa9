// Package eventbus is the central handler for all things related to events within the application.
// Every state-changing event is durably recorded before being fanned out to any live listeners.
package eventbus

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/rs/zerolog/log"
)

// Duplicate events are possible

// ErrEventNotFound is returned when a requested event could not be located.
var ErrEventNotFound = errors.New("eventbus: event could not be found")

// How many events a single listener may buffer before the bus starts dropping
// its oldest unread events.
const listenerBufferSize = 100

// How many events are fetched per page when replaying history.
const historicalPageSize = 50

// How many publishes may queue behind the background writer before Publish starts
// dropping events outright.
const writeQueueSize = 1000

// Listener is a registered live subscriber for one or more event kinds.
type Listener struct {
	id     string
	kinds  []models.EventKind
	Events chan models.Event
}

func generateID(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

func (l *Listener) matches(kind models.EventKind) bool {
	for _, k := range l.kinds {
		if k == models.EventKindAny || k == kind {
			return true
		}
	}
	return false
}

// EventBus durably logs events and fans them out to live listeners.
type EventBus struct {
	mu sync.Mutex // lock for concurrency safety.

	// storage layer for persistence. Events are pruned past a retention window.
	storage    storage.DB
	retention  time.Duration
	writeQueue chan models.Event
	listeners  []*Listener
}

// New creates a new instance of the eventbus, starts the detached writer and the
// retention pruner.
func New(storage storage.DB, retention time.Duration, pruneInterval time.Duration) (*EventBus, error) {
	eb := &EventBus{
		storage:    storage,
		retention:  retention,
		writeQueue: make(chan models.Event, writeQueueSize),
		listeners:  []*Listener{},
	}

	go eb.handleWriteQueue()

	go func() {
		for {
			eb.pruneEvents()
			time.Sleep(pruneInterval)
		}
	}()

	return eb, nil
}

// SubscribeLive returns a listener which receives only events emitted after the subscription
// was made. Passing no kinds (or the Any kind) subscribes to every event. Slow consumers are
// lossy; once a listener's buffer fills the oldest unread event is dropped to make room.
func (eb *EventBus) SubscribeLive(kinds ...models.EventKind) *Listener {
	if len(kinds) == 0 {
		kinds = []models.EventKind{models.EventKindAny}
	}

	listener := &Listener{
		id:     generateID(5),
		kinds:  kinds,
		Events: make(chan models.Event, listenerBufferSize),
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = append(eb.listeners, listener)

	return listener
}

func (eb *EventBus) Unsubscribe(listener *Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for index, li := range eb.listeners {
		if li.id != listener.id {
			continue
		}

		eb.listeners[index] = eb.listeners[len(eb.listeners)-1]
		eb.listeners = eb.listeners[:len(eb.listeners)-1]
		return
	}
}

// Publish emits a new event to the eventbus. It is fire-and-forget; the returned event is
// constructed immediately while the durable write and live fanout happen on a detached
// writer. Failures along that path are logged, never surfaced.
func (eb *EventBus) Publish(details models.EventKindDetails) *models.Event {
	event := models.NewEvent(details)

	select {
	case eb.writeQueue <- *event:
	default:
		log.Error().Str("kind", string(event.Kind)).Msg("event dropped; write queue full")
	}

	return event
}

// TryPublish is the synchronous variant of Publish. The event is returned only after the
// durable insert and the broadcast have both happened.
func (eb *EventBus) TryPublish(details models.EventKindDetails) (*models.Event, error) {
	event := models.NewEvent(details)

	err := eb.storage.InsertEvent(eb.storage.Write(), event.ToStorage())
	if err != nil {
		return nil, fmt.Errorf("could not publish event: %w", err)
	}

	eb.broadcast(*event)

	return event, nil
}

func (eb *EventBus) handleWriteQueue() {
	for event := range eb.writeQueue {
		err := eb.storage.InsertEvent(eb.storage.Write(), event.ToStorage())
		if err != nil {
			log.Error().Err(err).Str("kind", string(event.Kind)).Msg("could not add event to storage")
			continue
		}

		// Fanout happens only after the durable insert so that a listener can never
		// observe an event that might not survive a restart.
		eb.broadcast(event)

		log.Debug().Interface("event", event).Msg("new event published")
	}
}

func (eb *EventBus) broadcast(event models.Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, listener := range eb.listeners {
		if !listener.matches(event.Kind) {
			continue
		}

		for {
			select {
			case listener.Events <- event:
			default:
				// Buffer full; evict the oldest unread event and retry.
				select {
				case <-listener.Events:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscribeHistorical streams stored events from startFrom (exclusive) forward, oldest first,
// paginating under the hood. The empty string starts from the oldest stored event. The channel
// closes once the store is exhausted; callers wanting "history then live" compose this with
// SubscribeLive.
func (eb *EventBus) SubscribeHistorical(startFrom string) <-chan models.Event {
	events := make(chan models.Event, historicalPageSize)

	go func() {
		after := startFrom

		for {
			eventList, err := eb.storage.ListEventsAfter(eb.storage.Read(), after, historicalPageSize)
			if err != nil {
				log.Error().Err(err).Msg("could not get events")
				close(events)
				return
			}

			if len(eventList) == 0 {
				close(events)
				return
			}

			for _, storageEvent := range eventList {
				var event models.Event
				event.FromStorage(&storageEvent)
				events <- event
			}

			after = eventList[len(eventList)-1].ID
		}
	}()

	return events
}

// GetAll returns all stored events. Returns events from oldest to newest unless the reverse
// parameter is set.
func (eb *EventBus) GetAll(reverse bool) <-chan models.Event {
	events := make(chan models.Event, historicalPageSize)

	go func() {
		offset := 0

		for {
			eventList, err := eb.storage.ListEvents(eb.storage.Read(), offset, historicalPageSize, reverse)
			if err != nil {
				log.Error().Err(err).Msg("could not get events")
				close(events)
				return
			}

			if len(eventList) == 0 {
				close(events)
				return
			}

			for _, storageEvent := range eventList {
				var event models.Event
				event.FromStorage(&storageEvent)
				events <- event
			}

			offset += len(eventList)
		}
	}()

	return events
}

// Get returns a single event by id. Returns an eventbus.ErrEventNotFound if the event could
// not be located.
func (eb *EventBus) Get(id string) (models.Event, error) {
	storageEvent, err := eb.storage.GetEvent(eb.storage.Read(), id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return models.Event{}, ErrEventNotFound
		}
		return models.Event{}, err
	}

	var event models.Event
	event.FromStorage(&storageEvent)

	return event, nil
}

func (eb *EventBus) pruneEvents() {
	offset := 0

	totalPruned := 0

	for {
		events, err := eb.storage.ListEvents(eb.storage.Read(), offset, historicalPageSize, false)
		if err != nil {
			log.Error().Err(err).Msg("could not get events from storage")
			return
		}

		prunedThisPage := 0

		for _, storageEvent := range events {
			var event models.Event
			event.FromStorage(&storageEvent)

			if isPastCutDate(event, eb.retention) {
				log.Debug().Str("event_id", event.ID).Dur("retention", eb.retention).
					Uint64("emitted", event.Emitted).
					Int64("current_time", time.Now().UnixMilli()).Msg("removed event past retention")
				totalPruned++
				prunedThisPage++
				err := eb.storage.DeleteEvent(eb.storage.Write(), event.ID)
				if err != nil {
					log.Error().Err(err).Msg("could not delete event")
					return
				}
				continue
			}
		}

		if len(events) != historicalPageSize {
			if totalPruned > 0 {
				log.Info().Dur("retention", eb.retention).Int("total", totalPruned).Msg("pruned old events")
			}
			return
		}

		offset += len(events) - prunedThisPage
	}
}

func isPastCutDate(event models.Event, limit time.Duration) bool {
	cut := time.Now().Add(-limit) // Even though this function says add, we're actually subtracting time.

	return event.Emitted < uint64(cut.UnixMilli())
}
