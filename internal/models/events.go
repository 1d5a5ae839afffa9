package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Make sure to keep changes to these enums in lockstep with EventKindMap
type EventKind string

const (
	// The Any kind is a special event kind that denotes the caller wants to listen for any event.
	// It should not be used as a normal event type(for example do not publish anything with it).
	// It is internal only and not passed back on event streaming.
	EventKindAny EventKind = "ANY"

	EventKindCreatedNamespace EventKind = "CREATED_NAMESPACE"
	EventKindDeletedNamespace EventKind = "DELETED_NAMESPACE"

	EventKindDisabledPipeline EventKind = "DISABLED_PIPELINE"
	EventKindEnabledPipeline  EventKind = "ENABLED_PIPELINE"
	EventKindCreatedPipeline  EventKind = "CREATED_PIPELINE"
	EventKindDeletedPipeline  EventKind = "DELETED_PIPELINE"

	EventKindStartedDeployment   EventKind = "STARTED_DEPLOYMENT"
	EventKindCompletedDeployment EventKind = "COMPLETED_DEPLOYMENT"

	EventKindQueuedRun              EventKind = "QUEUED_RUN"
	EventKindStartedRun             EventKind = "STARTED_RUN"
	EventKindCompletedRun           EventKind = "COMPLETED_RUN"
	EventKindStartedRunCancellation EventKind = "STARTED_RUN_CANCELLATION"

	EventKindCreatedTaskExecution             EventKind = "CREATED_TASK_EXECUTION"
	EventKindStartedTaskExecution             EventKind = "STARTED_TASK_EXECUTION"
	EventKindCompletedTaskExecution           EventKind = "COMPLETED_TASK_EXECUTION"
	EventKindStartedTaskExecutionCancellation EventKind = "STARTED_TASK_EXECUTION_CANCELLATION"

	EventKindInstalledExtension   EventKind = "INSTALLED_EXTENSION"
	EventKindUninstalledExtension EventKind = "UNINSTALLED_EXTENSION"
	EventKindEnabledExtension     EventKind = "ENABLED_EXTENSION"
	EventKindDisabledExtension    EventKind = "DISABLED_EXTENSION"

	EventKindPipelineExtensionSubscriptionRegistered   EventKind = "PIPELINE_EXTENSION_SUBSCRIPTION_REGISTERED"
	EventKindPipelineExtensionSubscriptionUnregistered EventKind = "PIPELINE_EXTENSION_SUBSCRIPTION_UNREGISTERED"

	EventKindCreatedRole EventKind = "CREATED_ROLE"
	EventKindDeletedRole EventKind = "DELETED_ROLE"
)

type EventKindDetails interface {
	Kind() EventKind
}

type EventCreatedNamespace struct {
	NamespaceID string `json:"namespace_id"`
}

func (e EventCreatedNamespace) Kind() EventKind {
	return EventKindCreatedNamespace
}

type EventDeletedNamespace struct {
	NamespaceID string `json:"namespace_id"`
}

func (e EventDeletedNamespace) Kind() EventKind {
	return EventKindDeletedNamespace
}

type EventDisabledPipeline struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
}

func (e EventDisabledPipeline) Kind() EventKind {
	return EventKindDisabledPipeline
}

type EventEnabledPipeline struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
}

func (e EventEnabledPipeline) Kind() EventKind {
	return EventKindEnabledPipeline
}

type EventCreatedPipeline struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
}

func (e EventCreatedPipeline) Kind() EventKind {
	return EventKindCreatedPipeline
}

type EventDeletedPipeline struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
}

func (e EventDeletedPipeline) Kind() EventKind {
	return EventKindDeletedPipeline
}

type EventStartedDeployment struct {
	NamespaceID  string `json:"namespace_id"`
	PipelineID   string `json:"pipeline_id"`
	StartVersion int64  `json:"start_version"`
	EndVersion   int64  `json:"end_version"`
}

func (e EventStartedDeployment) Kind() EventKind {
	return EventKindStartedDeployment
}

type EventCompletedDeployment struct {
	NamespaceID  string `json:"namespace_id"`
	PipelineID   string `json:"pipeline_id"`
	StartVersion int64  `json:"start_version"`
	EndVersion   int64  `json:"end_version"`
}

func (e EventCompletedDeployment) Kind() EventKind {
	return EventKindCompletedDeployment
}

type EventQueuedRun struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
	RunID       int64  `json:"run_id"`
}

func (e EventQueuedRun) Kind() EventKind {
	return EventKindQueuedRun
}

type EventStartedRun struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
	RunID       int64  `json:"run_id"`
}

func (e EventStartedRun) Kind() EventKind {
	return EventKindStartedRun
}

type EventCompletedRun struct {
	NamespaceID string    `json:"namespace_id"`
	PipelineID  string    `json:"pipeline_id"`
	RunID       int64     `json:"run_id"`
	Status      RunStatus `json:"status"`
}

func (e EventCompletedRun) Kind() EventKind {
	return EventKindCompletedRun
}

type EventStartedRunCancellation struct {
	NamespaceID string `json:"namespace_id"`
	PipelineID  string `json:"pipeline_id"`
	RunID       int64  `json:"run_id"`
}

func (e EventStartedRunCancellation) Kind() EventKind {
	return EventKindStartedRunCancellation
}

type EventCreatedTaskExecution struct {
	NamespaceID     string `json:"namespace_id"`
	PipelineID      string `json:"pipeline_id"`
	RunID           int64  `json:"run_id"`
	TaskExecutionID string `json:"task_execution_id"`
}

func (e EventCreatedTaskExecution) Kind() EventKind {
	return EventKindCreatedTaskExecution
}

type EventStartedTaskExecution struct {
	NamespaceID     string `json:"namespace_id"`
	PipelineID      string `json:"pipeline_id"`
	RunID           int64  `json:"run_id"`
	TaskExecutionID string `json:"task_execution_id"`
}

func (e EventStartedTaskExecution) Kind() EventKind {
	return EventKindStartedTaskExecution
}

type EventCompletedTaskExecution struct {
	NamespaceID     string              `json:"namespace_id"`
	PipelineID      string              `json:"pipeline_id"`
	RunID           int64               `json:"run_id"`
	TaskExecutionID string              `json:"task_execution_id"`
	Status          TaskExecutionStatus `json:"status"`
}

func (e EventCompletedTaskExecution) Kind() EventKind {
	return EventKindCompletedTaskExecution
}

type EventStartedTaskExecutionCancellation struct {
	NamespaceID     string `json:"namespace_id"`
	PipelineID      string `json:"pipeline_id"`
	RunID           int64  `json:"run_id"`
	TaskExecutionID string `json:"task_execution_id"`
	Timeout         int64  `json:"timeout"`
}

func (e EventStartedTaskExecutionCancellation) Kind() EventKind {
	return EventKindStartedTaskExecutionCancellation
}

type EventInstalledExtension struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

func (e EventInstalledExtension) Kind() EventKind {
	return EventKindInstalledExtension
}

type EventUninstalledExtension struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

func (e EventUninstalledExtension) Kind() EventKind {
	return EventKindUninstalledExtension
}

type EventEnabledExtension struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

func (e EventEnabledExtension) Kind() EventKind {
	return EventKindEnabledExtension
}

type EventDisabledExtension struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

func (e EventDisabledExtension) Kind() EventKind {
	return EventKindDisabledExtension
}

type EventPipelineExtensionSubscriptionRegistered struct {
	NamespaceID    string `json:"namespace_id"`
	PipelineID     string `json:"pipeline_id"`
	ExtensionID    string `json:"extension_id"`
	SubscriptionID string `json:"subscription_id"`
}

func (e EventPipelineExtensionSubscriptionRegistered) Kind() EventKind {
	return EventKindPipelineExtensionSubscriptionRegistered
}

type EventPipelineExtensionSubscriptionUnregistered struct {
	NamespaceID    string `json:"namespace_id"`
	PipelineID     string `json:"pipeline_id"`
	ExtensionID    string `json:"extension_id"`
	SubscriptionID string `json:"subscription_id"`
}

func (e EventPipelineExtensionSubscriptionUnregistered) Kind() EventKind {
	return EventKindPipelineExtensionSubscriptionUnregistered
}

type EventCreatedRole struct {
	RoleID string `json:"role_id"`
}

func (e EventCreatedRole) Kind() EventKind {
	return EventKindCreatedRole
}

type EventDeletedRole struct {
	RoleID string `json:"role_id"`
}

func (e EventDeletedRole) Kind() EventKind {
	return EventKindDeletedRole
}

// Maps the kind type into an empty instance of the detail type.
// This allows us to quickly get back the correct type for things
// like json marshalling and unmarshalling.
// Make sure to keep this map in lockstep with the EventKind enum.
var EventKindMap = map[EventKind]EventKindDetails{
	EventKindCreatedNamespace: &EventCreatedNamespace{},
	EventKindDeletedNamespace: &EventDeletedNamespace{},

	EventKindDisabledPipeline: &EventDisabledPipeline{},
	EventKindEnabledPipeline:  &EventEnabledPipeline{},
	EventKindCreatedPipeline:  &EventCreatedPipeline{},
	EventKindDeletedPipeline:  &EventDeletedPipeline{},

	EventKindStartedDeployment:   &EventStartedDeployment{},
	EventKindCompletedDeployment: &EventCompletedDeployment{},

	EventKindQueuedRun:              &EventQueuedRun{},
	EventKindStartedRun:             &EventStartedRun{},
	EventKindCompletedRun:           &EventCompletedRun{},
	EventKindStartedRunCancellation: &EventStartedRunCancellation{},

	EventKindCreatedTaskExecution:             &EventCreatedTaskExecution{},
	EventKindStartedTaskExecution:             &EventStartedTaskExecution{},
	EventKindCompletedTaskExecution:           &EventCompletedTaskExecution{},
	EventKindStartedTaskExecutionCancellation: &EventStartedTaskExecutionCancellation{},

	EventKindInstalledExtension:   &EventInstalledExtension{},
	EventKindUninstalledExtension: &EventUninstalledExtension{},
	EventKindEnabledExtension:     &EventEnabledExtension{},
	EventKindDisabledExtension:    &EventDisabledExtension{},

	EventKindPipelineExtensionSubscriptionRegistered:   &EventPipelineExtensionSubscriptionRegistered{},
	EventKindPipelineExtensionSubscriptionUnregistered: &EventPipelineExtensionSubscriptionUnregistered{},

	EventKindCreatedRole: &EventCreatedRole{},
	EventKindDeletedRole: &EventDeletedRole{},
}

// A single event type
type Event struct {
	// Unique identifier for the event. A UUIDv7, so sorting ids lexicographically yields emission order.
	ID      string           `json:"id" example:"018e8b41-7a8d-7aa3-9d3f-2a0e3c49c2f1" doc:"Unique identifier for the event"`
	Kind    EventKind        `json:"kind" example:"CREATED_NAMESPACE" doc:"The type of event"`
	Details EventKindDetails `json:"details" doc:"A struct of details about the specific event"`
	Emitted uint64           `json:"emitted" example:"1712433802634" doc:"Time event was emitted in epoch milliseconds"`
}

// Events carry their details as an interface, so decoding has to resolve the
// concrete detail type through the kind before unmarshalling the payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Kind    EventKind       `json:"kind"`
		Details json.RawMessage `json:"details"`
		Emitted uint64          `json:"emitted"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	detail := EventKindMap[raw.Kind]
	if detail != nil && len(raw.Details) > 0 {
		if err := json.Unmarshal(raw.Details, &detail); err != nil {
			return err
		}
	}

	e.ID = raw.ID
	e.Kind = raw.Kind
	e.Details = detail
	e.Emitted = raw.Emitted

	return nil
}

func NewEvent(details EventKindDetails) *Event {
	return &Event{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Kind:    details.Kind(),
		Details: details,
		Emitted: uint64(time.Now().UnixMilli()),
	}
}

func (e *Event) ToStorage() *storage.Event {
	details, err := json.Marshal(e.Details)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return &storage.Event{
		ID:      e.ID,
		Kind:    string(e.Kind),
		Details: string(details),
		Emitted: fmt.Sprint(e.Emitted),
	}
}

func (e *Event) FromStorage(evt *storage.Event) {
	detail := EventKindMap[EventKind(evt.Kind)]

	err := json.Unmarshal([]byte(evt.Details), &detail)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	emitted, err := strconv.ParseUint(evt.Emitted, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	e.ID = evt.ID
	e.Kind = EventKind(evt.Kind)
	e.Details = detail
	e.Emitted = emitted
}
