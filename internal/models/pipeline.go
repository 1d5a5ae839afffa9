package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/rs/zerolog/log"
)

type PipelineState string

const (
	PipelineStateUnknown  PipelineState = "UNKNOWN"
	PipelineStateActive   PipelineState = "ACTIVE"
	PipelineStateDisabled PipelineState = "DISABLED"
)

// Details about the pipeline itself, not including the configuration that the user can change.
// All these values are changed by the system or never changed at all. This sits in contrast to
// the config which the user can change freely.
type PipelineMetadata struct {
	Namespace string `json:"namespace" example:"default" doc:"Unique identifier of the target namespace"`
	ID        string `json:"id" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	Created   uint64 `json:"created" example:"1712433802634" doc:"Time of pipeline creation in epoch milliseconds"`
	Modified  uint64 `json:"modified" example:"1712433802634" doc:"Time pipeline was updated to a new version in epoch milliseconds"`
	// The current running state of the pipeline. This is used to determine if the pipeline should
	// continue to process runs or not and properly convey that to the user.
	State PipelineState `json:"state" example:"ACTIVE" doc:"The current running state of the pipeline"`
}

func NewPipelineMetadata(namespace, id string) *PipelineMetadata {
	return &PipelineMetadata{
		Namespace: namespace,
		ID:        id,
		Created:   uint64(time.Now().UnixMilli()),
		Modified:  uint64(time.Now().UnixMilli()),
		State:     PipelineStateActive,
	}
}

func (p *PipelineMetadata) ToStorage() *storage.PipelineMetadata {
	return &storage.PipelineMetadata{
		Namespace: p.Namespace,
		ID:        p.ID,
		Created:   fmt.Sprint(p.Created),
		Modified:  fmt.Sprint(p.Modified),
		State:     string(p.State),
	}
}

func (p *PipelineMetadata) FromStorage(sp *storage.PipelineMetadata) {
	created, err := strconv.ParseUint(sp.Created, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	modified, err := strconv.ParseUint(sp.Modified, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	p.Namespace = sp.Namespace
	p.ID = sp.ID
	p.Created = created
	p.Modified = modified
	p.State = PipelineState(sp.State)
}

type PipelineConfigState string

const (
	PipelineConfigStateUnknown    PipelineConfigState = "UNKNOWN"
	PipelineConfigStateUnreleased PipelineConfigState = "UNRELEASED" // Has never been deployed.
	PipelineConfigStateLive       PipelineConfigState = "LIVE"       // Currently deployed.
	PipelineConfigStateDeprecated PipelineConfigState = "DEPRECATED" // Has previously been deployed and is now defunct.
)

// A representation of the user's configuration settings for a particular pipeline.
type PipelineConfig struct {
	Namespace   string `json:"namespace" example:"default" doc:"Unique identifier of the target namespace"`
	Pipeline    string `json:"pipeline" example:"simple_pipeline" doc:"Unique identifier of the target pipeline"`
	Version     int64  `json:"version" example:"42" doc:"Increments every time the pipeline's config is updated"`
	Parallelism int64  `json:"parallelism" example:"2" doc:"Controls how many runs can be active at any single time; 0 defers to the global limit"`
	Name        string `json:"name" example:"Simple Pipeline" doc:"Humanized name for the pipeline"`
	Description string `json:"description" doc:"Description of the pipeline's purpose and other details"`
	// Map for quickly finding pipeline tasks and assists with DAG generation.
	Tasks map[string]Task `json:"tasks" doc:"The task set of the pipeline keyed by task id"`
	// The deploy state of this specific version; at most one version per pipeline may be live.
	State      PipelineConfigState `json:"state" example:"LIVE" doc:"The deploy state of this config version"`
	Registered uint64              `json:"registered" example:"1712433802634" doc:"Time config version was registered in epoch milliseconds"`
	// If the config's state is "deprecated" we note the time it was so we know which is the oldest defunct version.
	Deprecated uint64 `json:"deprecated" example:"1712433802634" doc:"Time config version was deprecated in epoch milliseconds"`
}

func NewPipelineConfig(namespace, pipeline string, version int64, name, description string,
	parallelism int64, tasks map[string]Task,
) *PipelineConfig {
	return &PipelineConfig{
		Namespace:   namespace,
		Pipeline:    pipeline,
		Version:     version,
		Parallelism: parallelism,
		Name:        name,
		Description: description,
		Tasks:       tasks,
		State:       PipelineConfigStateUnreleased,
		Registered:  uint64(time.Now().UnixMilli()),
		Deprecated:  0,
	}
}

func (pc *PipelineConfig) ToStorage() (*storage.PipelineConfig, []*storage.Task) {
	pipelineConfig := &storage.PipelineConfig{
		Namespace:   pc.Namespace,
		Pipeline:    pc.Pipeline,
		Version:     pc.Version,
		Parallelism: pc.Parallelism,
		Name:        pc.Name,
		Description: pc.Description,
		Registered:  fmt.Sprint(pc.Registered),
		Deprecated:  fmt.Sprint(pc.Deprecated),
		State:       string(pc.State),
	}

	tasks := []*storage.Task{}

	for _, task := range pc.Tasks {
		tasks = append(tasks, task.ToStorage(pc.Namespace, pc.Pipeline, pc.Version))
	}

	return pipelineConfig, tasks
}

func (pc *PipelineConfig) FromStorage(spc *storage.PipelineConfig, sts *[]storage.Task) {
	tasks := map[string]Task{}

	for _, storageTask := range *sts {
		var task Task
		task.FromStorage(&storageTask)
		tasks[storageTask.ID] = task
	}

	registered, err := strconv.ParseUint(spc.Registered, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	deprecated, err := strconv.ParseUint(spc.Deprecated, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	pc.Namespace = spc.Namespace
	pc.Pipeline = spc.Pipeline
	pc.Version = spc.Version
	pc.Parallelism = spc.Parallelism
	pc.Name = spc.Name
	pc.Description = spc.Description
	pc.Tasks = tasks
	pc.State = PipelineConfigState(spc.State)
	pc.Registered = registered
	pc.Deprecated = deprecated
}
