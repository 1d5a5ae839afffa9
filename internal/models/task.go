package models

import (
	"encoding/json"
	"strings"

	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/rs/zerolog/log"
)

type RequiredParentStatus string

const (
	RequiredParentStatusUnknown RequiredParentStatus = "UNKNOWN"
	RequiredParentStatusAny     RequiredParentStatus = "ANY"
	RequiredParentStatusSuccess RequiredParentStatus = "SUCCESS"
	RequiredParentStatusFailure RequiredParentStatus = "FAILURE"
)

func (s *RequiredParentStatus) FromStr(input string) RequiredParentStatus {
	switch strings.ToLower(input) {
	case "unknown":
		return RequiredParentStatusUnknown
	case "any":
		return RequiredParentStatusAny
	case "success":
		return RequiredParentStatusSuccess
	case "failure":
		return RequiredParentStatusFailure
	default:
		return RequiredParentStatusUnknown
	}
}

// A task is the smallest unit of work in a pipeline; a single container execution.
// Parents are referenced by id only through DependsOn; the run machinery resolves
// readiness through the run's shared status map, never through object pointers.
type Task struct {
	ID           string                          `json:"id" example:"my_task" doc:"Unique identifier for the task"`
	Description  string                          `json:"description" doc:"A short description on the what the task is used for"`
	Image        string                          `json:"image" example:"ubuntu:latest" doc:"Which container image to run for this task"`
	RegistryAuth *RegistryAuth                   `json:"registry_auth" doc:"Auth credentials for the image's registry"`
	DependsOn    map[string]RequiredParentStatus `json:"depends_on" doc:"Mapping of parent task id to the parent status required before this task may run"`
	Variables    []Variable                      `json:"variables" doc:"Variables which will be passed in as env vars to the task"`
	Entrypoint   *[]string                       `json:"entrypoint" doc:"Overrides the container image's entrypoint"`
	Command      *[]string                       `json:"command" doc:"Overrides the container image's command"`
	// Allows users to tell gofer to auto-create and inject an API Token into the task. If this setting is
	// found, Gofer creates an API key for the run (stored in the user's secret store) and then injects it
	// for this run under the environment variable "GOFER_API_TOKEN". The key is automatically revoked when
	// Gofer cleans up the Run's objects.
	InjectAPIToken bool `json:"inject_api_token" doc:"Whether to inject a run scoped API token into this task"`
}

func (r *Task) ToStorage(namespace, pipeline string, version int64) *storage.Task {
	var regAuth string
	if r.RegistryAuth != nil {
		regAuth = r.RegistryAuth.ToStorage()
	}

	dependsOn, err := json.Marshal(r.DependsOn)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	variables, err := json.Marshal(r.Variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	var entrypoint []byte
	if r.Entrypoint != nil {
		entrypoint, err = json.Marshal(r.Entrypoint)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating to storage")
		}
	}

	var command []byte
	if r.Command != nil {
		command, err = json.Marshal(r.Command)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating to storage")
		}
	}

	return &storage.Task{
		Namespace:             namespace,
		Pipeline:              pipeline,
		PipelineConfigVersion: version,
		ID:                    r.ID,
		Description:           r.Description,
		Image:                 r.Image,
		RegistryAuth:          regAuth,
		DependsOn:             string(dependsOn),
		Variables:             string(variables),
		Entrypoint:            string(entrypoint),
		Command:               string(command),
		InjectAPIToken:        r.InjectAPIToken,
	}
}

func (r *Task) FromStorage(t *storage.Task) {
	var regAuth *RegistryAuth
	regAuth = regAuth.FromStorage(t.RegistryAuth)

	var dependsOn map[string]RequiredParentStatus

	err := json.Unmarshal([]byte(t.DependsOn), &dependsOn)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var variables []Variable

	err = json.Unmarshal([]byte(t.Variables), &variables)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	var entrypoint *[]string
	if t.Entrypoint != "" {
		var list []string
		err = json.Unmarshal([]byte(t.Entrypoint), &list)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
		entrypoint = &list
	}

	var command *[]string
	if t.Command != "" {
		var list []string
		err = json.Unmarshal([]byte(t.Command), &list)
		if err != nil {
			log.Fatal().Err(err).Msg("error in translating from storage")
		}
		command = &list
	}

	r.ID = t.ID
	r.Description = t.Description
	r.Image = t.Image
	r.RegistryAuth = regAuth
	r.DependsOn = dependsOn
	r.Variables = variables
	r.Entrypoint = entrypoint
	r.Command = command
	r.InjectAPIToken = t.InjectAPIToken
}
