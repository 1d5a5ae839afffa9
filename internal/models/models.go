// Package models contains Gofer's domain objects. Each type that persists carries a
// ToStorage/FromStorage pair translating between the rich form and the flattened
// storage rows (times as decimal epoch-milli strings, compound fields as JSON text).
package models

import (
	"crypto/rand"
	"encoding/json"
	"math/big"

	"github.com/rs/zerolog/log"
)

type VariableSource string

const (
	VariableSourceUnknown        VariableSource = "UNKNOWN"
	VariableSourcePipelineConfig VariableSource = "PIPELINE_CONFIG"
	VariableSourceSystem         VariableSource = "SYSTEM"
	VariableSourceRunOptions     VariableSource = "RUN_OPTIONS"
	VariableSourceExtension      VariableSource = "EXTENSION"
)

// A variable is a key value pair that is used either in a run or task level.
// The variable is inserted as an environment variable to an eventual task execution.
// It can be owned by different parts of the system which control where the potentially
// sensitive variables might show up.
type Variable struct {
	Key    string         `json:"key" example:"GOFER_PIPELINE_ID" doc:"The key of the environment variable"`
	Value  string         `json:"value" example:"simple_pipeline" doc:"The value of the environment variable"`
	Source VariableSource `json:"source" example:"PIPELINE_CONFIG" doc:"Which part of the system this variable originated from"`
}

type RegistryAuth struct {
	User string `json:"user" example:"some_user" doc:"Registry username"`
	Pass string `json:"pass" example:"some_pass" doc:"Registry password"`
}

func (t *RegistryAuth) ToStorage() string {
	if t == nil {
		return ""
	}

	output, err := json.Marshal(t)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return string(output)
}

func (t *RegistryAuth) FromStorage(s string) *RegistryAuth {
	if s == "" {
		return nil
	}

	auth := RegistryAuth{}
	err := json.Unmarshal([]byte(s), &auth)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	return &auth
}

const allowedChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateID returns a cryptographically random alphanumeric string of the given length.
func generateID(length int) string {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(allowedChars))))
		if err != nil {
			log.Fatal().Err(err).Msg("could not generate random id")
		}
		b[i] = allowedChars[n.Int64()]
	}
	return string(b)
}
