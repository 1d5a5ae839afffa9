package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
)

// GOFEREOF is a special string marker appended as the final line of a task execution's log file.
// Consumers streaming the file use it to know when no further lines will ever be written.
const GOFEREOF = "GOFER_EOF"

func ptr[T any](v T) *T {
	return &v
}

// timeNowMilliStr returns the current epoch milliseconds as a string, the format time is stored in
// for most database columns.
func timeNowMilliStr() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// parseUint leniently converts a stored epoch milliseconds string back into a number. Unset
// columns come back as zero.
func parseUint(value string) uint64 {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}

	return parsed
}

// taskContainerID returns the deterministic container name for a task execution. Being deterministic
// allows us to ask the scheduler about a container without having stored any scheduler specific id.
func taskContainerID(namespace, pipeline string, run int64, task string) string {
	return fmt.Sprintf("%s_%s_%d_%s", namespace, pipeline, run, task)
}

// extensionContainerID returns the deterministic container name for an extension container.
func extensionContainerID(id string) string {
	return fmt.Sprintf("extension_%s", id)
}

// Object and secret store keys are flattened into a single namespace-qualified string so any
// key value store can serve as the backend.

func pipelineObjectKey(namespace, pipeline, key string) string {
	return fmt.Sprintf("%s_%s_%s", namespace, pipeline, key)
}

func runObjectKey(namespace, pipeline string, run int64, key string) string {
	return fmt.Sprintf("%s_%s_%d_%s", namespace, pipeline, run, key)
}

func extensionObjectKey(extension, key string) string {
	return fmt.Sprintf("extension_%s_%s", extension, key)
}

func pipelineSecretKey(namespace, pipeline, key string) string {
	return fmt.Sprintf("%s_%s_%s", namespace, pipeline, key)
}

func globalSecretKey(key string) string {
	return fmt.Sprintf("global_secret_%s", key)
}

// taskExecutionLogFilePath returns the file path for a task execution's logs on local disk.
func taskExecutionLogFilePath(dir, namespace, pipeline string, run int64, task string) string {
	return fmt.Sprintf("%s/%s_%s_%d_%s.log", dir, namespace, pipeline, run, task)
}

func convertVarsToMap(vars []models.Variable) map[string]string {
	converted := map[string]string{}
	for _, variable := range vars {
		converted[variable.Key] = variable.Value
	}

	return converted
}

func convertVarsToSlice(vars map[string]string, source models.VariableSource) []models.Variable {
	converted := []models.Variable{}
	for key, value := range vars {
		converted = append(converted, models.Variable{
			Key:    key,
			Value:  value,
			Source: source,
		})
	}

	return converted
}
