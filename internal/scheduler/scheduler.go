// Package scheduler defines the interface in which a scheduler must adhere to. A scheduler is the
// mechanism in which gofer launches and manages containers for task executions and extensions.
package scheduler

import (
	"errors"
	"io"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
)

type EngineType string

const (
	// EngineDocker uses local docker instance to schedule tasks.
	EngineDocker EngineType = "docker"
)

type ContainerState string

const (
	ContainerStateUnknown    ContainerState = "UNKNOWN" // The state of the container is unknown.
	ContainerStateRunning    ContainerState = "RUNNING" // Currently running; includes containers created but not yet started.
	ContainerStatePaused     ContainerState = "PAUSED"  // Container is paused.
	ContainerStateRestarting ContainerState = "RESTARTING"
	ContainerStateExited     ContainerState = "EXITED"    // Container has finished running and returned an exit code.
	ContainerStateCancelled  ContainerState = "CANCELLED" // Container was stopped by request.
)

// ErrFailedPrecondition is returned when a request was invalid before it ever reached the
// underlying engine.
var ErrFailedPrecondition = errors.New("scheduler: request validation failure")

// ErrConnection is returned when the underlying engine could not be reached.
var ErrConnection = errors.New("scheduler: could not connect to engine")

// ErrNoSuchContainer is returned when a container requested could not be located on the scheduler.
var ErrNoSuchContainer = errors.New("scheduler: container not found")

// ErrNoSuchImage is returned when the requested container image could not be pulled.
var ErrNoSuchImage = errors.New("scheduler: image not found")

type StartContainerRequest struct {
	ID           string               // Unique identifier for the container.
	ImageName    string               // The container image repository endpoint; tag can be included.
	EnvVars      map[string]string    // Environment variables to be passed to the container.
	RegistryAuth *models.RegistryAuth // User/Pass for the image's registry.

	// Even if the container exists attempt to pull from repository. This is useful if your containers
	// don't use proper tagging or versioning.
	AlwaysPull bool

	// Networking is used to communicate with the container over HTTP. This is only needed by extensions.
	EnableNetworking bool

	Entrypoint *[]string
	Command    *[]string
}

type StartContainerResponse struct {
	SchedulerID string // The underlying engine's identifier for the container.
	URL         string // Optional endpoint if "EnableNetworking" was used.
}

type StopContainerRequest struct {
	ID string // Unique identifier for the container.

	// The total time the scheduler should wait for a graceful stop before issuing a SIGKILL.
	// A timeout of 0 kills the container immediately.
	Timeout time.Duration
}

type GetStateRequest struct {
	ID string // Unique identifier for the container.
}

type GetStateResponse struct {
	ExitCode int64 // Only meaningful when state is EXITED.
	State    ContainerState
}

type GetLogsRequest struct {
	ID string // Unique identifier for the container.
}

type AttachContainerRequest struct {
	ID      string   // Unique identifier for the container.
	Command []string // The command to run inside the container.
}

type AttachContainerResponse struct {
	Output io.Reader
	Input  io.WriteCloser
}

type Engine interface {
	// StartContainer launches a new container on scheduler. If a container with the same id already
	// exists it is forcibly removed first so that long-lived containers can be restarted idempotently.
	StartContainer(request StartContainerRequest) (response StartContainerResponse, err error)

	// StopContainer attempts to stop a specific container identified by a unique container name. The scheduler
	// should attempt to gracefully stop the container, unless the timeout is reached. Stopped containers must
	// be reported as cancelled by GetState for a bounded interval afterwards so callers can tell a
	// cancellation apart from a natural exit.
	StopContainer(request StopContainerRequest) error

	// GetState returns the current state of the container translated to the scheduler.ContainerState enum.
	GetState(request GetStateRequest) (response GetStateResponse, err error)

	// GetLogs reads logs from the container and passes them back to the caller via an io.Reader. The reader
	// is fed from a goroutine so that the caller gets logs as they are streamed from the container, and is
	// closed with an EOF once the container exits.
	GetLogs(request GetLogsRequest) (logs io.Reader, err error)

	// AttachContainer runs a command inside a running container and hands back both sides of the
	// resulting stream.
	AttachContainer(request AttachContainerRequest) (response AttachContainerResponse, err error)
}
