package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/clintjedwards/gofer/internal/scheduler"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
)

const envvarFormat = "%s=%s"

// How long a cancellation entry lives before the reaper evicts it. Generous on purpose;
// a caller might not ask for the container's state until well after it was stopped.
const cancellationExpiry = time.Hour * 72

type Orchestrator struct {
	// cancelled keeps track of cancelled containers. This is needed due to there being no way to
	// differentiate a container that was stopped in docker from a container that exited naturally.
	// When we cancel a container we insert it into this map so that downstream readers of GetState
	// can relay the cancellation to its users.
	//
	// To avoid weird situations in which a container was cancelled, but GetState was never called
	// afterwards(therefore creating a situation in which the cancellation is never removed from the
	// map), we automatically clean up cancellations past their expiry.
	mu        sync.Mutex
	cancelled map[string]time.Time

	*client.Client
}

func New(prune bool, pruneInterval time.Duration) (*Orchestrator, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	// Check connection to docker
	_, err = docker.Info(context.Background())
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker; is docker installed?: %w", scheduler.ErrConnection)
	}

	orch := &Orchestrator{
		Client:    docker,
		cancelled: map[string]time.Time{},
	}

	// As we run docker containers we might not want to automatically remove them so that it's possible
	// for an operator to debug. But we can't leave them lying around forever since each container takes
	// up some amount of space. To mitigate these two things we run ContainersPrune on a loop so that
	// stopped containers are periodically cleaned up.
	if prune {
		go func() {
			for {
				report, err := docker.ContainersPrune(context.Background(), filters.Args{})
				if err != nil {
					log.Debug().Err(err).Msg("docker: could not prune containers")
				}
				log.Debug().Int("containers_deleted", len(report.ContainersDeleted)).
					Uint64("space_reclaimed", report.SpaceReclaimed).Msg("docker: pruned containers")

				time.Sleep(pruneInterval)
			}
		}()
	}

	go func() {
		for {
			orch.reapCancellations()
			time.Sleep(time.Hour)
		}
	}()

	return orch, nil
}

func (orch *Orchestrator) reapCancellations() {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	for container, insertTime := range orch.cancelled {
		if time.Since(insertTime) > cancellationExpiry {
			delete(orch.cancelled, container)
		}
	}
}

func (orch *Orchestrator) markCancelled(id string) {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	orch.cancelled[id] = time.Now()
}

func (orch *Orchestrator) wasCancelled(id string) bool {
	orch.mu.Lock()
	defer orch.mu.Unlock()

	_, exists := orch.cancelled[id]
	return exists
}

func (orch *Orchestrator) StartContainer(req scheduler.StartContainerRequest) (scheduler.StartContainerResponse, error) {
	ctx := context.Background()

	if req.ID == "" || req.ImageName == "" {
		return scheduler.StartContainerResponse{},
			fmt.Errorf("id and image are required: %w", scheduler.ErrFailedPrecondition)
	}

	var dockerRegistryAuth string
	if req.RegistryAuth != nil {
		authConfig := registry.AuthConfig{
			Username: req.RegistryAuth.User,
			Password: req.RegistryAuth.Pass,
		}
		encoded, err := json.Marshal(authConfig)
		if err != nil {
			return scheduler.StartContainerResponse{}, err
		}
		dockerRegistryAuth = base64.URLEncoding.EncodeToString(encoded)
	}

	if req.AlwaysPull {
		r, err := orch.ImagePull(ctx, req.ImageName, types.ImagePullOptions{
			RegistryAuth: dockerRegistryAuth,
		})
		if err != nil {
			if strings.Contains(err.Error(), "manifest unknown") {
				return scheduler.StartContainerResponse{},
					fmt.Errorf("image %q not found or missing auth: %w", req.ImageName, scheduler.ErrNoSuchImage)
			}
			return scheduler.StartContainerResponse{}, err
		}
		_, _ = io.Copy(io.Discard, r) // We wait on the readcloser so that we know when the pull has finished

		defer r.Close() // We don't care about pull logs only the errors
	} else {
		// The existence of a local image is enough; only pull when we have none.
		list, _ := orch.ImageList(ctx, types.ImageListOptions{
			Filters: filters.NewArgs(filters.KeyValuePair{
				Key: "reference", Value: req.ImageName,
			}),
		})

		if len(list) == 0 {
			r, err := orch.ImagePull(ctx, req.ImageName, types.ImagePullOptions{
				RegistryAuth: dockerRegistryAuth,
			})
			if err != nil {
				if strings.Contains(err.Error(), "manifest unknown") {
					return scheduler.StartContainerResponse{},
						fmt.Errorf("image %q not found or missing auth: %w", req.ImageName, scheduler.ErrNoSuchImage)
				}
				return scheduler.StartContainerResponse{}, err
			}
			_, _ = io.Copy(io.Discard, r)

			defer r.Close()
		}
	}

	containerConfig := &container.Config{
		Image:        req.ImageName,
		Env:          convertEnvVars(req.EnvVars),
		ExposedPorts: nat.PortSet{},
	}

	if req.Entrypoint != nil {
		containerConfig.Entrypoint = *req.Entrypoint
	}

	if req.Command != nil {
		containerConfig.Cmd = *req.Command
	}

	hostConfig := &container.HostConfig{}

	if req.EnableNetworking {
		port, err := nat.NewPort("tcp", "8080")
		if err != nil {
			return scheduler.StartContainerResponse{}, err
		}
		containerConfig.ExposedPorts = nat.PortSet{port: struct{}{}}

		hostPortMap := nat.PortBinding{
			HostIP:   "127.0.0.1",
			HostPort: "0", // Automatically allocate a port from freely available ephemeral ports(32768-61000)
		}

		hostConfig.PortBindings = nat.PortMap{
			"8080/tcp": []nat.PortBinding{
				hostPortMap,
			},
		}
	}

	// Remove any previous incarnation so that restarts of long-lived containers are idempotent.
	_ = orch.ContainerRemove(ctx, req.ID, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})

	createResp, err := orch.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, req.ID)
	if err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	err = orch.ContainerStart(ctx, createResp.ID, container.StartOptions{})
	if err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	containerInfo, err := orch.ContainerInspect(ctx, createResp.ID)
	if err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	if req.EnableNetworking && len(containerInfo.NetworkSettings.Ports) == 0 {
		return scheduler.StartContainerResponse{
			SchedulerID: createResp.ID,
		}, fmt.Errorf("could not start container; check logs for errors")
	}

	rawHostPort := nat.PortBinding{}
	if req.EnableNetworking {
		rawHostPort = containerInfo.NetworkSettings.Ports["8080/tcp"][0]
	}

	return scheduler.StartContainerResponse{
		SchedulerID: createResp.ID,
		URL:         fmt.Sprintf("%s:%s", rawHostPort.HostIP, rawHostPort.HostPort),
	}, nil
}

func (orch *Orchestrator) StopContainer(req scheduler.StopContainerRequest) error {
	ctx := context.Background()

	orch.markCancelled(req.ID)

	timeout := int(req.Timeout.Seconds())
	err := orch.ContainerStop(ctx, req.ID, container.StopOptions{
		Timeout: &timeout,
	})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.ErrNoSuchContainer
		}
		return err
	}

	return nil
}

func (orch *Orchestrator) GetState(gs scheduler.GetStateRequest) (scheduler.GetStateResponse, error) {
	containerInfo, err := orch.ContainerInspect(context.Background(), gs.ID)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.GetStateResponse{
				State: scheduler.ContainerStateUnknown,
			}, scheduler.ErrNoSuchContainer
		}

		return scheduler.GetStateResponse{
			State: scheduler.ContainerStateUnknown,
		}, err
	}

	switch containerInfo.State.Status {
	case "created":
		fallthrough
	case "running":
		return scheduler.GetStateResponse{
			State: scheduler.ContainerStateRunning,
		}, nil
	case "paused":
		return scheduler.GetStateResponse{
			State: scheduler.ContainerStatePaused,
		}, nil
	case "restarting":
		return scheduler.GetStateResponse{
			State: scheduler.ContainerStateRestarting,
		}, nil
	case "exited":
		if orch.wasCancelled(gs.ID) {
			return scheduler.GetStateResponse{
				ExitCode: int64(containerInfo.State.ExitCode),
				State:    scheduler.ContainerStateCancelled,
			}, nil
		}

		return scheduler.GetStateResponse{
			ExitCode: int64(containerInfo.State.ExitCode),
			State:    scheduler.ContainerStateExited,
		}, nil
	default:
		log.Debug().Str("state", containerInfo.State.Status).Msg("abnormal container state")
		return scheduler.GetStateResponse{
			State: scheduler.ContainerStateUnknown,
		}, nil
	}
}

// GetLogs streams the logs from a docker container to an io.Reader.
//
// To do this we first have to de-multiplex the docker logs as they start in a custom format
// where both stdout and stderr are part of the same stream. The de-multiplexing is done by
// the StdCopy function that docker provides.
//
// Since we need to de-multiplex the stream, but still stream it to the caller, we pass the
// StdCopy function an io.Pipe which simply works as a single spaced buffer. For every write
// the caller must read before another write can move forward.
func (orch *Orchestrator) GetLogs(gl scheduler.GetLogsRequest) (io.Reader, error) {
	demuxr, demuxw := io.Pipe()

	out, err := orch.ContainerLogs(context.Background(), gl.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return nil, scheduler.ErrNoSuchContainer
		}

		return nil, err
	}

	go func() {
		byteCount, err := stdcopy.StdCopy(demuxw, demuxw, out)
		if err != nil {
			log.Error().Err(err).Msg("docker: could not demultiplex/parse log stream")
		}
		demuxw.Close()
		log.Debug().Int64("bytes written", byteCount).Msg("docker: finished demultiplexing")
	}()

	return demuxr, nil
}

// AttachContainer runs a command inside an already running container and returns both the output
// stream and a writer connected to the command's stdin.
func (orch *Orchestrator) AttachContainer(req scheduler.AttachContainerRequest) (scheduler.AttachContainerResponse, error) {
	ctx := context.Background()

	if len(req.Command) == 0 {
		return scheduler.AttachContainerResponse{},
			fmt.Errorf("command is required: %w", scheduler.ErrFailedPrecondition)
	}

	execResp, err := orch.ContainerExecCreate(ctx, req.ID, types.ExecConfig{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
		Cmd:          req.Command,
	})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.AttachContainerResponse{}, scheduler.ErrNoSuchContainer
		}
		return scheduler.AttachContainerResponse{}, err
	}

	hijacked, err := orch.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{Tty: true})
	if err != nil {
		return scheduler.AttachContainerResponse{}, err
	}

	return scheduler.AttachContainerResponse{
		Output: hijacked.Reader,
		Input:  hijacked.Conn,
	}, nil
}

func convertEnvVars(envvars map[string]string) []string {
	output := []string{}
	for key, value := range envvars {
		output = append(output, fmt.Sprintf(envvarFormat, key, value))
	}

	return output
}
