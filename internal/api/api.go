// Package api controls the bulk of the Gofer API logic.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/clintjedwards/gofer/internal/config"
	"github.com/clintjedwards/gofer/internal/eventbus"
	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/objectStore"
	"github.com/clintjedwards/gofer/internal/scheduler"
	"github.com/clintjedwards/gofer/internal/secretStore"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/clintjedwards/gofer/internal/syncmap"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog/log"
)

const (
	namespaceDefaultID   = "default"
	namespaceDefaultName = "Default"
)

type CancelContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// APIContext represents the main Gofer service. It is run using a single HTTP server and handles
// nearly all interactions with the Gofer service itself. The lone exception is the external events
// endpoint which is run as a separate server so it can be exposed publicly without also exposing
// the rest of the API.
type APIContext struct {
	// Parent context for management goroutines. Used to easily stop goroutines on shutdown.
	context *CancelContext

	// Config represents the relative configuration for the Gofer API. This is a combination of envvars and config values
	// gleaned at startup time.
	config *config.API

	// The main backend storage implementation. Gofer stores most of its critical state information here.
	db storage.DB

	// Scheduler is the mechanism in which Gofer uses to run its individual containers. It leverages that backend
	// scheduler to do most of the work on running the user's task executions(docker containers).
	scheduler scheduler.Engine

	// ObjectStore is the mechanism in which Gofer stores pipeline and run level objects. The implementation here
	// is meant to act as a basic object store.
	objectStore objectStore.Engine

	// SecretStore is the mechanism in which Gofer stores pipeline secrets. This is the way in which users can
	// populate their pipeline configs with secrets.
	secretStore secretStore.Engine

	// Extensions is an in-memory map of currently registered extensions. These extensions are registered on startup
	// and launched as long running containers via the scheduler. Gofer refers to this cache as a way to communicate
	// quickly with the containers and their potentially changing endpoints.
	extensions syncmap.Syncmap[string, *models.Extension]

	// ignorePipelineRunEvents controls if pipelines can start runs globally. If this is set to true the entire Gofer
	// service will not schedule new runs.
	ignorePipelineRunEvents *atomic.Bool

	// events acts as an event bus for the Gofer application. It is used throughout the whole application to give
	// different parts of the application the ability to listen for and respond to events that might happen in other
	// parts.
	events *eventbus.EventBus
}

// NewAPIContext creates a new instance of the main Gofer API service.
func NewAPIContext(conf *config.API, db storage.DB, sched scheduler.Engine, objStore objectStore.Engine,
	secStore secretStore.Engine,
) (*APIContext, error) {
	events, err := eventbus.New(db, conf.EventLogRetention, conf.EventPruneInterval)
	if err != nil {
		return nil, fmt.Errorf("could not init event bus: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	ignorePipelineRunEvents := &atomic.Bool{}
	ignorePipelineRunEvents.Store(conf.IgnorePipelineRunEvents)

	apictx := &APIContext{
		context: &CancelContext{
			ctx:    ctx,
			cancel: cancel,
		},
		config:                  conf,
		db:                      db,
		events:                  events,
		scheduler:               sched,
		objectStore:             objStore,
		secretStore:             secStore,
		extensions:              syncmap.New[string, *models.Extension](),
		ignorePipelineRunEvents: ignorePipelineRunEvents,
	}

	err = apictx.createDefaultNamespace()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("could not create default namespace: %w", err)
	}

	err = apictx.createSystemRoles()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("could not create system roles: %w", err)
	}

	// findOrphans is a repair method that picks up where the gofer service left off if it was shutdown while
	// a run was currently in progress.
	go apictx.findOrphans()

	if conf.Extensions.InstallBaseExtensions {
		err = apictx.installBaseExtensions()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("could not install base extensions: %w", err)
		}
	}

	err = apictx.startExtensions()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("could not start extensions: %w", err)
	}

	err = apictx.restoreExtensionSubscriptions()
	if err != nil {
		apictx.cleanup()
		return nil, fmt.Errorf("could not restore extension subscriptions: %w", err)
	}

	go apictx.healthcheckExtensions()

	return apictx, nil
}

// cleanup gracefully cleans up all goroutines to ensure a clean shutdown.
func (apictx *APIContext) cleanup() {
	apictx.ignorePipelineRunEvents.Store(true)

	// Send graceful stop to all extensions.
	apictx.stopExtensions()

	// Stop all goroutines which should stop the event processing and extension monitoring.
	apictx.context.cancel()
}

// StartAPIService starts the Gofer API service and blocks until a SIGINT or SIGTERM is received.
func (apictx *APIContext) StartAPIService() {
	tlsConfig, err := apictx.generateTLSConfig(apictx.config.Server.TLSCertPath, apictx.config.Server.TLSKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not get proper TLS config")
	}

	router, _ := apictx.initRouter()

	var handler http.Handler = router
	if apictx.config.DevMode {
		handler = handlers.LoggingHandler(os.Stdout, router)
	}

	httpServer := http.Server{
		Addr:         apictx.config.Server.Host,
		Handler:      handler,
		WriteTimeout: 0, // Some routes hold long-lived streams; route level timeouts protect the rest.
		ReadTimeout:  0,
		TLSConfig:    tlsConfig,
	}

	if apictx.config.ExternalEventsAPI.Enable {
		go apictx.startExternalEventsService()
	}

	// Run our server in a goroutine and listen for signals that indicate graceful shutdown.
	go func() {
		if err := httpServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server exited abnormally")
		}
	}()
	log.Info().Str("url", apictx.config.Server.Host).Msg("started gofer http service")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	<-c

	// On ctrl-c we need to clean up not only the connections from the server, but also make sure all the
	// currently running jobs are logged and exited properly.
	apictx.cleanup()

	// Doesn't block if no connections, otherwise will wait until the timeout deadline or connections to finish,
	// whichever comes first.
	ctx, cancel := context.WithTimeout(context.Background(), apictx.config.Server.ShutdownTimeout) // shutdown gracefully
	defer cancel()

	err = httpServer.Shutdown(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not shutdown server in timeout specified")
		return
	}

	log.Info().Msg("http server exited gracefully")
}

// initRouter registers all endpoints with the router. It returns the router itself for mounting into
// an HTTP server and the api description object, useful for generating an OpenAPI spec.
func (apictx *APIContext) initRouter() (router *chi.Mux, apiDesc huma.API) {
	router = chi.NewRouter()

	humaConfig := huma.DefaultConfig("Gofer", appVersion)
	humaConfig.DocsPath = "/api/docs"
	humaConfig.OpenAPIPath = "/api/docs/openapi"

	apiDesc = humachi.New(router, humaConfig)
	apiDesc.UseMiddleware(authMiddleware(apictx, apiDesc))

	/* /api/system */
	apictx.registerDescribeSystemInfo(apiDesc)
	apictx.registerDescribeSystemSummary(apiDesc)
	apictx.registerToggleEventIngress(apiDesc)
	apictx.registerRepairOrphan(apiDesc)

	/* /api/namespaces */
	apictx.registerCreateNamespace(apiDesc)
	apictx.registerListNamespaces(apiDesc)
	apictx.registerDescribeNamespace(apiDesc)
	apictx.registerUpdateNamespace(apiDesc)
	apictx.registerDeleteNamespace(apiDesc)

	/* /api/pipelines */
	apictx.registerListPipelines(apiDesc)
	apictx.registerDescribePipeline(apiDesc)
	apictx.registerEnablePipeline(apiDesc)
	apictx.registerDisablePipeline(apiDesc)
	apictx.registerDeletePipeline(apiDesc)

	/* /api/pipelines/{pipeline_id}/configs */
	apictx.registerRegisterPipelineConfig(apiDesc)
	apictx.registerListPipelineConfigs(apiDesc)
	apictx.registerDescribePipelineConfig(apiDesc)
	apictx.registerDeletePipelineConfig(apiDesc)

	/* /api/pipelines/{pipeline_id}/deployments */
	apictx.registerDeployPipeline(apiDesc)
	apictx.registerListDeployments(apiDesc)
	apictx.registerDescribeDeployment(apiDesc)

	/* /api/pipelines/{pipeline_id}/runs */
	apictx.registerStartRun(apiDesc)
	apictx.registerListRuns(apiDesc)
	apictx.registerDescribeRun(apiDesc)
	apictx.registerCancelRun(apiDesc)
	apictx.registerCancelAllRuns(apiDesc)

	/* /api/pipelines/{pipeline_id}/runs/{run_id}/tasks */
	apictx.registerListTaskExecutions(apiDesc)
	apictx.registerDescribeTaskExecution(apiDesc)
	apictx.registerCancelTaskExecution(apiDesc)
	apictx.registerDeleteTaskExecutionLogs(apiDesc)

	/* /api/events */
	apictx.registerListEvents(apiDesc)
	apictx.registerDescribeEvent(apiDesc)

	/* /api/extensions */
	apictx.registerInstallExtension(apiDesc)
	apictx.registerUninstallExtension(apiDesc)
	apictx.registerEnableExtension(apiDesc)
	apictx.registerDisableExtension(apiDesc)
	apictx.registerDescribeExtension(apiDesc)
	apictx.registerListExtensions(apiDesc)

	/* /api/pipelines/{pipeline_id}/extensions */
	apictx.registerSubscribePipelineExtension(apiDesc)
	apictx.registerUnsubscribePipelineExtension(apiDesc)
	apictx.registerListPipelineExtensionSubscriptions(apiDesc)

	/* /api/objects */
	apictx.registerListPipelineObjects(apiDesc)
	apictx.registerGetPipelineObject(apiDesc)
	apictx.registerPutPipelineObject(apiDesc)
	apictx.registerDeletePipelineObject(apiDesc)
	apictx.registerListRunObjects(apiDesc)
	apictx.registerGetRunObject(apiDesc)
	apictx.registerPutRunObject(apiDesc)

	/* /api/secrets */
	apictx.registerListGlobalSecrets(apiDesc)
	apictx.registerGetGlobalSecret(apiDesc)
	apictx.registerPutGlobalSecret(apiDesc)
	apictx.registerDeleteGlobalSecret(apiDesc)
	apictx.registerListPipelineSecrets(apiDesc)
	apictx.registerGetPipelineSecret(apiDesc)
	apictx.registerPutPipelineSecret(apiDesc)
	apictx.registerDeletePipelineSecret(apiDesc)

	/* /api/tokens */
	apictx.registerCreateToken(apiDesc)
	apictx.registerBootstrapToken(apiDesc)
	apictx.registerListTokens(apiDesc)
	apictx.registerDescribeToken(apiDesc)
	apictx.registerEnableToken(apiDesc)
	apictx.registerDisableToken(apiDesc)
	apictx.registerDeleteToken(apiDesc)

	/* /api/roles */
	apictx.registerCreateRole(apiDesc)
	apictx.registerListRoles(apiDesc)
	apictx.registerDescribeRole(apiDesc)
	apictx.registerUpdateRole(apiDesc)
	apictx.registerDeleteRole(apiDesc)

	// Websocket endpoints cannot be expressed as huma operations, so they hang off the raw router.
	router.Get("/api/pipelines/{pipeline_id}/runs/{run_id}/tasks/{task_execution_id}/logs", apictx.getTaskExecutionLogsHandler)
	router.Get("/api/pipelines/{pipeline_id}/runs/{run_id}/tasks/{task_execution_id}/attach", apictx.attachToTaskExecutionHandler)
	router.Get("/api/events/stream", apictx.streamEventsHandler)

	return router, apiDesc
}

// Gofer starts with a default namespace that all users have access to.
func (apictx *APIContext) createDefaultNamespace() error {
	namespace := models.NewNamespace(namespaceDefaultID, namespaceDefaultName, "default namespace")
	err := apictx.db.InsertNamespace(apictx.db.Write(), namespace.ToStorage())
	if err != nil {
		if errors.Is(err, storage.ErrEntityExists) {
			return nil
		}

		return err
	}

	apictx.events.Publish(models.EventCreatedNamespace{
		NamespaceID: namespace.ID,
	})

	return nil
}

// findOrphans is run on startup to attempt to recover any runs that were cut short by an ungraceful
// shutdown. Gofer identifies runs that haven't fully completed by searching the event history for
// runs that started but never emitted a completion event.
func (apictx *APIContext) findOrphans() {
	type orphanKey struct {
		namespace string
		pipeline  string
		run       int64
	}

	events := apictx.events.GetAll(false)
	orphanedRuns := map[orphanKey]struct{}{}

	for event := range events {
		switch evt := event.Details.(type) {
		case *models.EventStartedRun:
			orphanedRuns[orphanKey{
				namespace: evt.NamespaceID,
				pipeline:  evt.PipelineID,
				run:       evt.RunID,
			}] = struct{}{}

		case *models.EventCompletedRun:
			delete(orphanedRuns, orphanKey{
				namespace: evt.NamespaceID,
				pipeline:  evt.PipelineID,
				run:       evt.RunID,
			})
		}
	}

	for orphan := range orphanedRuns {
		log.Info().Str("namespace", orphan.namespace).Str("pipeline", orphan.pipeline).
			Int64("run", orphan.run).Msg("attempting to complete orphaned run")

		err := apictx.repairOrphanRun(orphan.namespace, orphan.pipeline, orphan.run)
		if err != nil {
			log.Error().Err(err).Str("namespace", orphan.namespace).
				Str("pipeline", orphan.pipeline).Int64("run", orphan.run).Msg("could not repair orphan run")
		}
	}
}

// repairOrphanRun allows gofer to repair runs that were orphaned by a sudden shutdown.
//
//   - If a task execution was running: ask the scheduler for its last known state and finish it out.
//   - If a task execution never made it past scheduling: mark it as orphaned since its in-memory
//     state machine is gone.
//   - Once all task executions are resolved, summarize them into a final run status.
func (apictx *APIContext) repairOrphanRun(namespaceID, pipelineID string, runID int64) error {
	runRaw, err := apictx.db.GetRun(apictx.db.Read(), namespaceID, pipelineID, runID)
	if err != nil {
		return err
	}

	var run models.Run
	run.FromStorage(&runRaw)

	taskExecutionsRaw, err := apictx.db.ListTaskExecutions(apictx.db.Read(), 0, 0, namespaceID, pipelineID, runID)
	if err != nil {
		return err
	}

	taskExecutions := []models.TaskExecution{}
	for _, taskExecutionRaw := range taskExecutionsRaw {
		var taskExecution models.TaskExecution
		taskExecution.FromStorage(&taskExecutionRaw)
		taskExecutions = append(taskExecutions, taskExecution)
	}

	for _, taskExecution := range taskExecutions {
		taskExecution := taskExecution
		if taskExecution.State == models.TaskExecutionStateComplete {
			continue
		}

		// If the task execution was mid-flight we ask the scheduler what actually happened to the container.
		if taskExecution.State == models.TaskExecutionStateRunning {
			resp, err := apictx.scheduler.GetState(scheduler.GetStateRequest{
				ID: taskContainerID(namespaceID, pipelineID, runID, taskExecution.ID),
			})
			if err == nil && resp.State != scheduler.ContainerStateRunning {
				status := models.TaskExecutionStatusSuccessful
				if resp.State == scheduler.ContainerStateCancelled {
					status = models.TaskExecutionStatusCancelled
				} else if resp.ExitCode != 0 {
					status = models.TaskExecutionStatusFailed
				}

				err = apictx.db.UpdateTaskExecution(apictx.db.Write(), namespaceID, pipelineID, runID, taskExecution.ID,
					storage.UpdatableTaskExecutionFields{
						State:    ptr(string(models.TaskExecutionStateComplete)),
						Status:   ptr(string(status)),
						ExitCode: ptr(resp.ExitCode),
						Ended:    ptr(fmt.Sprint(time.Now().UnixMilli())),
					})
				if err != nil {
					log.Error().Err(err).Str("task", taskExecution.ID).Msg("could not update task execution during orphan repair")
				}
				continue
			}
		}

		// Anything else lost its state machine when the service went down; the container state is unknowable.
		statusReason := models.TaskExecutionStatusReason{
			Reason:      models.TaskExecutionStatusReasonKindOrphaned,
			Description: "Gofer has lost track of this task execution and it must be manually resolved",
		}

		err = apictx.db.UpdateTaskExecution(apictx.db.Write(), namespaceID, pipelineID, runID, taskExecution.ID,
			storage.UpdatableTaskExecutionFields{
				State:        ptr(string(models.TaskExecutionStateComplete)),
				Status:       ptr(string(models.TaskExecutionStatusFailed)),
				StatusReason: ptr(statusReason.ToJSON()),
				Ended:        ptr(fmt.Sprint(time.Now().UnixMilli())),
			})
		if err != nil {
			log.Error().Err(err).Str("task", taskExecution.ID).Msg("could not update task execution during orphan repair")
		}
	}

	if run.State != models.RunStateComplete {
		statusReason := models.RunStatusReason{
			Reason:      models.RunStatusReasonKindUnknown,
			Description: "Gofer has lost track of this run and it has been closed out during orphan repair",
		}

		status := models.RunStatusFailed
		err = apictx.db.UpdateRun(apictx.db.Write(), namespaceID, pipelineID, runID, storage.UpdatableRunFields{
			State:        ptr(string(models.RunStateComplete)),
			Status:       ptr(string(status)),
			StatusReason: ptr(statusReason.ToJSON()),
			Ended:        ptr(fmt.Sprint(time.Now().UnixMilli())),
		})
		if err != nil {
			return err
		}

		apictx.events.Publish(models.EventCompletedRun{
			NamespaceID: namespaceID,
			PipelineID:  pipelineID,
			RunID:       runID,
			Status:      status,
		})
	}

	return nil
}
