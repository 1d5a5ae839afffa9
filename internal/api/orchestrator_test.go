package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clintjedwards/gofer/internal/config"
	"github.com/clintjedwards/gofer/internal/eventbus"
	"github.com/clintjedwards/gofer/internal/models"
	objectsqlite "github.com/clintjedwards/gofer/internal/objectStore/sqlite"
	"github.com/clintjedwards/gofer/internal/scheduler"
	secretsqlite "github.com/clintjedwards/gofer/internal/secretStore/sqlite"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/clintjedwards/gofer/internal/syncmap"
)

// stubScheduler pretends to be a container engine. Each task id maps to an exit code; tasks in
// the running set report as still in progress until released with finish.
type stubScheduler struct {
	mu        sync.Mutex
	exitCodes map[string]int64
	running   map[string]bool
	started   map[string]bool
}

func newStubScheduler(exitCodes map[string]int64) *stubScheduler {
	return &stubScheduler{
		exitCodes: exitCodes,
		running:   map[string]bool{},
		started:   map[string]bool{},
	}
}

// taskFor maps a container id back to the task id it was started for. Test task ids never
// contain underscores, so a simple suffix match is enough.
func (s *stubScheduler) taskFor(containerID string) (string, bool) {
	for task := range s.exitCodes {
		if strings.HasSuffix(containerID, "_"+task) {
			return task, true
		}
	}

	return "", false
}

func (s *stubScheduler) markRunning(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[task] = true
}

func (s *stubScheduler) finish(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[task] = false
}

func (s *stubScheduler) hasStarted(task string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for containerID := range s.started {
		if strings.HasSuffix(containerID, "_"+task) {
			return true
		}
	}

	return false
}

func (s *stubScheduler) StartContainer(request scheduler.StartContainerRequest) (
	scheduler.StartContainerResponse, error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[request.ID] = true

	return scheduler.StartContainerResponse{SchedulerID: request.ID}, nil
}

func (s *stubScheduler) StopContainer(_ scheduler.StopContainerRequest) error {
	return nil
}

func (s *stubScheduler) GetState(request scheduler.GetStateRequest) (scheduler.GetStateResponse, error) {
	task, found := s.taskFor(request.ID)
	if !found {
		return scheduler.GetStateResponse{State: scheduler.ContainerStateUnknown}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[task] {
		return scheduler.GetStateResponse{State: scheduler.ContainerStateRunning}, nil
	}

	return scheduler.GetStateResponse{
		State:    scheduler.ContainerStateExited,
		ExitCode: s.exitCodes[task],
	}, nil
}

func (s *stubScheduler) GetLogs(_ scheduler.GetLogsRequest) (io.Reader, error) {
	return strings.NewReader("hello from the stub\n"), nil
}

func (s *stubScheduler) AttachContainer(_ scheduler.AttachContainerRequest) (
	scheduler.AttachContainerResponse, error,
) {
	return scheduler.AttachContainerResponse{}, errors.New("not supported")
}

// newOrchestratorHarness builds an APIContext wired to temp storage and the given stub engine,
// skipping the server side concerns (extension startup, orphan scan) that a full boot performs.
func newOrchestratorHarness(t *testing.T, sched scheduler.Engine) *APIContext {
	t.Helper()

	tmp := t.TempDir()

	conf := config.DefaultAPIConfig()
	conf.TaskExecutionLogsDir = tmp

	db, err := storage.New(fmt.Sprintf("%s/gofer.db", tmp), 200)
	if err != nil {
		t.Fatal(err)
	}

	events, err := eventbus.New(db, time.Hour, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	objStore, err := objectsqlite.New(fmt.Sprintf("%s/object.db", tmp))
	if err != nil {
		t.Fatal(err)
	}

	secStore, err := secretsqlite.New(fmt.Sprintf("%s/secret.db", tmp), "test32chartestkeytest32chartestk")
	if err != nil {
		t.Fatal(err)
	}

	return &APIContext{
		config:                  conf,
		db:                      db,
		events:                  events,
		scheduler:               sched,
		objectStore:             &objStore,
		secretStore:             &secStore,
		extensions:              syncmap.New[string, *models.Extension](),
		ignorePipelineRunEvents: &atomic.Bool{},
	}
}

// seedPipeline inserts a namespace, pipeline and live config version directly into storage.
func seedPipeline(t *testing.T, apictx *APIContext, pipeline string, parallelism int64,
	tasks map[string]models.Task,
) {
	t.Helper()

	namespace := models.NewNamespace("default", "Default", "")
	err := apictx.db.InsertNamespace(apictx.db.Write(), namespace.ToStorage())
	if err != nil {
		t.Fatal(err)
	}

	metadata := models.NewPipelineMetadata("default", pipeline)
	err = apictx.db.InsertPipelineMetadata(apictx.db.Write(), metadata.ToStorage())
	if err != nil {
		t.Fatal(err)
	}

	pipelineConfig := models.NewPipelineConfig("default", pipeline, 1, "Test Pipeline", "", parallelism, tasks)
	storedConfig, storedTasks := pipelineConfig.ToStorage()

	err = apictx.db.InsertPipelineConfig(apictx.db.Write(), storedConfig)
	if err != nil {
		t.Fatal(err)
	}

	for _, task := range storedTasks {
		err = apictx.db.InsertTask(apictx.db.Write(), task)
		if err != nil {
			t.Fatal(err)
		}
	}

	err = apictx.db.UpdatePipelineConfig(apictx.db.Write(), "default", pipeline, 1,
		storage.UpdatablePipelineConfigFields{
			State: ptr(string(models.PipelineConfigStateLive)),
		})
	if err != nil {
		t.Fatal(err)
	}
}

func taskExecutionStatuses(t *testing.T, apictx *APIContext, pipeline string, run int64) map[string]models.TaskExecutionStatus {
	t.Helper()

	storedExecutions, err := apictx.db.ListTaskExecutions(apictx.db.Read(), 0, 0, "default", pipeline, run)
	if err != nil {
		t.Fatal(err)
	}

	statuses := map[string]models.TaskExecutionStatus{}
	for _, storedExecution := range storedExecutions {
		var execution models.TaskExecution
		execution.FromStorage(&storedExecution)
		statuses[execution.ID] = execution.Status
	}

	return statuses
}

func runStatus(t *testing.T, apictx *APIContext, pipeline string, run int64) models.RunStatus {
	t.Helper()

	storedRun, err := apictx.db.GetRun(apictx.db.Read(), "default", pipeline, run)
	if err != nil {
		t.Fatal(err)
	}

	return models.RunStatus(storedRun.Status)
}

// waitForEvents blocks until the event log contains the completed run marker for the given run.
// The bus persists events through a detached writer, so the log can briefly trail the run state.
func waitForEvents(t *testing.T, apictx *APIContext, run int64) []storage.Event {
	t.Helper()

	deadline := time.Now().Add(time.Second * 10)

	for {
		if time.Now().After(deadline) {
			t.Fatal("timed out while waiting for completed run event")
		}

		storedEvents, err := apictx.db.ListEvents(apictx.db.Read(), 0, 0, false)
		if err != nil {
			t.Fatal(err)
		}

		for _, event := range storedEvents {
			if event.Kind != string(models.EventKindCompletedRun) {
				continue
			}

			details := struct {
				RunID int64 `json:"run_id"`
			}{}
			if err := json.Unmarshal([]byte(event.Details), &details); err != nil {
				t.Fatal(err)
			}

			if details.RunID == run {
				return storedEvents
			}
		}

		time.Sleep(time.Millisecond * 100)
	}
}

// eventIndex finds the position of the first event with the given kind whose details mention the
// given task execution. An empty task matches any event of the kind.
func eventIndex(t *testing.T, events []storage.Event, kind models.EventKind, task string) int {
	t.Helper()

	for i, event := range events {
		if event.Kind != string(kind) {
			continue
		}

		if task == "" {
			return i
		}

		details := struct {
			TaskExecutionID string `json:"task_execution_id"`
		}{}
		if err := json.Unmarshal([]byte(event.Details), &details); err != nil {
			t.Fatal(err)
		}

		if details.TaskExecutionID == task {
			return i
		}
	}

	t.Fatalf("could not find event %s for task %q", kind, task)
	return -1
}

func TestRunLinearSuccess(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"alpha": 0, "beta": 0})
	apictx := newOrchestratorHarness(t, sched)

	seedPipeline(t, apictx, "linear", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
		"beta": {ID: "beta", Image: "ubuntu:latest", DependsOn: map[string]models.RequiredParentStatus{
			"alpha": models.RequiredParentStatusSuccess,
		}},
	})

	run, err := apictx.launchNewRun(context.Background(), "default", "linear", nil)
	if err != nil {
		t.Fatal(err)
	}

	err = apictx.waitRunCompletion("default", "linear", run.RunID, time.Second*30)
	if err != nil {
		t.Fatal(err)
	}

	if status := runStatus(t, apictx, "linear", run.RunID); status != models.RunStatusSuccessful {
		t.Errorf("incorrect run status; want %s got %s", models.RunStatusSuccessful, status)
	}

	statuses := taskExecutionStatuses(t, apictx, "linear", run.RunID)
	if statuses["alpha"] != models.TaskExecutionStatusSuccessful {
		t.Errorf("incorrect status for task alpha; want %s got %s",
			models.TaskExecutionStatusSuccessful, statuses["alpha"])
	}
	if statuses["beta"] != models.TaskExecutionStatusSuccessful {
		t.Errorf("incorrect status for task beta; want %s got %s",
			models.TaskExecutionStatusSuccessful, statuses["beta"])
	}

	events := waitForEvents(t, apictx, run.RunID)

	queued := eventIndex(t, events, models.EventKindQueuedRun, "")
	started := eventIndex(t, events, models.EventKindStartedRun, "")
	completed := eventIndex(t, events, models.EventKindCompletedRun, "")

	if !(queued < started && started < completed) {
		t.Errorf("run events out of order; queued=%d started=%d completed=%d", queued, started, completed)
	}

	for _, task := range []string{"alpha", "beta"} {
		created := eventIndex(t, events, models.EventKindCreatedTaskExecution, task)
		startedTask := eventIndex(t, events, models.EventKindStartedTaskExecution, task)
		completedTask := eventIndex(t, events, models.EventKindCompletedTaskExecution, task)

		if started > created {
			t.Errorf("run must be marked started before task %s is created; started=%d created=%d",
				task, started, created)
		}

		if !(created < startedTask && startedTask < completedTask) {
			t.Errorf("task %s events out of order; created=%d started=%d completed=%d",
				task, created, startedTask, completedTask)
		}
	}
}

func TestRunSkipsDependantOnFailure(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"alpha": 1, "beta": 0})
	apictx := newOrchestratorHarness(t, sched)

	seedPipeline(t, apictx, "skipper", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
		"beta": {ID: "beta", Image: "ubuntu:latest", DependsOn: map[string]models.RequiredParentStatus{
			"alpha": models.RequiredParentStatusSuccess,
		}},
	})

	run, err := apictx.launchNewRun(context.Background(), "default", "skipper", nil)
	if err != nil {
		t.Fatal(err)
	}

	err = apictx.waitRunCompletion("default", "skipper", run.RunID, time.Second*30)
	if err != nil {
		t.Fatal(err)
	}

	if status := runStatus(t, apictx, "skipper", run.RunID); status != models.RunStatusFailed {
		t.Errorf("incorrect run status; want %s got %s", models.RunStatusFailed, status)
	}

	statuses := taskExecutionStatuses(t, apictx, "skipper", run.RunID)
	if statuses["alpha"] != models.TaskExecutionStatusFailed {
		t.Errorf("incorrect status for task alpha; want %s got %s",
			models.TaskExecutionStatusFailed, statuses["alpha"])
	}
	if statuses["beta"] != models.TaskExecutionStatusSkipped {
		t.Errorf("incorrect status for task beta; want %s got %s",
			models.TaskExecutionStatusSkipped, statuses["beta"])
	}

	if sched.hasStarted("beta") {
		t.Error("task beta should never have been scheduled; its parent failed")
	}
}

func TestRunAnyDependencyRunsAfterFailure(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"alpha": 1, "beta": 0})
	apictx := newOrchestratorHarness(t, sched)

	seedPipeline(t, apictx, "cleanup", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
		"beta": {ID: "beta", Image: "ubuntu:latest", DependsOn: map[string]models.RequiredParentStatus{
			"alpha": models.RequiredParentStatusAny,
		}},
	})

	run, err := apictx.launchNewRun(context.Background(), "default", "cleanup", nil)
	if err != nil {
		t.Fatal(err)
	}

	err = apictx.waitRunCompletion("default", "cleanup", run.RunID, time.Second*30)
	if err != nil {
		t.Fatal(err)
	}

	statuses := taskExecutionStatuses(t, apictx, "cleanup", run.RunID)
	if statuses["beta"] != models.TaskExecutionStatusSuccessful {
		t.Errorf("incorrect status for task beta; want %s got %s",
			models.TaskExecutionStatusSuccessful, statuses["beta"])
	}

	// The cleanup task ran, but the run as a whole still failed because of alpha.
	if status := runStatus(t, apictx, "cleanup", run.RunID); status != models.RunStatusFailed {
		t.Errorf("incorrect run status; want %s got %s", models.RunStatusFailed, status)
	}
}

func TestRunParallelismLimitRejectsSecondRun(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"slow": 0})
	sched.markRunning("slow")
	apictx := newOrchestratorHarness(t, sched)

	seedPipeline(t, apictx, "serial", 1, map[string]models.Task{
		"slow": {ID: "slow", Image: "ubuntu:latest"},
	})

	run, err := apictx.launchNewRun(context.Background(), "default", "serial", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = apictx.launchNewRun(context.Background(), "default", "serial", nil)
	if err == nil {
		t.Fatal("expected second run to be rejected by the parallelism limit")
	}

	sched.finish("slow")

	err = apictx.waitRunCompletion("default", "serial", run.RunID, time.Second*30)
	if err != nil {
		t.Fatal(err)
	}

	events := waitForEvents(t, apictx, run.RunID)

	queuedCount := 0
	for _, event := range events {
		if event.Kind == string(models.EventKindQueuedRun) {
			queuedCount++
		}
	}

	if queuedCount != 1 {
		t.Errorf("incorrect number of queued run events; want 1 got %d", queuedCount)
	}
}

func TestConcurrentRunStartsAdmitExactlyOne(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"slow": 0})
	sched.markRunning("slow")
	apictx := newOrchestratorHarness(t, sched)

	seedPipeline(t, apictx, "contended", 1, map[string]models.Task{
		"slow": {ID: "slow", Image: "ubuntu:latest"},
	})

	var wg sync.WaitGroup
	var admitted atomic.Int64

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := apictx.launchNewRun(context.Background(), "default", "contended", nil)
			if err == nil {
				admitted.Add(1)
			}
		}()
	}

	wg.Wait()

	if admitted.Load() != 1 {
		t.Fatalf("incorrect number of admitted runs; want 1 got %d", admitted.Load())
	}

	sched.finish("slow")

	err := apictx.waitRunCompletion("default", "contended", 1, time.Second*30)
	if err != nil {
		t.Fatal(err)
	}
}
