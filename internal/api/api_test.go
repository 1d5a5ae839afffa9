package api

import (
	"encoding/json"
	"testing"

	"github.com/clintjedwards/gofer/internal/models"
)

func seedOrphanedRun(t *testing.T, apictx *APIContext, pipeline string, state models.TaskExecutionState) {
	t.Helper()

	task := models.Task{ID: "alpha", Image: "ubuntu:latest"}

	seedPipeline(t, apictx, pipeline, 0, map[string]models.Task{"alpha": task})

	initiator := models.Initiator{
		Type:   models.InitiatorTypeHuman,
		Name:   "api",
		Reason: "Manually initiated run via API",
	}

	run := models.NewRun("default", pipeline, 1, 1, initiator, nil)
	err := apictx.db.InsertRun(apictx.db.Write(), run.ToStorage())
	if err != nil {
		t.Fatal(err)
	}

	execution := models.NewTaskExecution("default", pipeline, 1, task)
	execution.State = state
	err = apictx.db.InsertTaskExecution(apictx.db.Write(), execution.ToStorage())
	if err != nil {
		t.Fatal(err)
	}
}

func TestRepairOrphanRunFinalizesLostTaskExecution(t *testing.T) {
	apictx := newOrchestratorHarness(t, newStubScheduler(nil))

	// A task execution that never made it to the scheduler has no container to ask about.
	seedOrphanedRun(t, apictx, "lost", models.TaskExecutionStateProcessing)

	err := apictx.repairOrphanRun("default", "lost", 1)
	if err != nil {
		t.Fatal(err)
	}

	storedExecution, err := apictx.db.GetTaskExecution(apictx.db.Read(), "default", "lost", 1, "alpha")
	if err != nil {
		t.Fatal(err)
	}

	if storedExecution.State != string(models.TaskExecutionStateComplete) {
		t.Errorf("incorrect task execution state; want %s got %s",
			models.TaskExecutionStateComplete, storedExecution.State)
	}
	if storedExecution.Status != string(models.TaskExecutionStatusFailed) {
		t.Errorf("incorrect task execution status; want %s got %s",
			models.TaskExecutionStatusFailed, storedExecution.Status)
	}

	statusReason := models.TaskExecutionStatusReason{}
	if err := json.Unmarshal([]byte(storedExecution.StatusReason), &statusReason); err != nil {
		t.Fatal(err)
	}

	if statusReason.Reason != models.TaskExecutionStatusReasonKindOrphaned {
		t.Errorf("incorrect task execution status reason; want %s got %s",
			models.TaskExecutionStatusReasonKindOrphaned, statusReason.Reason)
	}

	storedRun, err := apictx.db.GetRun(apictx.db.Read(), "default", "lost", 1)
	if err != nil {
		t.Fatal(err)
	}

	if storedRun.State != string(models.RunStateComplete) {
		t.Errorf("incorrect run state; want %s got %s", models.RunStateComplete, storedRun.State)
	}
	if storedRun.Status != string(models.RunStatusFailed) {
		t.Errorf("incorrect run status; want %s got %s", models.RunStatusFailed, storedRun.Status)
	}
}

func TestRepairOrphanRunResolvesExitedContainer(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"alpha": 0})
	apictx := newOrchestratorHarness(t, sched)

	// Mid-flight task execution whose container finished while the service was down.
	seedOrphanedRun(t, apictx, "midflight", models.TaskExecutionStateRunning)

	err := apictx.repairOrphanRun("default", "midflight", 1)
	if err != nil {
		t.Fatal(err)
	}

	storedExecution, err := apictx.db.GetTaskExecution(apictx.db.Read(), "default", "midflight", 1, "alpha")
	if err != nil {
		t.Fatal(err)
	}

	if storedExecution.State != string(models.TaskExecutionStateComplete) {
		t.Errorf("incorrect task execution state; want %s got %s",
			models.TaskExecutionStateComplete, storedExecution.State)
	}
	if storedExecution.Status != string(models.TaskExecutionStatusSuccessful) {
		t.Errorf("incorrect task execution status; want %s got %s",
			models.TaskExecutionStatusSuccessful, storedExecution.Status)
	}
}
