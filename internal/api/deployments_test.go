package api

import (
	"context"
	"testing"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
)

// seedConfigVersion inserts an additional, unreleased config version for an already seeded pipeline.
func seedConfigVersion(t *testing.T, apictx *APIContext, pipeline string, version int64,
	tasks map[string]models.Task,
) {
	t.Helper()

	pipelineConfig := models.NewPipelineConfig("default", pipeline, version, "Test Pipeline", "", 0, tasks)
	storedConfig, storedTasks := pipelineConfig.ToStorage()

	err := apictx.db.InsertPipelineConfig(apictx.db.Write(), storedConfig)
	if err != nil {
		t.Fatal(err)
	}

	for _, task := range storedTasks {
		err = apictx.db.InsertTask(apictx.db.Write(), task)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func configState(t *testing.T, apictx *APIContext, pipeline string, version int64) string {
	t.Helper()

	storedConfig, err := apictx.db.GetPipelineConfig(apictx.db.Read(), "default", pipeline, version)
	if err != nil {
		t.Fatal(err)
	}

	return storedConfig.State
}

func TestDeploymentSwapsLiveVersion(t *testing.T) {
	apictx := newOrchestratorHarness(t, newStubScheduler(nil))

	seedPipeline(t, apictx, "swap", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
	})
	seedConfigVersion(t, apictx, "swap", 2, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:22.04"},
	})

	deployment, err := apictx.deployPipelineVersion("default", "swap", 2)
	if err != nil {
		t.Fatal(err)
	}

	if deployment.State != models.DeploymentStateComplete {
		t.Errorf("incorrect deployment state; want %s got %s", models.DeploymentStateComplete, deployment.State)
	}
	if deployment.Status != models.DeploymentStatusSuccessful {
		t.Errorf("incorrect deployment status; want %s got %s", models.DeploymentStatusSuccessful, deployment.Status)
	}
	if deployment.StartVersion != 1 || deployment.EndVersion != 2 {
		t.Errorf("incorrect deployment versions; want 1 -> 2 got %d -> %d",
			deployment.StartVersion, deployment.EndVersion)
	}

	if state := configState(t, apictx, "swap", 1); state != string(models.PipelineConfigStateDeprecated) {
		t.Errorf("incorrect state for version 1; want %s got %s", models.PipelineConfigStateDeprecated, state)
	}
	if state := configState(t, apictx, "swap", 2); state != string(models.PipelineConfigStateLive) {
		t.Errorf("incorrect state for version 2; want %s got %s", models.PipelineConfigStateLive, state)
	}

	// A pipeline has exactly one live version at every point the swap can be observed.
	storedConfigs, err := apictx.db.ListPipelineConfigs(apictx.db.Read(), 0, 0, "default", "swap")
	if err != nil {
		t.Fatal(err)
	}

	liveCount := 0
	for _, storedConfig := range storedConfigs {
		if storedConfig.State == string(models.PipelineConfigStateLive) {
			liveCount++
		}
	}

	if liveCount != 1 {
		t.Errorf("incorrect number of live config versions; want 1 got %d", liveCount)
	}
}

func TestDeploymentAlreadyLiveVersionIsNoop(t *testing.T) {
	apictx := newOrchestratorHarness(t, newStubScheduler(nil))

	seedPipeline(t, apictx, "noop", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
	})

	deployment, err := apictx.deployPipelineVersion("default", "noop", 1)
	if err != nil {
		t.Fatal(err)
	}

	if deployment.Status != models.DeploymentStatusSuccessful {
		t.Errorf("incorrect deployment status; want %s got %s", models.DeploymentStatusSuccessful, deployment.Status)
	}
	if deployment.StartVersion != 1 || deployment.EndVersion != 1 {
		t.Errorf("incorrect deployment versions; want 1 -> 1 got %d -> %d",
			deployment.StartVersion, deployment.EndVersion)
	}

	if state := configState(t, apictx, "noop", 1); state != string(models.PipelineConfigStateLive) {
		t.Errorf("incorrect state for version 1; want %s got %s", models.PipelineConfigStateLive, state)
	}
}

func TestDeploymentUnknownVersionNotFound(t *testing.T) {
	apictx := newOrchestratorHarness(t, newStubScheduler(nil))

	seedPipeline(t, apictx, "missing", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
	})

	_, err := apictx.deployPipelineVersion("default", "missing", 99)
	if err == nil {
		t.Fatal("expected deployment of an unknown config version to fail")
	}
}

func TestDeploymentRunsAgainstNewLiveVersion(t *testing.T) {
	sched := newStubScheduler(map[string]int64{"alpha": 0})
	apictx := newOrchestratorHarness(t, sched)

	seedPipeline(t, apictx, "versioned", 0, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:latest"},
	})
	seedConfigVersion(t, apictx, "versioned", 2, map[string]models.Task{
		"alpha": {ID: "alpha", Image: "ubuntu:22.04"},
	})

	_, err := apictx.deployPipelineVersion("default", "versioned", 2)
	if err != nil {
		t.Fatal(err)
	}

	run, err := apictx.launchNewRun(context.Background(), "default", "versioned", nil)
	if err != nil {
		t.Fatal(err)
	}

	if run.Version != 2 {
		t.Errorf("run should execute the newly live config version; want 2 got %d", run.Version)
	}

	err = apictx.waitRunCompletion("default", "versioned", run.RunID, time.Second*30)
	if err != nil {
		t.Fatal(err)
	}
}
