package storage

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCRUDPipelineConfigs(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	namespace := Namespace{
		ID: "test_namespace", Name: "Test Namespace", Description: "", Created: "0", Modified: "0",
	}
	if err := db.InsertNamespace(db.Write(), &namespace); err != nil {
		t.Fatal(err)
	}

	pipeline := PipelineMetadata{
		Namespace: "test_namespace", ID: "test_pipeline", Created: "0", Modified: "0", State: "ACTIVE",
	}
	if err := db.InsertPipelineMetadata(db.Write(), &pipeline); err != nil {
		t.Fatal(err)
	}

	configV1 := PipelineConfig{
		Namespace: "test_namespace", Pipeline: "test_pipeline", Version: 1, Parallelism: 0,
		Name: "Test Pipeline", Description: "", Registered: "0", Deprecated: "0", State: "LIVE",
	}
	configV2 := PipelineConfig{
		Namespace: "test_namespace", Pipeline: "test_pipeline", Version: 2, Parallelism: 0,
		Name: "Test Pipeline", Description: "", Registered: "1", Deprecated: "0", State: "UNRELEASED",
	}

	if err := db.InsertPipelineConfig(db.Write(), &configV1); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertPipelineConfig(db.Write(), &configV2); err != nil {
		t.Fatal(err)
	}

	configs, err := db.ListPipelineConfigs(db.Read(), 0, 0, "test_namespace", "test_pipeline")
	if err != nil {
		t.Fatal(err)
	}

	if len(configs) != 2 {
		t.Errorf("expected 2 elements in list found %d", len(configs))
	}

	latest, err := db.GetLatestPipelineConfig(db.Read(), "test_namespace", "test_pipeline")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(configV2, latest); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	live, err := db.GetLivePipelineConfig(db.Read(), "test_namespace", "test_pipeline")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(configV1, live); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	deprecated := "5"
	state := "DEPRECATED"
	err = db.UpdatePipelineConfig(db.Write(), "test_namespace", "test_pipeline", 1,
		UpdatablePipelineConfigFields{Deprecated: &deprecated, State: &state})
	if err != nil {
		t.Fatal(err)
	}

	_, err = db.GetLivePipelineConfig(db.Read(), "test_namespace", "test_pipeline")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected no live config after deprecation; got %v", err)
	}

	err = db.UpdatePipelineConfig(db.Write(), "test_namespace", "test_pipeline", 1,
		UpdatablePipelineConfigFields{})
	if !errors.Is(err, ErrEntityUpdateFieldsEmpty) {
		t.Fatalf("expected ErrEntityUpdateFieldsEmpty; got %v", err)
	}

	err = db.DeletePipelineConfig(db.Write(), "test_namespace", "test_pipeline", 2)
	if err != nil {
		t.Fatal(err)
	}

	_, err = db.GetPipelineConfig(db.Read(), "test_namespace", "test_pipeline", 2)
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatal("expected error Not Found; found alternate error")
	}
}

func TestCRUDTasks(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	seedPipeline(t, db)

	task := Task{
		Namespace:             "test_namespace",
		Pipeline:              "test_pipeline",
		PipelineConfigVersion: 0,
		ID:                    "test_task",
		Description:           "a task",
		Image:                 "ubuntu:latest",
		RegistryAuth:          "",
		DependsOn:             `{"other_task":"SUCCESS"}`,
		Variables:             "[]",
		Entrypoint:            "",
		Command:               "",
		InjectAPIToken:        true,
	}

	if err := db.InsertTask(db.Write(), &task); err != nil {
		t.Fatal(err)
	}

	tasks, err := db.ListTasks(db.Read(), "test_namespace", "test_pipeline", 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(tasks) != 1 {
		t.Errorf("expected 1 element in list found %d", len(tasks))
	}

	if diff := cmp.Diff(task, tasks[0]); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetched, err := db.GetTask(db.Read(), "test_namespace", "test_pipeline", 0, "test_task")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(task, fetched); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	if err := db.DeleteTasks(db.Write(), "test_namespace", "test_pipeline", 0); err != nil {
		t.Fatal(err)
	}

	_, err = db.GetTask(db.Read(), "test_namespace", "test_pipeline", 0, "test_task")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatal("expected error Not Found; found alternate error")
	}
}
