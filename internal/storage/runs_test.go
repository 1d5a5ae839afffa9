package storage

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seedPipeline(t *testing.T, db DB) {
	t.Helper()

	namespace := Namespace{
		ID:          "test_namespace",
		Name:        "Test Namespace",
		Description: "This is a test namespace",
		Created:     "0",
		Modified:    "0",
	}

	if err := db.InsertNamespace(db.Write(), &namespace); err != nil {
		t.Fatal(err)
	}

	pipeline := PipelineMetadata{
		Namespace: "test_namespace",
		ID:        "test_pipeline",
		Created:   "0",
		Modified:  "0",
		State:     "ACTIVE",
	}

	if err := db.InsertPipelineMetadata(db.Write(), &pipeline); err != nil {
		t.Fatal(err)
	}

	config := PipelineConfig{
		Namespace:   "test_namespace",
		Pipeline:    "test_pipeline",
		Version:     0,
		Parallelism: 0,
		Name:        "Test Pipeline",
		Description: "",
		Registered:  "0",
		Deprecated:  "0",
		State:       "LIVE",
	}

	if err := db.InsertPipelineConfig(db.Write(), &config); err != nil {
		t.Fatal(err)
	}
}

func TestCRUDRuns(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	seedPipeline(t, db)

	run := Run{
		Namespace:             "test_namespace",
		Pipeline:              "test_pipeline",
		PipelineConfigVersion: 0,
		ID:                    1,
		Started:               "0",
		Ended:                 "0",
		State:                 "STATE_STRING",
		Status:                "STATUS_STRING",
		StatusReason:          "STATUS_REASON_STRING",
		Initiator:             "INITIATOR_STRING",
		Variables:             "VARIABLES_STRING",
		TokenID:               sql.NullString{},
		StoreObjectsExpired:   false,
	}

	err = db.InsertRun(db.Write(), &run)
	if err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(db.Read(), 0, 0, "test_namespace", "test_pipeline")
	if err != nil {
		t.Fatal(err)
	}

	if len(runs) != 1 {
		t.Errorf("expected 1 element in list found %d", len(runs))
	}

	if diff := cmp.Diff(run, runs[0]); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetchedRun, err := db.GetRun(db.Read(), "test_namespace", "test_pipeline", run.ID)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(run, fetchedRun); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetchedRun, err = db.GetLatestRun(db.Read(), "test_namespace", "test_pipeline")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(run, fetchedRun); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetchedRun.Ended = "1"
	fetchedRun.State = "COMPLETE"
	fetchedRun.Status = "UPDATED_STATUS"
	fetchedRun.StatusReason = "UPDATED_STATUS_REASON"
	fetchedRun.Variables = "UPDATED_VARIABLES"
	fetchedRun.StoreObjectsExpired = true

	err = db.UpdateRun(db.Write(), "test_namespace", "test_pipeline", run.ID,
		UpdatableRunFields{
			Ended:               &fetchedRun.Ended,
			State:               &fetchedRun.State,
			Status:              &fetchedRun.Status,
			StatusReason:        &fetchedRun.StatusReason,
			Variables:           &fetchedRun.Variables,
			StoreObjectsExpired: &fetchedRun.StoreObjectsExpired,
		})
	if err != nil {
		t.Fatal(err)
	}

	updatedRun, err := db.GetRun(db.Read(), "test_namespace", "test_pipeline", run.ID)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(fetchedRun, updatedRun); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	err = db.UpdateRun(db.Write(), "test_namespace", "test_pipeline", run.ID, UpdatableRunFields{})
	if !errors.Is(err, ErrEntityUpdateFieldsEmpty) {
		t.Fatalf("expected ErrEntityUpdateFieldsEmpty; got %v", err)
	}

	err = db.DeleteRun(db.Write(), "test_namespace", "test_pipeline", run.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = db.GetRun(db.Read(), "test_namespace", "test_pipeline", run.ID)
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatal("expected error Not Found; found alternate error")
	}
}

func TestListActiveRunsExcludesComplete(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	seedPipeline(t, db)

	running := Run{
		Namespace: "test_namespace", Pipeline: "test_pipeline", PipelineConfigVersion: 0,
		ID: 1, Started: "0", Ended: "0", State: "RUNNING", Status: "UNKNOWN",
		StatusReason: "", Initiator: "", Variables: "[]",
	}
	complete := Run{
		Namespace: "test_namespace", Pipeline: "test_pipeline", PipelineConfigVersion: 0,
		ID: 2, Started: "0", Ended: "1", State: "COMPLETE", Status: "SUCCESSFUL",
		StatusReason: "", Initiator: "", Variables: "[]",
	}

	if err := db.InsertRun(db.Write(), &running); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun(db.Write(), &complete); err != nil {
		t.Fatal(err)
	}

	active, err := db.ListActiveRuns(db.Read(), "test_namespace", "test_pipeline")
	if err != nil {
		t.Fatal(err)
	}

	if len(active) != 1 || active[0].ID != 1 {
		t.Errorf("expected only the running run to be active; got %+v", active)
	}
}
