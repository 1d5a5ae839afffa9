package storage

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCRUDTaskExecutions(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	seedPipeline(t, db)

	run := Run{
		Namespace: "test_namespace", Pipeline: "test_pipeline", PipelineConfigVersion: 0,
		ID: 1, Started: "0", Ended: "0", State: "RUNNING", Status: "UNKNOWN",
		StatusReason: "", Initiator: "", Variables: "[]", TokenID: sql.NullString{},
	}

	if err := db.InsertRun(db.Write(), &run); err != nil {
		t.Fatal(err)
	}

	taskExecution := TaskExecution{
		Namespace:    "test_namespace",
		Pipeline:     "test_pipeline",
		Run:          1,
		ID:           "test_task",
		Task:         "TASK_STRING",
		Created:      "0",
		Started:      "0",
		Ended:        "0",
		ExitCode:     999,
		LogsExpired:  false,
		LogsRemoved:  false,
		State:        "STATE_STRING",
		Status:       "STATUS_STRING",
		StatusReason: "STATUS_REASON_STRING",
		Variables:    "VARIABLES_STRING",
	}

	err = db.InsertTaskExecution(db.Write(), &taskExecution)
	if err != nil {
		t.Fatal(err)
	}

	taskExecutions, err := db.ListTaskExecutions(db.Read(), 0, 0, "test_namespace", "test_pipeline", 1)
	if err != nil {
		t.Fatal(err)
	}

	if len(taskExecutions) != 1 {
		t.Errorf("expected 1 element in list found %d", len(taskExecutions))
	}

	if diff := cmp.Diff(taskExecution, taskExecutions[0]); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetched, err := db.GetTaskExecution(db.Read(), "test_namespace", "test_pipeline", 1, "test_task")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(taskExecution, fetched); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetched.Started = "1"
	fetched.Ended = "2"
	fetched.ExitCode = 0
	fetched.State = "COMPLETE"
	fetched.Status = "SUCCESSFUL"
	fetched.LogsExpired = true
	fetched.LogsRemoved = true

	err = db.UpdateTaskExecution(db.Write(), "test_namespace", "test_pipeline", 1, "test_task",
		UpdatableTaskExecutionFields{
			Started:     &fetched.Started,
			Ended:       &fetched.Ended,
			ExitCode:    &fetched.ExitCode,
			State:       &fetched.State,
			Status:      &fetched.Status,
			LogsExpired: &fetched.LogsExpired,
			LogsRemoved: &fetched.LogsRemoved,
		})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := db.GetTaskExecution(db.Read(), "test_namespace", "test_pipeline", 1, "test_task")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(fetched, updated); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	err = db.UpdateTaskExecution(db.Write(), "test_namespace", "test_pipeline", 1, "test_task",
		UpdatableTaskExecutionFields{})
	if !errors.Is(err, ErrEntityUpdateFieldsEmpty) {
		t.Fatalf("expected ErrEntityUpdateFieldsEmpty; got %v", err)
	}

	err = db.DeleteTaskExecution(db.Write(), "test_namespace", "test_pipeline", 1, "test_task")
	if err != nil {
		t.Fatal(err)
	}

	_, err = db.GetTaskExecution(db.Read(), "test_namespace", "test_pipeline", 1, "test_task")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatal("expected error Not Found; found alternate error")
	}
}
