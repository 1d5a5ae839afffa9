package storage

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestCRUDEvents(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	// Ids here stand in for uuidv7s; only their sort order matters.
	for i := 1; i <= 5; i++ {
		event := Event{
			ID:      fmt.Sprintf("0000-%03d", i),
			Kind:    "CREATED_NAMESPACE",
			Details: `{"namespace_id":"test_namespace"}`,
			Emitted: fmt.Sprint(i),
		}
		if err := db.InsertEvent(db.Write(), &event); err != nil {
			t.Fatal(err)
		}
	}

	events, err := db.ListEvents(db.Read(), 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(events) != 5 {
		t.Fatalf("expected 5 events; got %d", len(events))
	}

	for i, event := range events {
		want := fmt.Sprintf("0000-%03d", i+1)
		if event.ID != want {
			t.Errorf("events out of order; want %q got %q", want, event.ID)
		}
	}

	reversed, err := db.ListEvents(db.Read(), 0, 0, true)
	if err != nil {
		t.Fatal(err)
	}

	if reversed[0].ID != "0000-005" {
		t.Errorf("expected newest event first in reverse listing; got %q", reversed[0].ID)
	}

	after, err := db.ListEventsAfter(db.Read(), "0000-003", 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(after) != 2 || after[0].ID != "0000-004" {
		t.Errorf("unexpected page after 0000-003: %+v", after)
	}

	fetched, err := db.GetEvent(db.Read(), "0000-001")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Kind != "CREATED_NAMESPACE" {
		t.Errorf("unexpected event kind %q", fetched.Kind)
	}

	if err := db.DeleteEvent(db.Write(), "0000-001"); err != nil {
		t.Fatal(err)
	}

	_, err = db.GetEvent(db.Read(), "0000-001")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Fatal("expected error Not Found; found alternate error")
	}
}
