package storage

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
)

func tempFile() string {
	f, err := os.CreateTemp("", "gofer-test-")
	if err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
	if err := os.Remove(f.Name()); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestNewRunsMigrations(t *testing.T) {
	path := tempFile()
	defer os.Remove(path)

	db, err := New(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// Opening the same file again must be a no-op; migrations are idempotent.
	db2, err := New(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
}

func TestInsideTxRollsBackOnError(t *testing.T) {
	path := tempFile()
	defer os.Remove(path)

	db, err := New(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	wantErr := os.ErrInvalid

	err = db.InsideTx(func(tx *sqlx.Tx) error {
		if err := db.InsertNamespace(tx, &Namespace{
			ID: "doomed", Name: "Doomed", Description: "", Created: "0", Modified: "0",
		}); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("expected error from InsideTx")
	}

	_, err = db.GetNamespace(db.Read(), "doomed")
	if err != ErrEntityNotFound {
		t.Fatalf("expected namespace insert to be rolled back; got %v", err)
	}
}
