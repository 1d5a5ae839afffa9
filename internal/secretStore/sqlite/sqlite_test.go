package sqlite

import (
	"os"
	"testing"

	"github.com/clintjedwards/gofer/internal/secretStore"
)

func TestSqlite(t *testing.T) {
	store, err := New("/tmp/test_sqlite_secretStore.db", "testkeytestkeytestkeytestkey1234")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove("/tmp/test_sqlite_secretStore.db")
	defer os.Remove("/tmp/test_sqlite_secretStore.db-wal")
	defer os.Remove("/tmp/test_sqlite_secretStore.db-shm")

	err = store.PutSecret("testkey1", "mysupersecretvalue", false)
	if err != nil {
		t.Fatal(err)
	}

	err = store.PutSecret("testkey1", "updatedsecret", false)
	if err != secretStore.ErrEntityExists {
		t.Fatalf("expected error %q; found %v", secretStore.ErrEntityExists, err)
	}

	err = store.PutSecret("testkey1", "updatedsecret", true)
	if err != nil {
		t.Fatal(err)
	}

	secret, err := store.GetSecret("testkey1")
	if err != nil {
		t.Fatal(err)
	}

	if secret != "updatedsecret" {
		t.Errorf("secret did not survive the round trip; got %q", secret)
	}

	keys, err := store.ListSecretKeys("testkey")
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 1 {
		t.Fatalf("expected one key got %d", len(keys))
	}

	err = store.DeleteSecret("testkey1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.GetSecret("testkey1")
	if err != secretStore.ErrEntityNotFound {
		t.Fatalf("expected error %q; found %v", secretStore.ErrEntityNotFound, err)
	}
}
