// Package objectStore defines the interface for the object storage backend. The object store
// holds run and pipeline scoped blobs that tasks pass between each other.
package objectStore

import "errors"

type EngineType string

const (
	// EngineSqlite uses a local sqlite database.
	EngineSqlite EngineType = "sqlite"
)

var (
	// ErrEntityNotFound is returned when a certain entity could not be located.
	ErrEntityNotFound = errors.New("objectStore: entity not found")

	// ErrEntityExists is returned when a certain entity was located but not meant to be.
	ErrEntityExists = errors.New("objectStore: entity already exists")

	// ErrPreconditionFailure is returned when there was a validation error with the parameters passed.
	ErrPreconditionFailure = errors.New("objectStore: parameters did not pass validation")

	// ErrInternal is returned when there was an unknown internal error.
	ErrInternal = errors.New("objectStore: unknown error")
)

type Engine interface {
	GetObject(key string) ([]byte, error)
	PutObject(key string, content []byte, force bool) error
	ListObjectKeys(prefix string) ([]string, error)
	DeleteObject(key string) error
}
