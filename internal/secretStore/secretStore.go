// Package secretStore defines the interface for the secret storage backend. Secrets are
// stored encrypted and referenced from pipeline configurations by key.
package secretStore

import "errors"

type EngineType string

const (
	// EngineSqlite uses a local sqlite database.
	EngineSqlite EngineType = "sqlite"
)

var (
	// ErrEntityNotFound is returned when a certain entity could not be located.
	ErrEntityNotFound = errors.New("secretStore: entity not found")

	// ErrEntityExists is returned when a certain entity was located but not meant to be.
	ErrEntityExists = errors.New("secretStore: entity already exists")

	// ErrPreconditionFailure is returned when there was a validation error with the parameters passed.
	ErrPreconditionFailure = errors.New("secretStore: parameters did not pass validation")

	// ErrInternal is returned when there was an unknown internal error.
	ErrInternal = errors.New("secretStore: unknown error")
)

type Engine interface {
	GetSecret(key string) (string, error)
	PutSecret(key string, content string, force bool) error
	ListSecretKeys(prefix string) ([]string, error)
	DeleteSecret(key string) error
}
