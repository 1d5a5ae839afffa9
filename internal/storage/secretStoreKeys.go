package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type SecretStorePipelineKey struct {
	Namespace string `db:"namespace"`
	Pipeline  string `db:"pipeline"`
	Key       string `db:"key"`
	Created   string `db:"created"`
}

// Global secret keys carry a namespace filter list (JSON array of regexes) so
// operators can scope a shared secret to particular tenants.
type SecretStoreGlobalKey struct {
	Key        string `db:"key"`
	Namespaces string `db:"namespaces"`
	Created    string `db:"created"`
}

func (db *DB) ListSecretStorePipelineKeys(conn Queryable, namespace, pipeline string) ([]SecretStorePipelineKey, error) {
	query, args := qb.Select("namespace", "pipeline", "key", "created").
		From("secret_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("key ASC").MustSql()

	keys := []SecretStorePipelineKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) InsertSecretStorePipelineKey(conn Queryable, key *SecretStorePipelineKey) error {
	_, err := qb.Insert("secret_store_pipeline_keys").Columns("namespace", "pipeline", "key", "created").Values(
		key.Namespace, key.Pipeline, key.Key, key.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteSecretStorePipelineKey(conn Queryable, namespace, pipeline, key string) error {
	_, err := qb.Delete("secret_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "key": key}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) ListSecretStoreGlobalKeys(conn Queryable) ([]SecretStoreGlobalKey, error) {
	query, args := qb.Select("key", "namespaces", "created").
		From("secret_store_global_keys").
		OrderBy("key ASC").MustSql()

	keys := []SecretStoreGlobalKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) GetSecretStoreGlobalKey(conn Queryable, key string) (SecretStoreGlobalKey, error) {
	query, args := qb.Select("key", "namespaces", "created").
		From("secret_store_global_keys").
		Where(qb.Eq{"key": key}).MustSql()

	globalKey := SecretStoreGlobalKey{}
	err := conn.Get(&globalKey, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SecretStoreGlobalKey{}, ErrEntityNotFound
		}

		return SecretStoreGlobalKey{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return globalKey, nil
}

func (db *DB) InsertSecretStoreGlobalKey(conn Queryable, key *SecretStoreGlobalKey) error {
	_, err := qb.Insert("secret_store_global_keys").Columns("key", "namespaces", "created").Values(
		key.Key, key.Namespaces, key.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteSecretStoreGlobalKey(conn Queryable, key string) error {
	_, err := qb.Delete("secret_store_global_keys").Where(qb.Eq{"key": key}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
