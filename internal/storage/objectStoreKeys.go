package storage

import (
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// The object store backend holds the bytes; these tables only track which keys
// exist per scope so the FIFO eviction sweeps know what to discard and in what
// order.

type ObjectStorePipelineKey struct {
	Namespace string `db:"namespace"`
	Pipeline  string `db:"pipeline"`
	Key       string `db:"key"`
	Created   string `db:"created"`
}

type ObjectStoreRunKey struct {
	Namespace string `db:"namespace"`
	Pipeline  string `db:"pipeline"`
	Run       int64  `db:"run"`
	Key       string `db:"key"`
	Created   string `db:"created"`
}

type ObjectStoreExtensionKey struct {
	Extension string `db:"extension"`
	Key       string `db:"key"`
	Created   string `db:"created"`
}

func (db *DB) ListObjectStorePipelineKeys(conn Queryable, namespace, pipeline string) ([]ObjectStorePipelineKey, error) {
	query, args := qb.Select("namespace", "pipeline", "key", "created").
		From("object_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("created ASC").MustSql()

	keys := []ObjectStorePipelineKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) InsertObjectStorePipelineKey(conn Queryable, key *ObjectStorePipelineKey) error {
	_, err := qb.Insert("object_store_pipeline_keys").Columns("namespace", "pipeline", "key", "created").Values(
		key.Namespace, key.Pipeline, key.Key, key.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteObjectStorePipelineKey(conn Queryable, namespace, pipeline, key string) error {
	_, err := qb.Delete("object_store_pipeline_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "key": key}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) ListObjectStoreRunKeys(conn Queryable, namespace, pipeline string, run int64) ([]ObjectStoreRunKey, error) {
	query, args := qb.Select("namespace", "pipeline", "run", "key", "created").
		From("object_store_run_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run}).
		OrderBy("created ASC").MustSql()

	keys := []ObjectStoreRunKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) InsertObjectStoreRunKey(conn Queryable, key *ObjectStoreRunKey) error {
	_, err := qb.Insert("object_store_run_keys").Columns("namespace", "pipeline", "run", "key", "created").Values(
		key.Namespace, key.Pipeline, key.Run, key.Key, key.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteObjectStoreRunKey(conn Queryable, namespace, pipeline string, run int64, key string) error {
	_, err := qb.Delete("object_store_run_keys").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run, "key": key}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) ListObjectStoreExtensionKeys(conn Queryable, extension string) ([]ObjectStoreExtensionKey, error) {
	query, args := qb.Select("extension", "key", "created").
		From("object_store_extension_keys").
		Where(qb.Eq{"extension": extension}).
		OrderBy("created ASC").MustSql()

	keys := []ObjectStoreExtensionKey{}
	err := conn.Select(&keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return keys, nil
}

func (db *DB) InsertObjectStoreExtensionKey(conn Queryable, key *ObjectStoreExtensionKey) error {
	_, err := qb.Insert("object_store_extension_keys").Columns("extension", "key", "created").Values(
		key.Extension, key.Key, key.Created).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteObjectStoreExtensionKey(conn Queryable, extension, key string) error {
	_, err := qb.Delete("object_store_extension_keys").
		Where(qb.Eq{"extension": extension, "key": key}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
