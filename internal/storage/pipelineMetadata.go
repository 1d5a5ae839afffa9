package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type PipelineMetadata struct {
	Namespace string `db:"namespace"`
	ID        string `db:"id"`
	Created   string `db:"created"`
	Modified  string `db:"modified"`
	State     string `db:"state"`
}

type UpdatablePipelineMetadataFields struct {
	Modified *string
	State    *string
}

func (db *DB) ListPipelineMetadata(conn Queryable, offset, limit int, namespace string) ([]PipelineMetadata, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "id", "created", "modified", "state").
		From("pipeline_metadata").
		Where(qb.Eq{"namespace": namespace}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	pipelines := []PipelineMetadata{}
	err := conn.Select(&pipelines, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return pipelines, nil
}

func (db *DB) InsertPipelineMetadata(conn Queryable, pipeline *PipelineMetadata) error {
	_, err := qb.Insert("pipeline_metadata").Columns("namespace", "id", "created", "modified", "state").Values(
		pipeline.Namespace, pipeline.ID, pipeline.Created, pipeline.Modified, pipeline.State).
		RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetPipelineMetadata(conn Queryable, namespace, id string) (PipelineMetadata, error) {
	query, args := qb.Select("namespace", "id", "created", "modified", "state").
		From("pipeline_metadata").Where(qb.Eq{"namespace": namespace, "id": id}).MustSql()

	pipeline := PipelineMetadata{}
	err := conn.Get(&pipeline, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PipelineMetadata{}, ErrEntityNotFound
		}

		return PipelineMetadata{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return pipeline, nil
}

func (db *DB) UpdatePipelineMetadata(conn Queryable, namespace, id string, fields UpdatablePipelineMetadataFields) error {
	query := qb.Update("pipeline_metadata")

	updated := false

	if fields.Modified != nil {
		query = query.Set("modified", fields.Modified)
		updated = true
	}

	if fields.State != nil {
		query = query.Set("state", fields.State)
		updated = true
	}

	if !updated {
		return ErrEntityUpdateFieldsEmpty
	}

	_, err := query.Where(qb.Eq{"namespace": namespace, "id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeletePipelineMetadata(conn Queryable, namespace, id string) error {
	_, err := qb.Delete("pipeline_metadata").Where(qb.Eq{"namespace": namespace, "id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
