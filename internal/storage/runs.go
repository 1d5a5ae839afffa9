package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type Run struct {
	Namespace             string         `db:"namespace"`
	Pipeline              string         `db:"pipeline"`
	PipelineConfigVersion int64          `db:"pipeline_config_version"`
	ID                    int64          `db:"id"`
	Started               string         `db:"started"`
	Ended                 string         `db:"ended"`
	State                 string         `db:"state"`
	Status                string         `db:"status"`
	StatusReason          string         `db:"status_reason"`
	Initiator             string         `db:"initiator"`
	Variables             string         `db:"variables"`
	TokenID               sql.NullString `db:"token_id"`
	StoreObjectsExpired   bool           `db:"store_objects_expired"`
}

type UpdatableRunFields struct {
	Started             *string
	Ended               *string
	State               *string
	Status              *string
	StatusReason        *string
	Variables           *string
	TokenID             *string
	StoreObjectsExpired *bool
}

func (db *DB) ListRuns(conn Queryable, offset, limit int, namespace, pipeline string) ([]Run, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "pipeline", "pipeline_config_version", "id", "started", "ended",
		"state", "status", "status_reason", "initiator", "variables", "token_id", "store_objects_expired").
		From("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	runs := []Run{}
	err := conn.Select(&runs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return runs, nil
}

// ListActiveRuns returns runs that have not yet reached state COMPLETE. Parallelism
// admission counts these before allowing a new run through the gate.
func (db *DB) ListActiveRuns(conn Queryable, namespace, pipeline string) ([]Run, error) {
	query, args := qb.Select("namespace", "pipeline", "pipeline_config_version", "id", "started", "ended",
		"state", "status", "status_reason", "initiator", "variables", "token_id", "store_objects_expired").
		From("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		Where(qb.NotEq{"state": "COMPLETE"}).
		OrderBy("id DESC").MustSql()

	runs := []Run{}
	err := conn.Select(&runs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return runs, nil
}

func (db *DB) InsertRun(conn Queryable, run *Run) error {
	_, err := qb.Insert("runs").Columns("namespace", "pipeline", "pipeline_config_version", "id", "started",
		"ended", "state", "status", "status_reason", "initiator", "variables", "token_id",
		"store_objects_expired").Values(
		run.Namespace, run.Pipeline, run.PipelineConfigVersion, run.ID, run.Started, run.Ended, run.State,
		run.Status, run.StatusReason, run.Initiator, run.Variables, run.TokenID, run.StoreObjectsExpired).
		RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetRun(conn Queryable, namespace, pipeline string, id int64) (Run, error) {
	query, args := qb.Select("namespace", "pipeline", "pipeline_config_version", "id", "started", "ended",
		"state", "status", "status_reason", "initiator", "variables", "token_id", "store_objects_expired").
		From("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).MustSql()

	run := Run{}
	err := conn.Get(&run, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrEntityNotFound
		}

		return Run{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return run, nil
}

func (db *DB) GetLatestRun(conn Queryable, namespace, pipeline string) (Run, error) {
	query, args := qb.Select("namespace", "pipeline", "pipeline_config_version", "id", "started", "ended",
		"state", "status", "status_reason", "initiator", "variables", "token_id", "store_objects_expired").
		From("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("id DESC").
		Limit(1).MustSql()

	run := Run{}
	err := conn.Get(&run, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrEntityNotFound
		}

		return Run{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return run, nil
}

func (db *DB) UpdateRun(conn Queryable, namespace, pipeline string, id int64, fields UpdatableRunFields) error {
	query := qb.Update("runs")

	updated := false

	if fields.Started != nil {
		query = query.Set("started", fields.Started)
		updated = true
	}

	if fields.Ended != nil {
		query = query.Set("ended", fields.Ended)
		updated = true
	}

	if fields.State != nil {
		query = query.Set("state", fields.State)
		updated = true
	}

	if fields.Status != nil {
		query = query.Set("status", fields.Status)
		updated = true
	}

	if fields.StatusReason != nil {
		query = query.Set("status_reason", fields.StatusReason)
		updated = true
	}

	if fields.Variables != nil {
		query = query.Set("variables", fields.Variables)
		updated = true
	}

	if fields.TokenID != nil {
		query = query.Set("token_id", fields.TokenID)
		updated = true
	}

	if fields.StoreObjectsExpired != nil {
		query = query.Set("store_objects_expired", fields.StoreObjectsExpired)
		updated = true
	}

	if !updated {
		return ErrEntityUpdateFieldsEmpty
	}

	_, err := query.Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteRun(conn Queryable, namespace, pipeline string, id int64) error {
	_, err := qb.Delete("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
