package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type Deployment struct {
	Namespace    string `db:"namespace"`
	Pipeline     string `db:"pipeline"`
	ID           int64  `db:"id"`
	StartVersion int64  `db:"start_version"`
	EndVersion   int64  `db:"end_version"`
	Started      string `db:"started"`
	Ended        string `db:"ended"`
	State        string `db:"state"`
	Status       string `db:"status"`
	StatusReason string `db:"status_reason"`
	Logs         string `db:"logs"`
}

type UpdatableDeploymentFields struct {
	Ended        *string
	State        *string
	Status       *string
	StatusReason *string
	Logs         *string
}

func (db *DB) ListDeployments(conn Queryable, offset, limit int, namespace, pipeline string) ([]Deployment, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "pipeline", "id", "start_version", "end_version", "started", "ended",
		"state", "status", "status_reason", "logs").
		From("deployments").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	deployments := []Deployment{}
	err := conn.Select(&deployments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return deployments, nil
}

// ListRunningDeployments returns deployments still in state RUNNING. The deployment
// machinery uses this to refuse a second concurrent deployment per pipeline.
func (db *DB) ListRunningDeployments(conn Queryable, offset, limit int, namespace, pipeline string) ([]Deployment, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "pipeline", "id", "start_version", "end_version", "started", "ended",
		"state", "status", "status_reason", "logs").
		From("deployments").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "state": "RUNNING"}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	deployments := []Deployment{}
	err := conn.Select(&deployments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return deployments, nil
}

func (db *DB) GetLatestDeployment(conn Queryable, namespace, pipeline string) (Deployment, error) {
	query, args := qb.Select("namespace", "pipeline", "id", "start_version", "end_version", "started", "ended",
		"state", "status", "status_reason", "logs").
		From("deployments").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("id DESC").
		Limit(1).MustSql()

	deployment := Deployment{}
	err := conn.Get(&deployment, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deployment{}, ErrEntityNotFound
		}

		return Deployment{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return deployment, nil
}

func (db *DB) InsertDeployment(conn Queryable, deployment *Deployment) error {
	_, err := qb.Insert("deployments").Columns("namespace", "pipeline", "id", "start_version", "end_version",
		"started", "ended", "state", "status", "status_reason", "logs").Values(
		deployment.Namespace, deployment.Pipeline, deployment.ID, deployment.StartVersion, deployment.EndVersion,
		deployment.Started, deployment.Ended, deployment.State, deployment.Status, deployment.StatusReason,
		deployment.Logs).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetDeployment(conn Queryable, namespace, pipeline string, id int64) (Deployment, error) {
	query, args := qb.Select("namespace", "pipeline", "id", "start_version", "end_version", "started", "ended",
		"state", "status", "status_reason", "logs").
		From("deployments").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).MustSql()

	deployment := Deployment{}
	err := conn.Get(&deployment, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deployment{}, ErrEntityNotFound
		}

		return Deployment{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return deployment, nil
}

func (db *DB) UpdateDeployment(conn Queryable, namespace, pipeline string, id int64, fields UpdatableDeploymentFields) error {
	query := qb.Update("deployments")

	updated := false

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

	if fields.Logs != nil {
		query = query.Set("logs", fields.Logs)
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

func (db *DB) DeleteDeployment(conn Queryable, namespace, pipeline string, id int64) error {
	_, err := qb.Delete("deployments").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
