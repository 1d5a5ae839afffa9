package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type TaskExecution struct {
	Namespace    string `db:"namespace"`
	Pipeline     string `db:"pipeline"`
	Run          int64  `db:"run"`
	ID           string `db:"id"`
	Task         string `db:"task"`
	Created      string `db:"created"`
	Started      string `db:"started"`
	Ended        string `db:"ended"`
	ExitCode     int64  `db:"exit_code"`
	LogsExpired  bool   `db:"logs_expired"`
	LogsRemoved  bool   `db:"logs_removed"`
	State        string `db:"state"`
	Status       string `db:"status"`
	StatusReason string `db:"status_reason"`
	Variables    string `db:"variables"`
}

type UpdatableTaskExecutionFields struct {
	Started      *string
	Ended        *string
	ExitCode     *int64
	State        *string
	Status       *string
	StatusReason *string
	LogsExpired  *bool
	LogsRemoved  *bool
	Variables    *string
}

func (db *DB) ListTaskExecutions(conn Queryable, offset, limit int, namespace, pipeline string, run int64) (
	[]TaskExecution, error,
) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "pipeline", "run", "id", "task", "created", "started", "ended",
		"exit_code", "logs_expired", "logs_removed", "state", "status", "status_reason", "variables").
		From("task_executions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run}).
		OrderBy("started ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	taskExecutions := []TaskExecution{}
	err := conn.Select(&taskExecutions, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return taskExecutions, nil
}

func (db *DB) InsertTaskExecution(conn Queryable, taskExecution *TaskExecution) error {
	_, err := qb.Insert("task_executions").Columns("namespace", "pipeline", "run", "id", "task", "created",
		"started", "ended", "exit_code", "logs_expired", "logs_removed", "state", "status", "status_reason",
		"variables").Values(
		taskExecution.Namespace, taskExecution.Pipeline, taskExecution.Run, taskExecution.ID, taskExecution.Task,
		taskExecution.Created, taskExecution.Started, taskExecution.Ended, taskExecution.ExitCode,
		taskExecution.LogsExpired, taskExecution.LogsRemoved, taskExecution.State, taskExecution.Status,
		taskExecution.StatusReason, taskExecution.Variables).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetTaskExecution(conn Queryable, namespace, pipeline string, run int64, id string) (TaskExecution, error) {
	query, args := qb.Select("namespace", "pipeline", "run", "id", "task", "created", "started", "ended",
		"exit_code", "logs_expired", "logs_removed", "state", "status", "status_reason", "variables").
		From("task_executions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run, "id": id}).MustSql()

	taskExecution := TaskExecution{}
	err := conn.Get(&taskExecution, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TaskExecution{}, ErrEntityNotFound
		}

		return TaskExecution{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return taskExecution, nil
}

func (db *DB) UpdateTaskExecution(conn Queryable, namespace, pipeline string, run int64, id string,
	fields UpdatableTaskExecutionFields,
) error {
	query := qb.Update("task_executions")

	updated := false

	if fields.Started != nil {
		query = query.Set("started", fields.Started)
		updated = true
	}

	if fields.Ended != nil {
		query = query.Set("ended", fields.Ended)
		updated = true
	}

	if fields.ExitCode != nil {
		query = query.Set("exit_code", fields.ExitCode)
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

	if fields.LogsExpired != nil {
		query = query.Set("logs_expired", fields.LogsExpired)
		updated = true
	}

	if fields.LogsRemoved != nil {
		query = query.Set("logs_removed", fields.LogsRemoved)
		updated = true
	}

	if fields.Variables != nil {
		query = query.Set("variables", fields.Variables)
		updated = true
	}

	if !updated {
		return ErrEntityUpdateFieldsEmpty
	}

	_, err := query.Where(qb.Eq{
		"namespace": namespace, "pipeline": pipeline, "run": run, "id": id,
	}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteTaskExecution(conn Queryable, namespace, pipeline string, run int64, id string) error {
	_, err := qb.Delete("task_executions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run, "id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
