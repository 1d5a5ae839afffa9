package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type Task struct {
	Namespace             string `db:"namespace"`
	Pipeline              string `db:"pipeline"`
	PipelineConfigVersion int64  `db:"pipeline_config_version"`
	ID                    string `db:"id"`
	Description           string `db:"description"`
	Image                 string `db:"image"`
	RegistryAuth          string `db:"registry_auth"`
	DependsOn             string `db:"depends_on"`
	Variables             string `db:"variables"`
	Entrypoint            string `db:"entrypoint"`
	Command               string `db:"command"`
	InjectAPIToken        bool   `db:"inject_api_token"`
}

func (db *DB) ListTasks(conn Queryable, namespace, pipeline string, version int64) ([]Task, error) {
	query, args := qb.Select("namespace", "pipeline", "pipeline_config_version", "id", "description", "image",
		"registry_auth", "depends_on", "variables", "entrypoint", "command", "inject_api_token").
		From("tasks").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "pipeline_config_version": version}).
		OrderBy("id ASC").MustSql()

	tasks := []Task{}
	err := conn.Select(&tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return tasks, nil
}

func (db *DB) InsertTask(conn Queryable, task *Task) error {
	_, err := qb.Insert("tasks").Columns("namespace", "pipeline", "pipeline_config_version", "id", "description",
		"image", "registry_auth", "depends_on", "variables", "entrypoint", "command", "inject_api_token").Values(
		task.Namespace, task.Pipeline, task.PipelineConfigVersion, task.ID, task.Description, task.Image,
		task.RegistryAuth, task.DependsOn, task.Variables, task.Entrypoint, task.Command, task.InjectAPIToken).
		RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetTask(conn Queryable, namespace, pipeline string, version int64, id string) (Task, error) {
	query, args := qb.Select("namespace", "pipeline", "pipeline_config_version", "id", "description", "image",
		"registry_auth", "depends_on", "variables", "entrypoint", "command", "inject_api_token").
		From("tasks").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "pipeline_config_version": version, "id": id}).
		MustSql()

	task := Task{}
	err := conn.Get(&task, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrEntityNotFound
		}

		return Task{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return task, nil
}

func (db *DB) DeleteTasks(conn Queryable, namespace, pipeline string, version int64) error {
	_, err := qb.Delete("tasks").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "pipeline_config_version": version}).
		RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
