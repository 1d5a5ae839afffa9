package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type Role struct {
	ID          string `db:"id"`
	Description string `db:"description"`
	Permissions string `db:"permissions"`
	SystemRole  bool   `db:"system_role"`
}

type UpdatableRoleFields struct {
	Description *string
	Permissions *string
}

func (db *DB) ListRoles(conn Queryable, offset, limit int) ([]Role, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("id", "description", "permissions", "system_role").
		From("roles").
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	roles := []Role{}
	err := conn.Select(&roles, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return roles, nil
}

func (db *DB) InsertRole(conn Queryable, role *Role) error {
	_, err := qb.Insert("roles").Columns("id", "description", "permissions", "system_role").Values(
		role.ID, role.Description, role.Permissions, role.SystemRole).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetRole(conn Queryable, id string) (Role, error) {
	query, args := qb.Select("id", "description", "permissions", "system_role").
		From("roles").Where(qb.Eq{"id": id}).MustSql()

	role := Role{}
	err := conn.Get(&role, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, ErrEntityNotFound
		}

		return Role{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return role, nil
}

func (db *DB) UpdateRole(conn Queryable, id string, fields UpdatableRoleFields) error {
	query := qb.Update("roles")

	updated := false

	if fields.Description != nil {
		query = query.Set("description", fields.Description)
		updated = true
	}

	if fields.Permissions != nil {
		query = query.Set("permissions", fields.Permissions)
		updated = true
	}

	if !updated {
		return ErrEntityUpdateFieldsEmpty
	}

	_, err := query.Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteRole(conn Queryable, id string) error {
	_, err := qb.Delete("roles").Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
