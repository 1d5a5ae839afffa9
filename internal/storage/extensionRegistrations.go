package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type ExtensionRegistration struct {
	ID           string `db:"id"`
	Image        string `db:"image"`
	RegistryAuth string `db:"registry_auth"`
	Variables    string `db:"variables"`
	Created      string `db:"created"`
	Modified     string `db:"modified"`
	Status       string `db:"status"`
	KeyID        string `db:"key_id"`
}

type UpdatableExtensionRegistrationFields struct {
	Image        *string
	RegistryAuth *string
	Variables    *string
	Modified     *string
	Status       *string
	KeyID        *string
}

func (db *DB) ListExtensionRegistrations(conn Queryable, offset, limit int) ([]ExtensionRegistration, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("id", "image", "registry_auth", "variables", "created", "modified", "status", "key_id").
		From("extension_registrations").
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	registrations := []ExtensionRegistration{}
	err := conn.Select(&registrations, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return registrations, nil
}

func (db *DB) InsertExtensionRegistration(conn Queryable, registration *ExtensionRegistration) error {
	_, err := qb.Insert("extension_registrations").Columns("id", "image", "registry_auth", "variables",
		"created", "modified", "status", "key_id").Values(
		registration.ID, registration.Image, registration.RegistryAuth, registration.Variables,
		registration.Created, registration.Modified, registration.Status, registration.KeyID).
		RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetExtensionRegistration(conn Queryable, id string) (ExtensionRegistration, error) {
	query, args := qb.Select("id", "image", "registry_auth", "variables", "created", "modified", "status", "key_id").
		From("extension_registrations").Where(qb.Eq{"id": id}).MustSql()

	registration := ExtensionRegistration{}
	err := conn.Get(&registration, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExtensionRegistration{}, ErrEntityNotFound
		}

		return ExtensionRegistration{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return registration, nil
}

func (db *DB) UpdateExtensionRegistration(conn Queryable, id string, fields UpdatableExtensionRegistrationFields) error {
	query := qb.Update("extension_registrations")

	updated := false

	if fields.Image != nil {
		query = query.Set("image", fields.Image)
		updated = true
	}

	if fields.RegistryAuth != nil {
		query = query.Set("registry_auth", fields.RegistryAuth)
		updated = true
	}

	if fields.Variables != nil {
		query = query.Set("variables", fields.Variables)
		updated = true
	}

	if fields.Modified != nil {
		query = query.Set("modified", fields.Modified)
		updated = true
	}

	if fields.Status != nil {
		query = query.Set("status", fields.Status)
		updated = true
	}

	if fields.KeyID != nil {
		query = query.Set("key_id", fields.KeyID)
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

func (db *DB) DeleteExtensionRegistration(conn Queryable, id string) error {
	_, err := qb.Delete("extension_registrations").Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
