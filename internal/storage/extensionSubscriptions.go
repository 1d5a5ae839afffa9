package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type ExtensionSubscription struct {
	Namespace    string `db:"namespace"`
	Pipeline     string `db:"pipeline"`
	ExtensionID  string `db:"extension_id"`
	Label        string `db:"label"`
	Settings     string `db:"settings"`
	Status       string `db:"status"`
	StatusReason string `db:"status_reason"`
}

type UpdatableExtensionSubscriptionFields struct {
	Settings     *string
	Status       *string
	StatusReason *string
}

func (db *DB) ListExtensionSubscriptions(conn Queryable, namespace, pipeline string) ([]ExtensionSubscription, error) {
	query, args := qb.Select("namespace", "pipeline", "extension_id", "label", "settings", "status", "status_reason").
		From("extension_subscriptions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("extension_id ASC, label ASC").MustSql()

	subscriptions := []ExtensionSubscription{}
	err := conn.Select(&subscriptions, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return subscriptions, nil
}

// ListExtensionSubscriptionsByExtension returns every pipeline subscription attached to an
// extension, across all namespaces. Used when an extension is uninstalled.
func (db *DB) ListExtensionSubscriptionsByExtension(conn Queryable, extension string) ([]ExtensionSubscription, error) {
	query, args := qb.Select("namespace", "pipeline", "extension_id", "label", "settings", "status", "status_reason").
		From("extension_subscriptions").
		Where(qb.Eq{"extension_id": extension}).
		OrderBy("namespace ASC, pipeline ASC").MustSql()

	subscriptions := []ExtensionSubscription{}
	err := conn.Select(&subscriptions, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return subscriptions, nil
}

func (db *DB) InsertExtensionSubscription(conn Queryable, subscription *ExtensionSubscription) error {
	_, err := qb.Insert("extension_subscriptions").Columns("namespace", "pipeline", "extension_id", "label",
		"settings", "status", "status_reason").Values(
		subscription.Namespace, subscription.Pipeline, subscription.ExtensionID, subscription.Label,
		subscription.Settings, subscription.Status, subscription.StatusReason).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetExtensionSubscription(conn Queryable, namespace, pipeline, extension, label string) (
	ExtensionSubscription, error,
) {
	query, args := qb.Select("namespace", "pipeline", "extension_id", "label", "settings", "status", "status_reason").
		From("extension_subscriptions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "extension_id": extension, "label": label}).
		MustSql()

	subscription := ExtensionSubscription{}
	err := conn.Get(&subscription, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExtensionSubscription{}, ErrEntityNotFound
		}

		return ExtensionSubscription{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return subscription, nil
}

func (db *DB) UpdateExtensionSubscription(conn Queryable, namespace, pipeline, extension, label string,
	fields UpdatableExtensionSubscriptionFields,
) error {
	query := qb.Update("extension_subscriptions")

	updated := false

	if fields.Settings != nil {
		query = query.Set("settings", fields.Settings)
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

	if !updated {
		return ErrEntityUpdateFieldsEmpty
	}

	_, err := query.Where(qb.Eq{
		"namespace": namespace, "pipeline": pipeline, "extension_id": extension, "label": label,
	}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteExtensionSubscription(conn Queryable, namespace, pipeline, extension, label string) error {
	_, err := qb.Delete("extension_subscriptions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "extension_id": extension, "label": label}).
		RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
