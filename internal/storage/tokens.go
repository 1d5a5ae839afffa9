package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

type Token struct {
	ID         string `db:"id"`
	Hash       string `db:"hash"`
	Created    string `db:"created"`
	Kind       string `db:"kind"`
	Namespaces string `db:"namespaces"`
	Metadata   string `db:"metadata"`
	Expires    string `db:"expires"`
	Disabled   bool   `db:"disabled"`
}

type UpdatableTokenFields struct {
	Disabled *bool
}

func (db *DB) ListTokens(conn Queryable, offset, limit int) ([]Token, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").
		OrderBy("created ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	tokens := []Token{}
	err := conn.Select(&tokens, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return tokens, nil
}

func (db *DB) InsertToken(conn Queryable, token *Token) error {
	_, err := qb.Insert("tokens").Columns("id", "hash", "created", "kind", "namespaces", "metadata",
		"expires", "disabled").Values(
		token.ID, token.Hash, token.Created, token.Kind, token.Namespaces, token.Metadata,
		token.Expires, token.Disabled).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetToken(conn Queryable, id string) (Token, error) {
	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").Where(qb.Eq{"id": id}).MustSql()

	token := Token{}
	err := conn.Get(&token, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrEntityNotFound
		}

		return Token{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return token, nil
}

func (db *DB) GetTokenByHash(conn Queryable, hash string) (Token, error) {
	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").Where(qb.Eq{"hash": hash}).MustSql()

	token := Token{}
	err := conn.Get(&token, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrEntityNotFound
		}

		return Token{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return token, nil
}

// ListTokensByKind supports the bootstrap route's "exactly one management token" check.
func (db *DB) ListTokensByKind(conn Queryable, kind string) ([]Token, error) {
	query, args := qb.Select("id", "hash", "created", "kind", "namespaces", "metadata", "expires", "disabled").
		From("tokens").Where(qb.Eq{"kind": kind}).MustSql()

	tokens := []Token{}
	err := conn.Select(&tokens, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return tokens, nil
}

func (db *DB) UpdateToken(conn Queryable, id string, fields UpdatableTokenFields) error {
	query := qb.Update("tokens")

	updated := false

	if fields.Disabled != nil {
		query = query.Set("disabled", fields.Disabled)
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

func (db *DB) DeleteToken(conn Queryable, id string) error {
	_, err := qb.Delete("tokens").Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
