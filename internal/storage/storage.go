// Package storage contains the data storage interface in which Gofer stores all internal data.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Provides sqlite3 lib
	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrations embed.FS

var (
	// ErrEntityNotFound is returned when a certain entity could not be located.
	ErrEntityNotFound = errors.New("storage: entity not found")

	// ErrEntityExists is returned when a certain entity was located but not meant to be.
	ErrEntityExists = errors.New("storage: entity already exists")

	// ErrEntityUpdateFieldsEmpty is returned when an update request has no fields set.
	ErrEntityUpdateFieldsEmpty = errors.New("storage: no fields provided for update")

	// ErrPreconditionFailure is returned when there was a validation error with the parameters passed.
	ErrPreconditionFailure = errors.New("storage: parameters did not pass validation")

	// ErrInternal is returned when there was an unknown internal DB error.
	ErrInternal = errors.New("storage: unknown db error")
)

// Queryable includes methods shared by sqlx.Tx and sqlx.DB so they can
// be used interchangeably.
type Queryable interface {
	sqlx.Queryer
	sqlx.Execer
	GetContext(context.Context, interface{}, string, ...interface{}) error
	SelectContext(context.Context, interface{}, string, ...interface{}) error
	Get(interface{}, string, ...interface{}) error
	MustExecContext(context.Context, string, ...interface{}) sql.Result
	PreparexContext(context.Context, string) (*sqlx.Stmt, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	Select(interface{}, string, ...interface{}) error
	QueryRow(string, ...interface{}) *sql.Row
	PrepareNamedContext(context.Context, string) (*sqlx.NamedStmt, error)
	PrepareNamed(string) (*sqlx.NamedStmt, error)
	Preparex(string) (*sqlx.Stmt, error)
	NamedExec(string, interface{}) (sql.Result, error)
	NamedExecContext(context.Context, string, interface{}) (sql.Result, error)
	MustExec(string, ...interface{}) sql.Result
	NamedQuery(string, interface{}) (*sqlx.Rows, error)
}

// DB is a representation of the datastore. Sqlite serializes all writes, so instead of
// letting write transactions fight over the same connections as reads (and surface as
// "database is locked" errors under load), we keep two pools: a many-connection pool
// used only for reads and a single-connection pool through which every write funnels.
type DB struct {
	maxResultsLimit int
	readPool        *sqlx.DB
	writePool       *sqlx.DB
}

func mustReadFile(path string) []byte {
	file, err := migrations.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("could not read migrations file")
	}

	return file
}

// New creates a new db with given settings
func New(path string, maxResultsLimit int) (DB, error) {
	dsn := fmt.Sprintf("%s?_journal=wal&_fk=true&_timeout=5000", path)

	readPool, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return DB{}, err
	}

	writePool, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return DB{}, err
	}

	writePool.SetMaxOpenConns(1)

	migration := migrate{
		Migrations: []migration{
			migrationQuery("0", string(mustReadFile("migrations/0_init.sql"))),
		},
	}

	err = migration.migrate(writePool, "sqlite3")
	if err != nil {
		return DB{}, err
	}

	return DB{
		maxResultsLimit: maxResultsLimit,
		readPool:        readPool,
		writePool:       writePool,
	}, nil
}

// Read returns the connection pool meant for read-only queries.
func (db *DB) Read() Queryable {
	return db.readPool
}

// Write returns the single-connection pool through which all mutations must pass.
func (db *DB) Write() Queryable {
	return db.writePool
}

// Close releases both underlying connection pools.
func (db *DB) Close() error {
	rerr := db.readPool.Close()
	werr := db.writePool.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// InsideTx runs the given closure inside a write transaction, committing on a nil
// return and rolling back otherwise. The leading no-op write against the sentinel
// table forces sqlite to take the write lock on BEGIN instead of on the first real
// statement, which keeps concurrent writers queued at the driver rather than
// failing mid-transaction with SQLITE_BUSY.
func (db *DB) InsideTx(fn func(*sqlx.Tx) error) error {
	tx, err := db.writePool.Beginx()
	if err != nil {
		return err
	}

	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if _, err := tx.Exec("UPDATE sentinel SET id = id"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquiring write lock: %w", err)
	}

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
