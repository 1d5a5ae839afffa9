// Package app is the setup package for all things API related. It properly initializes all other
// required API components and starts the main API service.
package app

import (
	"fmt"

	"github.com/clintjedwards/gofer/internal/api"
	"github.com/clintjedwards/gofer/internal/config"
	objectstore "github.com/clintjedwards/gofer/internal/objectStore"
	objectSqlite "github.com/clintjedwards/gofer/internal/objectStore/sqlite"
	"github.com/clintjedwards/gofer/internal/scheduler"
	"github.com/clintjedwards/gofer/internal/scheduler/docker"
	secretstore "github.com/clintjedwards/gofer/internal/secretStore"
	secretSqlite "github.com/clintjedwards/gofer/internal/secretStore/sqlite"
	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/rs/zerolog/log"
)

// StartServices initializes all required services and blocks until the API service exits.
func StartServices(conf *config.API) {
	if conf.DevMode {
		log.Warn().Msg("server in development mode; not for use in production")
	}

	db, err := storage.New(conf.Server.StoragePath, conf.Server.StorageResultsLimit)
	if err != nil {
		log.Fatal().Err(err).Str("path", conf.Server.StoragePath).Msg("could not init storage")
	}

	log.Info().Str("path", conf.Server.StoragePath).Msg("storage initialized")

	newScheduler, err := initScheduler(conf.Scheduler)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init scheduler")
	}

	log.Info().Str("engine", conf.Scheduler.Engine).Msg("scheduler engine initialized")

	newObjectStore, err := initObjectStore(conf.ObjectStore)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init object store")
	}

	log.Info().Str("engine", conf.ObjectStore.Engine).Msg("object store engine initialized")

	newSecretStore, err := initSecretStore(conf.SecretStore)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init secret store")
	}

	log.Info().Str("engine", conf.SecretStore.Engine).Msg("secret store engine initialized")

	apictx, err := api.NewAPIContext(conf, db, newScheduler, newObjectStore, newSecretStore)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init api")
	}

	apictx.StartAPIService()
}

func initScheduler(conf *config.Scheduler) (scheduler.Engine, error) {
	switch conf.Engine {
	case "docker":
		engine, err := docker.New(conf.Docker.Prune, conf.Docker.PruneInterval)
		if err != nil {
			return nil, err
		}

		return engine, nil
	default:
		return nil, fmt.Errorf("scheduler engine %q not implemented", conf.Engine)
	}
}

func initObjectStore(conf *config.ObjectStore) (objectstore.Engine, error) {
	switch conf.Engine {
	case "sqlite":
		engine, err := objectSqlite.New(conf.Sqlite.Path)
		if err != nil {
			return nil, err
		}

		return &engine, nil
	default:
		return nil, fmt.Errorf("object store engine %q not implemented", conf.Engine)
	}
}

func initSecretStore(conf *config.SecretStore) (secretstore.Engine, error) {
	switch conf.Engine {
	case "sqlite":
		engine, err := secretSqlite.New(conf.Sqlite.Path, conf.Sqlite.EncryptionKey)
		if err != nil {
			return nil, err
		}

		return &engine, nil
	default:
		return nil, fmt.Errorf("secret store engine %q not implemented", conf.Engine)
	}
}
