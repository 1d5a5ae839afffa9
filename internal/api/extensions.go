package api

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/clintjedwards/gofer/internal/scheduler"
	"github.com/clintjedwards/gofer/internal/storage"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Extensions expose a small HTTP surface of their own which the main service drives. Every request
// carries the extension's pre-shared key as a bearer token so extensions only ever answer to the
// service that started them.
const (
	extensionHealthRoute      = "/api/health"
	extensionInfoRoute        = "/api/info"
	extensionSubscribeRoute   = "/api/subscribe"
	extensionUnsubscribeRoute = "/api/unsubscribe"
	extensionShutdownRoute    = "/api/shutdown"
	extensionExternalRoute    = "/api/external-event"
)

type extensionInfoResponse struct {
	Documentation string `json:"documentation"`
}

type extensionSubscriptionRequest struct {
	NamespaceID            string            `json:"namespace_id"`
	PipelineID             string            `json:"pipeline_id"`
	PipelineExtensionLabel string            `json:"pipeline_extension_label"`
	Settings               map[string]string `json:"settings,omitempty"`
}

func (apictx *APIContext) extensionHTTPClient() *http.Client {
	transport := &http.Transport{}
	if apictx.config.DevMode {
		// Extensions run with the baked-in development certificate in dev mode.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Second * 30,
	}
}

// requestExtension performs a single authenticated call against an extension's HTTP surface.
// A nil request body sends an empty POST; a nil response target discards the body.
func (apictx *APIContext) requestExtension(extension *models.Extension, method, route string,
	requestBody, responseBody any,
) error {
	var reader io.Reader
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("could not serialize extension request: %w", err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, extension.URL+route, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if extension.Key != nil {
		req.Header.Set("Authorization", "Bearer "+*extension.Key)
	}

	resp, err := apictx.extensionHTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("extension returned status %d: %s", resp.StatusCode, string(body))
	}

	if responseBody != nil {
		err = json.NewDecoder(resp.Body).Decode(responseBody)
		if err != nil {
			return fmt.Errorf("could not deserialize extension response: %w", err)
		}
	}

	return nil
}

// startExtension launches a single registered extension and waits until it answers healthchecks.
// The extension's auth key is regenerated on every start so the key in the container and the key
// in the database can never drift apart.
func (apictx *APIContext) startExtension(registration models.ExtensionRegistration, tlsCert, tlsKey string) error {
	token, hash := apictx.createNewAPIToken()
	newToken := models.NewToken(hash, models.TokenTypeClient, []string{".*"},
		map[string]string{"extension_token": "true"}, time.Hour*876600)

	err := apictx.db.InsideTx(func(tx *sqlx.Tx) error {
		if registration.KeyID != "" {
			_ = apictx.db.DeleteToken(tx, registration.KeyID)
		}

		err := apictx.db.InsertToken(tx, newToken.ToStorage())
		if err != nil {
			return err
		}

		return apictx.db.UpdateExtensionRegistration(tx, registration.ID,
			storage.UpdatableExtensionRegistrationFields{
				KeyID: ptr(newToken.ID),
			})
	})
	if err != nil {
		return fmt.Errorf("could not create new token while starting extension: %w", err)
	}

	registration.KeyID = newToken.ID

	// The environment an extension starts with is the Gofer system variables first and then the
	// operator configured ones, so operators can override anything but the essentials.
	systemExtensionVars := []models.Variable{
		{
			Key:    "GOFER_EXTENSION_SYSTEM_TLS_CERT",
			Value:  tlsCert,
			Source: models.VariableSourceSystem,
		},
		{
			Key:    "GOFER_EXTENSION_SYSTEM_TLS_KEY",
			Value:  tlsKey,
			Source: models.VariableSourceSystem,
		},
		{
			Key:    "GOFER_EXTENSION_SYSTEM_ID",
			Value:  registration.ID,
			Source: models.VariableSourceSystem,
		},
		{
			Key:    "GOFER_EXTENSION_SYSTEM_LOG_LEVEL",
			Value:  apictx.config.LogLevel,
			Source: models.VariableSourceSystem,
		},
		{
			// Pre-shared key. The extension rejects any request that doesn't carry it and Gofer
			// refuses to talk to an extension that doesn't ask for it.
			Key:    "GOFER_EXTENSION_SYSTEM_KEY",
			Value:  token,
			Source: models.VariableSourceSystem,
		},
		{
			Key:    "GOFER_EXTENSION_SYSTEM_GOFER_HOST",
			Value:  apictx.config.Server.Host,
			Source: models.VariableSourceSystem,
		},
		{
			Key:    "GOFER_EXTENSION_SYSTEM_HOST",
			Value:  "0.0.0.0:8082",
			Source: models.VariableSourceSystem,
		},
	}

	envVars := mergeMaps(convertVarsToMap(systemExtensionVars), convertVarsToMap(registration.Variables))

	log.Info().Str("id", registration.ID).Msg("starting extension")

	resp, err := apictx.scheduler.StartContainer(scheduler.StartContainerRequest{
		ID:               extensionContainerID(registration.ID),
		ImageName:        registration.Image,
		EnvVars:          envVars,
		RegistryAuth:     registration.RegistryAuth,
		AlwaysPull:       true,
		EnableNetworking: true,
	})
	if err != nil {
		log.Error().Err(err).Str("id", registration.ID).Msg("could not start extension")
		return err
	}

	extension := &models.Extension{
		Registration: registration,
		URL:          resp.URL,
		Started:      uint64(time.Now().UnixMilli()),
		State:        models.ExtensionStateProcessing,
		Key:          &token,
	}

	// Extensions take a moment to come up; poll the healthcheck before asking for info.
	err = apictx.waitExtensionHealthy(extension, time.Second*30)
	if err != nil {
		log.Error().Err(err).Str("id", registration.ID).Str("image", registration.Image).
			Msg("extension never became healthy")
		return err
	}

	var info extensionInfoResponse
	err = apictx.requestExtension(extension, http.MethodGet, extensionInfoRoute, nil, &info)
	if err != nil {
		log.Error().Err(err).Str("id", registration.ID).Str("image", registration.Image).
			Msg("failed to communicate with extension info endpoint")
		return err
	}

	extension.State = models.ExtensionStateRunning
	extension.Documentation = info.Documentation

	apictx.extensions.Set(registration.ID, extension)

	log.Info().Str("id", registration.ID).Str("url", resp.URL).Msg("started extension")

	go apictx.collectExtensionLogs(extensionContainerID(registration.ID))

	return nil
}

func (apictx *APIContext) waitExtensionHealthy(extension *models.Extension, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		err := apictx.requestExtension(extension, http.MethodGet, extensionHealthRoute, nil, nil)
		if err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for extension to become healthy: %w", err)
		}

		time.Sleep(time.Second)
	}
}

// startExtensions starts all registered extensions and records their network locations so the rest
// of the API can talk to them.
func (apictx *APIContext) startExtensions() error {
	cert, key, err := apictx.getTLSFromFile(apictx.config.Extensions.TLSCertPath,
		apictx.config.Extensions.TLSKeyPath)
	if err != nil {
		return err
	}

	registrations, err := apictx.db.ListExtensionRegistrations(apictx.db.Read(), 0, 0)
	if err != nil {
		return err
	}

	for _, registrationRaw := range registrations {
		var registration models.ExtensionRegistration
		registration.FromStorage(&registrationRaw)

		if registration.Status != models.ExtensionStatusEnabled {
			continue
		}

		err = apictx.startExtension(registration, string(cert), string(key))
		if err != nil {
			return err
		}
	}

	return nil
}

// stopExtensions asks every running extension to shut down gracefully and then tells the scheduler
// to stop the containers.
func (apictx *APIContext) stopExtensions() {
	for _, extensionID := range apictx.extensions.Keys() {
		extension, exists := apictx.extensions.Get(extensionID)
		if !exists {
			continue
		}

		err := apictx.requestExtension(extension, http.MethodPost, extensionShutdownRoute, nil, nil)
		if err != nil {
			log.Debug().Err(err).Str("id", extensionID).Msg("could not send shutdown to extension")
		}

		err = apictx.scheduler.StopContainer(scheduler.StopContainerRequest{
			ID:      extensionContainerID(extensionID),
			Timeout: apictx.config.Extensions.StopTimeout,
		})
		if err != nil {
			log.Debug().Err(err).Str("id", extensionID).Msg("could not stop extension container")
		}

		apictx.extensions.Delete(extensionID)
	}
}

// stopExtension shuts a single extension down and removes it from the in-memory registry.
func (apictx *APIContext) stopExtension(id string) {
	extension, exists := apictx.extensions.Get(id)
	if exists {
		err := apictx.requestExtension(extension, http.MethodPost, extensionShutdownRoute, nil, nil)
		if err != nil {
			log.Debug().Err(err).Str("id", id).Msg("could not send shutdown to extension")
		}
	}

	err := apictx.scheduler.StopContainer(scheduler.StopContainerRequest{
		ID:      extensionContainerID(id),
		Timeout: apictx.config.Extensions.StopTimeout,
	})
	if err != nil {
		log.Debug().Err(err).Str("id", id).Msg("could not stop extension container")
	}

	apictx.extensions.Delete(id)
}

// sendSubscribeToExtension tells an extension about a pipeline subscription. Subscription settings
// may carry store references so they pass through variable interpolation first.
func (apictx *APIContext) sendSubscribeToExtension(subscription *models.PipelineExtensionSubscription) error {
	extension, exists := apictx.extensions.Get(subscription.ExtensionID)
	if !exists {
		return fmt.Errorf("extension %q is not currently running", subscription.ExtensionID)
	}

	convertedSettings := convertVarsToSlice(subscription.Settings, models.VariableSourcePipelineConfig)
	interpolatedSettings, err := apictx.interpolateVars(subscription.NamespaceID, subscription.PipelineID,
		nil, convertedSettings)
	if err != nil {
		return fmt.Errorf("could not interpolate subscription settings: %w", err)
	}

	return apictx.requestExtension(extension, http.MethodPost, extensionSubscribeRoute,
		&extensionSubscriptionRequest{
			NamespaceID:            subscription.NamespaceID,
			PipelineID:             subscription.PipelineID,
			PipelineExtensionLabel: subscription.Label,
			Settings:               convertVarsToMap(interpolatedSettings),
		}, nil)
}

// sendUnsubscribeToExtension removes a pipeline subscription from an extension.
func (apictx *APIContext) sendUnsubscribeToExtension(subscription *models.PipelineExtensionSubscription) error {
	extension, exists := apictx.extensions.Get(subscription.ExtensionID)
	if !exists {
		return fmt.Errorf("extension %q is not currently running", subscription.ExtensionID)
	}

	return apictx.requestExtension(extension, http.MethodPost, extensionUnsubscribeRoute,
		&extensionSubscriptionRequest{
			NamespaceID:            subscription.NamespaceID,
			PipelineID:             subscription.PipelineID,
			PipelineExtensionLabel: subscription.Label,
		}, nil)
}

// restoreExtensionSubscriptions re-registers every stored subscription with its extension.
// Extensions are stateless and only learn about pipelines through subscribe calls, so this has to
// happen on every startup.
func (apictx *APIContext) restoreExtensionSubscriptions() error {
	pipelines, err := apictx.collectAllPipelines()
	if err != nil {
		return fmt.Errorf("could not restore extension subscriptions: %w", err)
	}

	for _, pipeline := range pipelines {
		subscriptions, err := apictx.db.ListExtensionSubscriptions(apictx.db.Read(), pipeline.Namespace,
			pipeline.ID)
		if err != nil {
			return fmt.Errorf("could not restore extension subscriptions: %w", err)
		}

		for _, subscriptionRaw := range subscriptions {
			var subscription models.PipelineExtensionSubscription
			subscription.FromStorage(&subscriptionRaw)

			err = apictx.sendSubscribeToExtension(&subscription)
			if err != nil {
				statusReason := models.ExtensionSubscriptionStatusReason{
					Reason:      models.ExtensionSubscriptionStatusReasonExtensionSubscriptionFailed,
					Description: fmt.Sprintf("Could not restore subscription: %v", err),
				}

				storageErr := apictx.db.UpdateExtensionSubscription(apictx.db.Write(), pipeline.Namespace,
					pipeline.ID, subscription.ExtensionID, subscription.Label,
					storage.UpdatableExtensionSubscriptionFields{
						Status:       ptr(string(models.ExtensionSubscriptionStatusError)),
						StatusReason: ptr(statusReason.ToJSON()),
					})
				if storageErr != nil {
					log.Error().Err(storageErr).Msg("could not update subscription status")
				}

				log.Error().Err(err).Str("extension_label", subscription.Label).
					Str("extension_id", subscription.ExtensionID).Str("pipeline", pipeline.ID).
					Str("namespace", pipeline.Namespace).Msg("could not restore subscription")
				continue
			}

			log.Debug().Str("pipeline", pipeline.ID).Str("extension_label", subscription.Label).
				Str("extension_id", subscription.ExtensionID).Msg("restored subscription")
		}
	}

	return nil
}

// healthcheckExtensions periodically pings every running extension and flips its state on failure
// so operators can tell a wedged extension from a healthy one.
func (apictx *APIContext) healthcheckExtensions() {
	for {
		select {
		case <-apictx.context.ctx.Done():
			return
		case <-time.After(apictx.config.Extensions.HealthcheckInterval):
		}

		for _, extensionID := range apictx.extensions.Keys() {
			extension, exists := apictx.extensions.Get(extensionID)
			if !exists {
				continue
			}

			err := apictx.requestExtension(extension, http.MethodGet, extensionHealthRoute, nil, nil)

			newState := models.ExtensionStateRunning
			if err != nil {
				newState = models.ExtensionStateUnknown
				log.Error().Err(err).Str("id", extensionID).Msg("extension failed healthcheck")
			}

			if extension.State != newState {
				extension.State = newState
				apictx.extensions.Set(extensionID, extension)
			}
		}
	}
}

// installBaseExtensions registers the cron and interval extensions if they aren't present. Having
// them out of the box gives new installs working scheduling primitives without any setup.
func (apictx *APIContext) installBaseExtensions() error {
	baseExtensions := map[string]string{
		"cron":     "ghcr.io/clintjedwards/gofer/extensions/cron:latest",
		"interval": "ghcr.io/clintjedwards/gofer/extensions/interval:latest",
	}

	for id, image := range baseExtensions {
		_, err := apictx.db.GetExtensionRegistration(apictx.db.Read(), id)
		if err == nil {
			continue
		}

		if !errors.Is(err, storage.ErrEntityNotFound) {
			return err
		}

		registration := models.NewExtensionRegistration(id, image, nil, nil)

		err = apictx.db.InsertExtensionRegistration(apictx.db.Write(), registration.ToStorage())
		if err != nil && !errors.Is(err, storage.ErrEntityExists) {
			return err
		}

		apictx.events.Publish(models.EventInstalledExtension{
			ID:    id,
			Image: image,
		})

		log.Info().Str("id", id).Str("image", image).Msg("registered base extension")
	}

	return nil
}

// collectAllPipelines returns the pipeline metadata of every pipeline across all namespaces.
func (apictx *APIContext) collectAllPipelines() ([]storage.PipelineMetadata, error) {
	namespaces, err := apictx.db.ListNamespaces(apictx.db.Read(), 0, 0)
	if err != nil {
		return nil, err
	}

	pipelines := []storage.PipelineMetadata{}

	for _, namespace := range namespaces {
		namespacePipelines, err := apictx.db.ListPipelineMetadata(apictx.db.Read(), 0, 0, namespace.ID)
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, namespacePipelines...)
	}

	return pipelines, nil
}

// collectExtensionLogs streams an extension container's logs to stderr so they end up interleaved
// with the main application logs. Blocks until the container shuts down.
func (apictx *APIContext) collectExtensionLogs(containerID string) {
	logReader, err := apictx.scheduler.GetLogs(scheduler.GetLogsRequest{
		ID: containerID,
	})
	if err != nil {
		log.Error().Err(err).Msg("scheduler error; could not get logs")
		return
	}

	scanner := bufio.NewScanner(logReader)
	for scanner.Scan() {
		fmt.Fprintln(os.Stderr, scanner.Text())
	}

	err = scanner.Err()
	if err != nil {
		log.Error().Err(err).Msg("could not properly read from logging stream")
	}
}
