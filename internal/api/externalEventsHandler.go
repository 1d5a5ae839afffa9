package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Extensions that react to outside systems (webhooks from source forges and the like) receive
// those payloads through a separate unauthenticated HTTP service. The service itself does no
// parsing; it simply hands the raw payload and headers to the addressed extension which knows
// how to verify and interpret them.
const maxExternalEventPayloadSize = 1 << 20 // 1MiB

type externalEventRequest struct {
	Headers map[string][]string `json:"headers"`
	Payload []byte              `json:"payload"`
}

func (apictx *APIContext) externalEventHandler(resp http.ResponseWriter, req *http.Request) {
	extensionID := chi.URLParam(req, "extension_id")

	extension, exists := apictx.extensions.Get(extensionID)
	if !exists {
		http.Error(resp, "extension not found", http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(req.Body, maxExternalEventPayloadSize))
	if err != nil {
		http.Error(resp, "could not read request body", http.StatusBadRequest)
		return
	}

	err = apictx.requestExtension(extension, http.MethodPost, extensionExternalRoute,
		&externalEventRequest{
			Headers: req.Header,
			Payload: payload,
		}, nil)
	if err != nil {
		log.Error().Err(err).Str("extension_id", extensionID).
			Msg("could not forward external event to extension")
		http.Error(resp, "could not forward event to extension", http.StatusBadGateway)
		return
	}

	resp.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(resp).Encode(map[string]string{"status": "accepted"})
}

// startExternalEventsService runs the external events endpoint on its own port so operators can
// expose it to the internet without exposing the main API.
func (apictx *APIContext) startExternalEventsService() {
	router := chi.NewRouter()
	router.Post("/external/{extension_id}", apictx.externalEventHandler)

	httpServer := http.Server{
		Addr:         apictx.config.ExternalEventsAPI.Host,
		Handler:      router,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Info().Str("url", apictx.config.ExternalEventsAPI.Host).Msg("started gofer external events service")

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("external events service exited abnormally")
	}
}
