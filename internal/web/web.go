// Package web serves the cached entities as JSON and lets clients schedule refreshes.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/cache"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/harvest"
	"github.com/sidereusnuntius/fedicache/internal/queue"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

// Actor is the identity the harvester signs its requests with. It is published so that servers
// requiring signed fetches can verify them.
type Actor struct {
	Account      domain.AccountID
	IRI          *url.URL
	PublicKeyPem string
}

type Handler struct {
	// Store is the store the caches below read from.
	Store     storage.EntityStore
	Profiles  *cache.ProfileCache
	Relations *cache.RelationCache
	Collector *harvest.TimelineCollector
	Expander  *harvest.NeighborhoodExpander
	// Queue is optional; without it refreshes cannot be scheduled.
	Queue queue.RefreshQueue
	// Actor is optional.
	Actor *Actor
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("unable to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{err.Error()})
}

func statusOf(err error) int {
	var fe *remote.FetchError
	switch {
	case errors.Is(err, domain.ErrInvalidAccount), errors.Is(err, errBadParameter):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrNotFound), errors.Is(err, harvest.ErrSeedUnavailable), errors.Is(err, storage.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
