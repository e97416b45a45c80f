package wellknown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/domain"
)

const activityJSON = "application/activity+json"

var ErrNoActor = errors.New("webfinger response has no activitypub actor link")

type WebfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type WebfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []WebfingerLink `json:"links"`
}

// Actor returns the id of the ActivityPub actor the response points to.
func (r WebfingerResponse) Actor() (*url.URL, error) {
	for _, l := range r.Links {
		if l.Rel != "self" {
			continue
		}
		if l.Type == activityJSON || strings.HasPrefix(l.Type, "application/ld+json") {
			return url.Parse(l.Href)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoActor, r.Subject)
}

type JSONGetter interface {
	GetJSON(ctx context.Context, iri *url.URL, accept string, v any) (http.Header, error)
}

// Resolve looks up the actor id of account on its home server.
func Resolve(ctx context.Context, c JSONGetter, scheme string, account domain.AccountID) (*url.URL, error) {
	u := &url.URL{
		Scheme:   scheme,
		Host:     account.Host,
		Path:     "/.well-known/webfinger",
		RawQuery: url.Values{"resource": {"acct:" + account.String()}}.Encode(),
	}

	var res WebfingerResponse
	if _, err := c.GetJSON(ctx, u, "application/jrd+json", &res); err != nil {
		return nil, err
	}
	return res.Actor()
}

// Mount serves the webfinger document of the harvester's own actor, which remote servers dereference
// to verify signed requests.
func Mount(r chi.Router, account domain.AccountID, actor *url.URL) {
	r.Route("/.well-known/", func(r chi.Router) {
		r.Get("/webfinger", WebfingerEndpoint(account, actor))
	})
}

func WebfingerEndpoint(account domain.AccountID, actor *url.URL) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		requested, err := domain.ParseAccount(strings.TrimPrefix(resource, "acct:"))
		if err != nil {
			http.Error(w, "failed to parse resource", http.StatusBadRequest)
			return
		}

		if requested != account {
			http.Error(w, "", http.StatusNotFound)
			return
		}

		res := WebfingerResponse{
			Subject: resource,
			Links: []WebfingerLink{
				{Rel: "self", Type: activityJSON, Href: actor.String()},
			},
		}
		w.Header().Set("Content-Type", "application/jrd+json")
		encoder := json.NewEncoder(w)

		if err = encoder.Encode(res); err != nil {
			log.Error().Err(err).Msg("unable to marshal webfinger response")
			http.Error(w, "", http.StatusInternalServerError)
		}
	}
}
