package web

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"code.superseriousbusiness.org/activity/streams"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/conversions"
	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var ErrKeyMismatch = errors.New("published key does not match the signing key")

// NewActor returns the actor for account. It checks that the document served for it advertises
// the public half of key, since servers verify signatures against that document.
func NewActor(account domain.AccountID, iri *url.URL, key *rsa.PrivateKey, publicKeyPem string) (*Actor, error) {
	a := &Actor{Account: account, IRI: iri, PublicKeyPem: publicKeyPem}

	data, err := streams.Serialize(conversions.ServiceActor(iri, account.User, publicKeyPem))
	if err != nil {
		return nil, fmt.Errorf("serializing actor: %w", err)
	}
	t, err := streams.ToType(context.Background(), data)
	if err != nil {
		return nil, fmt.Errorf("reading back actor: %w", err)
	}
	published, err := conversions.PublicKey(t)
	if err != nil {
		return nil, fmt.Errorf("reading back actor key: %w", err)
	}
	if !key.PublicKey.Equal(published) {
		return nil, ErrKeyMismatch
	}
	return a, nil
}

func ActorEndpoint(a *Actor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := streams.Serialize(conversions.ServiceActor(a.IRI, a.Account.User, a.PublicKeyPem))
		if err != nil {
			log.Error().Err(err).Msg("actor serialization error")
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/activity+json")
		if err = json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("unable to encode actor")
		}
	}
}
