package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/wellknown"
)

const AccountsPath = "/accounts/{acct}"

func (h *Handler) Mount(r chi.Router) {
	r.Route(AccountsPath, func(r chi.Router) {
		r.Get("/profile", Profile(h))
		r.Get("/following", Relation(h, domain.Following))
		r.Get("/followers", Relation(h, domain.Followers))
		r.Get("/statuses", Statuses(h))
		r.Get("/neighborhood", Neighborhood(h))
		r.Post("/refresh", Refresh(h))
		r.Delete("/", Forget(h))
	})

	r.Handle("/metrics", promhttp.Handler())

	if h.Actor != nil {
		r.Get(h.Actor.IRI.Path, ActorEndpoint(h.Actor))
		wellknown.Mount(r, h.Actor.Account, h.Actor.IRI)
	}
}
