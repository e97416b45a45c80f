package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/harvest"
	"github.com/sidereusnuntius/fedicache/internal/storage"
)

var errBadParameter = errors.New("bad parameter")

type profileResponse struct {
	Profile     domain.Profile `json:"profile"`
	RetrievedAt time.Time      `json:"retrieved_at"`
}

// relationResponse tells an unavailable list apart from an empty one through Available.
type relationResponse struct {
	Available   bool                `json:"available"`
	RetrievedAt time.Time           `json:"retrieved_at"`
	Set         *domain.RelationSet `json:"set"`
}

func account(r *http.Request) (domain.AccountID, error) {
	return domain.ParseAccount(chi.URLParam(r, "acct"))
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", errBadParameter, name, v)
	}
	return b, nil
}

func durationParam(r *http.Request, name string) (time.Duration, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s=%q", errBadParameter, name, v)
	}
	return d, nil
}

// handle parses the account and the refresh parameter common to all account routes.
func handle(fn func(ctx context.Context, w http.ResponseWriter, r *http.Request, acct domain.AccountID, refresh bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := account(r)
		if err != nil {
			writeError(w, err)
			return
		}
		refresh, err := boolParam(r, "refresh")
		if err != nil {
			writeError(w, err)
			return
		}
		if err = fn(r.Context(), w, r, acct, refresh); err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("request failed")
			writeError(w, err)
		}
	}
}

func Profile(h *Handler) http.HandlerFunc {
	return handle(func(ctx context.Context, w http.ResponseWriter, r *http.Request, acct domain.AccountID, refresh bool) error {
		p, retrieved, err := h.Profiles.Get(ctx, acct, refresh)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, profileResponse{p, retrieved})
		return nil
	})
}

func Relation(h *Handler, kind domain.RelationKind) http.HandlerFunc {
	return handle(func(ctx context.Context, w http.ResponseWriter, r *http.Request, acct domain.AccountID, refresh bool) error {
		set, retrieved, err := h.Relations.Get(ctx, acct, kind, refresh)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, relationResponse{set != nil, retrieved, set})
		return nil
	})
}

// Statuses returns the ledger of the account. When a refresh fails but a ledger was cached, the
// cached ledger is returned.
func Statuses(h *Handler) http.HandlerFunc {
	return handle(func(ctx context.Context, w http.ResponseWriter, r *http.Request, acct domain.AccountID, refresh bool) error {
		opts := harvest.CollectOptions{ForceRefresh: refresh}
		var err error
		if opts.DiscardCache, err = boolParam(r, "discard"); err != nil {
			return err
		}
		if opts.AgeLimit, err = durationParam(r, "age"); err != nil {
			return err
		}

		l, err := h.Collector.Collect(ctx, acct, opts)
		if err != nil {
			if l == nil || l.Empty() {
				return err
			}
			log.Warn().Err(err).Stringer("account", acct).Msg("refresh failed, serving cached statuses")
		}
		writeJSON(w, http.StatusOK, l)
		return nil
	})
}

func Neighborhood(h *Handler) http.HandlerFunc {
	return handle(func(ctx context.Context, w http.ResponseWriter, r *http.Request, acct domain.AccountID, refresh bool) error {
		n, err := h.Expander.Expand(ctx, acct, refresh)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, n)
		return nil
	})
}

func Refresh(h *Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := account(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if h.Queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{"refresh queue is not running"})
			return
		}
		age, err := durationParam(r, "age")
		if err != nil {
			writeError(w, err)
			return
		}

		if err = h.Queue.Refresh(r.Context(), acct, age); err != nil {
			log.Error().Err(err).Stringer("account", acct).Msg("failed to enqueue refresh")
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type forgetResponse struct {
	Removed []storage.Kind `json:"removed"`
}

// Forget drops everything cached for the account.
func Forget(h *Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := account(r)
		if err != nil {
			writeError(w, err)
			return
		}
		removed, err := storage.Forget(r.Context(), h.Store, acct)
		if err != nil {
			log.Error().Err(err).Stringer("account", acct).Msg("failed to forget account")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, forgetResponse{removed})
	}
}
