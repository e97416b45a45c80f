package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/cache"
	"github.com/sidereusnuntius/fedicache/internal/client"
	"github.com/sidereusnuntius/fedicache/internal/config"
	"github.com/sidereusnuntius/fedicache/internal/conversions"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/harvest"
	"github.com/sidereusnuntius/fedicache/internal/initialization"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/sidereusnuntius/fedicache/internal/remote/activitypub"
	"github.com/sidereusnuntius/fedicache/internal/remote/mastodon"
	"github.com/sidereusnuntius/fedicache/internal/storage"
	"github.com/sidereusnuntius/fedicache/internal/storage/filestore"
	"github.com/sidereusnuntius/fedicache/internal/storage/memcachestore"
	"github.com/sidereusnuntius/fedicache/internal/storage/memstore"
	"github.com/sidereusnuntius/fedicache/internal/storage/redisstore"
	"github.com/sidereusnuntius/fedicache/internal/storage/sqlstore"
	"github.com/sidereusnuntius/fedicache/internal/utils"
	"github.com/sidereusnuntius/fedicache/internal/web"
)

const keyPrefix = "fedicache:"

// App holds the components built from a configuration.
type App struct {
	Config    config.Configuration
	Store     storage.EntityStore
	Source    remote.Source
	Profiles  *cache.ProfileCache
	Relations *cache.RelationCache
	Collector *harvest.TimelineCollector
	Expander  *harvest.NeighborhoodExpander
	// Actor is set when requests are signed.
	Actor *web.Actor

	closers []func() error
}

func NewApp(cfg config.Configuration, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	var err error
	if a.Store, err = a.newStore(); err != nil {
		a.Close()
		return nil, err
	}

	c, err := a.newClient()
	if err != nil {
		a.Close()
		return nil, err
	}
	switch cfg.Backend {
	case config.ActivityPub:
		a.Source = activitypub.New(c)
	default:
		a.Source = mastodon.New(c)
	}

	a.Profiles = cache.NewProfileCache(a.Store, a.Source, logger)
	a.Relations = cache.NewRelationCache(a.Store, a.Source, a.Profiles, logger)
	a.Collector = harvest.NewTimelineCollector(a.Store, a.Source, a.Profiles, cfg.MaxStatusFetchPerQuery, logger)
	a.Expander = harvest.NewNeighborhoodExpander(a.Relations, cfg.SkipHosts, cfg.Workers, logger)
	return a, nil
}

func (a *App) newStore() (storage.EntityStore, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.SQLiteStore:
		db, err := initialization.OpenDB(cfg.DbUrl)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err = initialization.SetupDB(db, cfg.MigrationsFolder); err != nil {
			return nil, err
		}
		return sqlstore.New(db), nil
	case config.MemoryStore:
		if cfg.CacheTTL > 0 {
			return memstore.NewWithTTL(cfg.CacheTTL), nil
		}
		return memstore.New(), nil
	case config.RedisStore:
		rc := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		a.closers = append(a.closers, rc.Close)
		return redisstore.New(rc, keyPrefix, cfg.CacheTTL), nil
	case config.MemcacheStore:
		mc := memcachestore.NewClient(cfg.MemcacheServers...)
		a.closers = append(a.closers, mc.Close)
		return memcachestore.New(mc, keyPrefix, cfg.CacheTTL), nil
	default:
		return filestore.New(cfg.CacheDir)
	}
}

// newClient builds the HTTP client. When a key file is configured requests are signed with it and
// a.Actor describes the signing identity.
func (a *App) newClient() (*client.HttpClient, error) {
	cfg := a.Config
	opts := client.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RemoteTimeout,
		Retries:   cfg.Retries,
		RetryWait: cfg.RetryWait,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Token:     cfg.Token,
		TokenHost: cfg.TokenHost,
	}
	if cfg.KeyFile == "" {
		return client.New(&http.Client{}, nil, nil, opts)
	}

	key, pub, err := utils.LoadPrivateKey(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	iri, err := url.Parse(cfg.ActorURL)
	if err != nil {
		return nil, fmt.Errorf("parsing actor url: %w", err)
	}
	account, err := domain.ParseAccount(conversions.AcctFromIRI(iri))
	if err != nil {
		return nil, fmt.Errorf("actor url %s: %w", cfg.ActorURL, err)
	}

	if a.Actor, err = web.NewActor(account, iri, key, pub); err != nil {
		return nil, err
	}
	return client.New(&http.Client{}, key, conversions.KeyID(iri), opts)
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
