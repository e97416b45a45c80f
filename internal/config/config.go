package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "FEDICACHE"

// Store kinds.
const (
	FileStore     = "file"
	SQLiteStore   = "sqlite"
	MemoryStore   = "memory"
	RedisStore    = "redis"
	MemcacheStore = "memcache"
)

// Remote backends.
const (
	Mastodon    = "mastodon"
	ActivityPub = "activitypub"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Configuration struct {
	// SkipHosts lists the servers whose accounts are never visited when expanding a neighborhood.
	SkipHosts []string `mapstructure:"skip_hosts"`
	// MaxStatusFetchPerQuery is the number of statuses requested per timeline listing.
	MaxStatusFetchPerQuery int `mapstructure:"max_status_fetch_per_query"`
	// Verbosity selects the log level: 0 warnings, 1 progress, 2 and above everything.
	Verbosity int `mapstructure:"verbosity"`

	// Backend is the protocol used to read remote accounts, either "mastodon" or "activitypub".
	Backend string `mapstructure:"backend"`
	// Token is a Mastodon API access token, sent to TokenHost only.
	Token     string `mapstructure:"token"`
	TokenHost string `mapstructure:"token_host"`
	// KeyFile is a PEM encoded RSA private key. When set, requests are signed as the actor at ActorURL,
	// which the server also publishes.
	KeyFile   string `mapstructure:"key_file"`
	ActorURL  string `mapstructure:"actor_url"`
	UserAgent string `mapstructure:"user_agent"`

	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	Retries       int           `mapstructure:"retries"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
	// RateLimit is the number of requests per second allowed to each remote server. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
	// Workers bounds the number of lists fetched concurrently during an expansion.
	Workers int `mapstructure:"workers"`

	// Store is where entities are kept: "file", "sqlite", "memory", "redis" or "memcache".
	Store    string `mapstructure:"store"`
	CacheDir string `mapstructure:"cache_dir"`
	// DbUrl is the SQLite database used by the sqlite store and by the refresh queue.
	DbUrl            string        `mapstructure:"db_url"`
	MigrationsFolder string        `mapstructure:"migrations_folder"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
	MemcacheServers  []string      `mapstructure:"memcache_servers"`
	// CacheTTL expires entries of the memory, redis and memcache stores. Zero keeps them forever.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// Listen is the address of the HTTP API.
	Listen       string `mapstructure:"listen"`
	QueueWorkers int    `mapstructure:"queue_workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("skip_hosts", []string{})
	v.SetDefault("max_status_fetch_per_query", 40)
	v.SetDefault("verbosity", 0)
	v.SetDefault("backend", Mastodon)
	v.SetDefault("token", "")
	v.SetDefault("token_host", "")
	v.SetDefault("key_file", "")
	v.SetDefault("actor_url", "")
	v.SetDefault("user_agent", "fedicache/0.1")
	v.SetDefault("remote_timeout", 30*time.Second)
	v.SetDefault("retries", 2)
	v.SetDefault("retry_wait", time.Second)
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("burst", 4)
	v.SetDefault("workers", 4)
	v.SetDefault("store", FileStore)
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("db_url", "fedicache.db")
	v.SetDefault("migrations_folder", "migrations")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("memcache_servers", []string{"localhost:11211"})
	v.SetDefault("cache_ttl", time.Duration(0))
	v.SetDefault("listen", ":8080")
	v.SetDefault("queue_workers", 2)
}

// New returns a viper instance holding the defaults and reading FEDICACHE_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfig reads file, if given, into v and decodes the result. Values from the environment and
// from flags bound to v take precedence over the file.
func ReadConfig(v *viper.Viper, file string) (Configuration, error) {
	var cfg Configuration
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Configuration) Validate() error {
	switch c.Backend {
	case Mastodon, ActivityPub:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	switch c.Store {
	case FileStore, SQLiteStore, MemoryStore, RedisStore, MemcacheStore:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if c.MaxStatusFetchPerQuery <= 0 {
		return fmt.Errorf("%w: max_status_fetch_per_query must be positive", ErrInvalidConfig)
	}
	if c.KeyFile != "" && c.ActorURL == "" {
		return fmt.Errorf("%w: key_file requires actor_url", ErrInvalidConfig)
	}
	return nil
}

func (c Configuration) LogLevel() zerolog.Level {
	switch {
	case c.Verbosity <= 0:
		return zerolog.WarnLevel
	case c.Verbosity == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
