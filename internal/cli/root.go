// Package cli implements the fedicache command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/config"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type root struct {
	v          *viper.Viper
	configFile string
	cfg        config.Configuration
}

// NewRootCommand returns the fedicache command with all its subcommands.
func NewRootCommand() *cobra.Command {
	r := &root{v: config.New()}

	cmd := &cobra.Command{
		Use:           "fedicache",
		Short:         "Incrementally harvest and cache fediverse accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			if r.cfg, err = config.ReadConfig(r.v, r.configFile); err != nil {
				return err
			}
			zerolog.SetGlobalLevel(r.cfg.LogLevel())
			log.Debug().Interface("config", r.cfg).Msg("configuration loaded")
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&r.configFile, "config", "", "configuration file (yaml, toml or json)")
	flags.CountP("verbose", "v", "increase verbosity, may be repeated")
	flags.String("store", "", "entity store: file, sqlite, memory, redis or memcache")
	flags.String("backend", "", "remote backend: mastodon or activitypub")
	flags.StringSlice("skip-hosts", nil, "hosts never visited during expansion")
	r.v.BindPFlag("verbosity", flags.Lookup("verbose"))
	r.v.BindPFlag("store", flags.Lookup("store"))
	r.v.BindPFlag("backend", flags.Lookup("backend"))
	r.v.BindPFlag("skip_hosts", flags.Lookup("skip-hosts"))

	cmd.AddCommand(
		r.profileCommand(),
		r.relationCommand(domain.Following),
		r.relationCommand(domain.Followers),
		r.statusesCommand(),
		r.neighborhoodCommand(),
		r.forgetCommand(),
		r.serveCommand(),
		keygenCommand(),
	)
	return cmd
}

func (r *root) app() (*App, error) {
	return NewApp(r.cfg, log.Logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
