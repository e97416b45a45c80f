package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/harvest"
	"github.com/sidereusnuntius/fedicache/internal/initialization"
	"github.com/sidereusnuntius/fedicache/internal/queue"
	"github.com/sidereusnuntius/fedicache/internal/storage"
	"github.com/sidereusnuntius/fedicache/internal/utils"
	"github.com/sidereusnuntius/fedicache/internal/web"
	"github.com/spf13/cobra"
)

// accountCommand builds a command taking a single account argument. run receives an App that is
// closed once it returns.
func (r *root) accountCommand(use, short string, run func(cmd *cobra.Command, a *App, account domain.AccountID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " user@host",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := domain.ParseAccount(args[0])
			if err != nil {
				return err
			}
			a, err := r.app()
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a, account)
		},
	}
}

func (r *root) profileCommand() *cobra.Command {
	var refresh bool
	cmd := r.accountCommand("profile", "Show the profile of an account", func(cmd *cobra.Command, a *App, account domain.AccountID) error {
		p, retrieved, err := a.Profiles.Get(cmd.Context(), account, refresh)
		if err != nil {
			return err
		}
		log.Info().Time("retrieved_at", retrieved).Msg("profile")
		return printJSON(cmd.OutOrStdout(), p)
	})
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile even if it is cached")
	return cmd
}

func (r *root) relationCommand(kind domain.RelationKind) *cobra.Command {
	var refresh bool
	cmd := r.accountCommand(kind.String(), "List the "+kind.String()+" of an account", func(cmd *cobra.Command, a *App, account domain.AccountID) error {
		set, retrieved, err := a.Relations.Get(cmd.Context(), account, kind, refresh)
		if err != nil {
			return err
		}
		if set == nil {
			return fmt.Errorf("%s of %s could not be retrieved (last attempt %s)", kind, account, retrieved.Format(time.RFC3339))
		}
		return printJSON(cmd.OutOrStdout(), set)
	})
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the list even if it is cached")
	return cmd
}

func (r *root) statusesCommand() *cobra.Command {
	var opts harvest.CollectOptions
	cmd := r.accountCommand("statuses", "Collect the statuses of an account", func(cmd *cobra.Command, a *App, account domain.AccountID) error {
		l, err := a.Collector.Collect(cmd.Context(), account, opts)
		if err != nil {
			if l == nil || l.Empty() {
				return err
			}
			log.Warn().Err(err).Msg("refresh failed, showing cached statuses")
		}
		return printJSON(cmd.OutOrStdout(), l)
	})
	cmd.Flags().BoolVar(&opts.ForceRefresh, "refresh", false, "fetch new statuses even if a ledger is cached")
	cmd.Flags().BoolVar(&opts.DiscardCache, "discard", false, "ignore the cached ledger")
	cmd.Flags().DurationVar(&opts.AgeLimit, "age", 0, "only fetch statuses younger than this, e.g. 24h")
	return cmd
}

func (r *root) neighborhoodCommand() *cobra.Command {
	var refresh bool
	cmd := r.accountCommand("neighborhood", "Show the follows of the accounts an account follows", func(cmd *cobra.Command, a *App, account domain.AccountID) error {
		n, err := a.Expander.Expand(cmd.Context(), account, refresh)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), n)
	})
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the lists even if they are cached")
	return cmd
}

func (r *root) forgetCommand() *cobra.Command {
	return r.accountCommand("forget", "Drop everything cached for an account", func(cmd *cobra.Command, a *App, account domain.AccountID) error {
		removed, err := storage.Forget(cmd.Context(), a.Store, account)
		if err != nil {
			return err
		}
		log.Info().Stringer("account", account).Interface("removed", removed).Msg("forgot account")
		return printJSON(cmd.OutOrStdout(), removed)
	})
}

func (r *root) serveCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache over HTTP and run scheduled refreshes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				r.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on")
	return cmd
}

func (r *root) serve(ctx context.Context) error {
	a, err := r.app()
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := initialization.OpenDB(r.cfg.DbUrl)
	if err != nil {
		return err
	}
	defer db.Close()
	bl, err := initialization.InitQueue(db, r.cfg.QueueWorkers)
	if err != nil {
		return fmt.Errorf("unable to set up the task queue: %w", err)
	}
	q := queue.New(bl, a.Collector, a.Expander, log.Logger)
	q.Start(ctx)

	h := &web.Handler{
		Profiles:  a.Profiles,
		Relations: a.Relations,
		Collector: a.Collector,
		Expander:  a.Expander,
		Store:     a.Store,
		Queue:     q,
		Actor:     a.Actor,
	}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	h.Mount(router)

	s := &http.Server{
		Addr:    r.cfg.Listen,
		Handler: router,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", r.cfg.Listen).Msg("started server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err = <-errs:
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = s.Shutdown(shutdown)
		q.Stop(shutdown)
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

func keygenCommand() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "keygen private-key-file",
		Short: "Generate the RSA key requests are signed with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := utils.GenerateKeysPem(bits)
			if err != nil {
				return err
			}
			if err = os.WriteFile(args[0], []byte(priv), 0o600); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), pub)
			return err
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "key size")
	return cmd
}
