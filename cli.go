// cli.go
//
// Command tree.
//   persistence-is-key [serve]        run the HTTP server (default)
//   persistence-is-key dict add W...  insert words
//   persistence-is-key dict remove W  delete a word
//   persistence-is-key dict load F    bulk-insert from a .txt or .yaml file
//   persistence-is-key dict seed      insert the bundled default list
//   persistence-is-key dict random    print a random word
//   persistence-is-key dict count     print the number of words
//
// Every command shares the flags/env of internal/config.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/csaldivar-astate/persistence-is-key/internal/config"
	"github.com/csaldivar-astate/persistence-is-key/internal/dictionary"
	"github.com/csaldivar-astate/persistence-is-key/internal/game"
	"github.com/csaldivar-astate/persistence-is-key/internal/httpserver"
	"github.com/csaldivar-astate/persistence-is-key/internal/store"
	"github.com/csaldivar-astate/persistence-is-key/internal/words"
)

const releaseVersion = "1.0.0"

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "persistence-is-key",
		Short:         "Wordle-style guessing game backed by a SQLite dictionary.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg, err = config.FromViper(v); err != nil {
				return err
			}
			setupLogging(cfg, cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	config.BindFlags(root.PersistentFlags())

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serve, newDictCmd(func() *config.Config { return cfg }))
	return root
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg *config.Config, out io.Writer) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

func runServe(ctx context.Context, cfg *config.Config) error {
	dict, err := dictionary.Open(ctx, cfg.DBFile)
	if err != nil {
		return err
	}
	defer dict.Close()

	if cfg.SeedDefaults && dict.Count(ctx) == 0 {
		if err := seedDefaults(ctx, dict); err != nil {
			return err
		}
	}

	scorer, err := game.ScorerFor(cfg.Scoring)
	if err != nil {
		return err
	}

	opts := httpserver.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AdminKeyHash:   cfg.AdminKeyHash,
		ClientOrigin:   cfg.ClientOrigin,
		SecureCookies:  cfg.SecureCookies,
		TrustProxy:     cfg.TrustProxy,
	}
	if cfg.JWTSecret != "" {
		opts.Tokens = httpserver.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	}
	if cfg.Identity == config.IdentityToken {
		opts.Identity = httpserver.TokenResolver{Issuer: opts.Tokens, Fallback: httpserver.IPResolver{}}
	}

	srv := httpserver.New(store.NewMemoryStore(scorer), dict, opts)
	log.Info().
		Int("port", cfg.Port).
		Str("db", cfg.DBFile).
		Str("scoring", string(cfg.Scoring)).
		Str("identity", cfg.Identity).
		Int("words", dict.Count(ctx)).
		Msg("starting server")
	return srv.Start(ctx, cfg.Addr())
}

func seedDefaults(ctx context.Context, dict *dictionary.Store) error {
	list, err := words.Defaults()
	if err != nil {
		return err
	}
	dict.AddManyWords(ctx, list)
	log.Info().Int("count", len(list)).Msg("seeded dictionary with bundled words")
	return nil
}

// newDictCmd builds the dictionary maintenance commands. cfg is resolved
// lazily because flags are parsed after the tree is built.
func newDictCmd(cfg func() *config.Config) *cobra.Command {
	dict := &cobra.Command{
		Use:   "dict",
		Short: "Maintain the word dictionary",
	}

	withStore := func(fn func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := dictionary.Open(cmd.Context(), cfg().DBFile)
			if err != nil {
				return err
			}
			defer s.Close()
			return fn(cmd.Context(), cmd, s, args)
		}
	}

	dict.AddCommand(
		&cobra.Command{
			Use:   "add WORD...",
			Short: "Insert words (wrong-length words are skipped)",
			Args:  cobra.MinimumNArgs(1),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error {
				s.AddManyWords(ctx, words.Clean(words.TrimAll(args)))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "remove WORD",
			Short: "Delete a word",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error {
				s.RemoveWord(ctx, strings.TrimSpace(args[0]))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "load FILE",
			Short: "Bulk-insert words from a .txt (one per line) or .yaml ({words: [...]}) file",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error {
				list, err := words.ReadFile(args[0])
				if err != nil {
					return err
				}
				loadWithProgress(ctx, s, list, cmd.ErrOrStderr())
				fmt.Fprintf(cmd.OutOrStdout(), "dictionary now holds %d words\n", s.Count(ctx))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the bundled default word list",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error {
				return seedDefaults(ctx, s)
			}),
		},
		&cobra.Command{
			Use:   "random",
			Short: "Print a random word",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error {
				w, ok := s.RandomWord(ctx)
				if !ok {
					return fmt.Errorf("dictionary %s is empty", cfg().DBFile)
				}
				fmt.Fprintln(cmd.OutOrStdout(), w)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of words",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, s *dictionary.Store, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), s.Count(ctx))
				return nil
			}),
		},
	)
	return dict
}

// loadWithProgress inserts list one word at a time, drawing a progress bar on out.
func loadWithProgress(ctx context.Context, s *dictionary.Store, list []string, out io.Writer) {
	bar := progressbar.NewOptions(len(list),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("loading words"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	for _, w := range list {
		if ctx.Err() != nil {
			break
		}
		s.AddWord(ctx, w)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
}
