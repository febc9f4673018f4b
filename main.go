package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	flagConfigFile string
	flagStrict     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fin-calendar",
		Short: "Economic calendar scraper and API",
		Long: `Fetches the weekly economic calendar with a chain of fallback strategies
(direct JSON feed, JSON link discovered on the calendar page, headless browser)
and serves it as a chronologically ordered JSON list.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Optional config file (e.g. .env), environment variables take precedence")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the weekly digest job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), func(ctx context.Context, a *App) error {
				return a.serve(ctx)
			})
		},
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the calendar once and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), func(ctx context.Context, a *App) error {
				return a.fetch(ctx, cmd.OutOrStdout(), flagStrict)
			})
		},
	}
	fetch.Flags().BoolVar(&flagStrict, "strict", false, "Exit with an error when every strategy failed")

	cmd.AddCommand(serve, fetch)
	return cmd
}

// run loads the configuration, wires the App and calls f until SIGINT or SIGTERM.
func run(parent context.Context, f func(ctx context.Context, a *App) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := LoadEnv(flagConfigFile)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, env.LogLevel, env.LogFormat)
	slog.SetDefault(logger)

	cfg, err := NewConfig(env)
	if err != nil {
		return err
	}

	sentryKit, err := NewSentryKit(env.SentryDSN, version, logger)
	if err != nil {
		return fmt.Errorf("initialising sentry: %w", err)
	}
	defer sentryKit.Flush()

	app, err := NewApp(cfg, sentryKit, logger)
	if err != nil {
		return err
	}

	return f(ctx, app)
}
