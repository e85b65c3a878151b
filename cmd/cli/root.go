package main

import (
	"context"
	"fmt"

	"autocurrency/internal/app"
	"autocurrency/internal/resolver"
	"autocurrency/pkg/config"
	"autocurrency/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
	cfg        *config.Config
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "autocurrency",
		Short:        "Keep Cospend project exchange rates up to date",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if opts.configFile != "" {
				opts.cfg, err = config.LoadConfigFile(opts.configFile)
			} else {
				opts.cfg, err = config.LoadConfig()
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := opts.cfg.Log.Level
			if opts.logLevel != "" {
				level = opts.logLevel
			}
			opts.log = logger.New(cmd.ErrOrStderr(), level, opts.cfg.Log.Format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level")

	cmd.AddCommand(
		newFetchCmd(opts),
		newPruneCmd(opts),
		newResolveCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

func (o *rootOptions) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, o.cfg, o.log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newFetchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch exchange rates for every project now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Usecase.RunFetch(cmd.Context()); err != nil {
					return fmt.Errorf("fetch currencies: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Currency rates updated")
				return nil
			})
		},
	}
}

func newPruneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete rate history older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				deleted, err := a.Usecase.RemoveOldHistory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history rows\n", deleted)
				return nil
			})
		},
	}
}

// resolve only needs the symbol table, not a database.
func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <text>",
		Short: "Print the currency code recognised in text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := app.LoadSymbols(opts.cfg)
			if err != nil {
				return err
			}
			code, ok := resolver.New(table, resolver.DefaultPreferences).Resolve(args[0])
			if !ok {
				return fmt.Errorf("no currency recognised in %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(opts.cfg, opts.log)
		},
	}
}
