package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"SentiTrade/internal/di"
	"SentiTrade/pkg/config"
	"SentiTrade/pkg/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := newServeCmd(&configPath)
	root := &cobra.Command{
		Use:   "sentitrade",
		Short: "Sentiment-weighted trading engine",
		Long: `sentitrade aggregates scored social and news sentiment per instrument,
turns it into BUY/SELL decisions and executes them against a brokerage.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "config file path")

	root.AddCommand(serve)
	root.AddCommand(newCycleCmd(&configPath))
	root.AddCommand(newReconcileCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the trading scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*configPath, func(app *server.App) error {
				return app.Run(cmd.Context())
			})
		},
	}
}

func newCycleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single trading cycle and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*configPath, func(app *server.App) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				report, err := app.RunCycle(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if n := report.Failures(); n > 0 {
					return fmt.Errorf("%d instrument(s) failed", n)
				}
				return nil
			})
		},
	}
}

func newReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Mirror broker positions into the local store once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(*configPath, func(app *server.App) error {
				n, err := app.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d position(s)\n", n)
				return nil
			})
		},
	}
}

func withApp(configPath string, fn func(*server.App) error) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return fn(app)
}
