package main

import (
	"context"
	"fmt"
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/auth/password"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/migration"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/scheduler"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startStopTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				infrastructure(),
				migration.Module,
				domains(),
				server.Module,
			}
			if withScheduler {
				opts = append(opts, scheduler.Cron)
			}
			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "also run the stale link reaper in this process")
	return cmd
}

func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the stale checkout link reaper on its cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infrastructure(),
				domains(),
				scheduler.Cron,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func reapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one reaper pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			app := fx.New(
				infrastructure(),
				domains(),
				scheduler.Module,
				fx.Populate(&sched),
			)
			return runOnce(cmd.Context(), app, func(ctx context.Context) error {
				return sched.RunOnce(ctx)
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infrastructure(),
				migration.Module,
			)
			return runOnce(cmd.Context(), app, func(context.Context) error { return nil })
		},
	}
}

func hashKeyCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Generate an operator key or hash an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if secret != "" {
				hash, err := password.Hash(secret)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, hash)
				return nil
			}

			plain, hash, err := service.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "key:  %s\nhash: %s\n", plain, hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "hash this existing key instead of generating one")
	return cmd
}

func runOnce(parent context.Context, app *fx.App, fn func(ctx context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	startCtx, cancel := context.WithTimeout(parent, startStopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(parent)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
