package main

import (
	"context"
	"fmt"
	"io"

	"event-settlement/internal/settlement"
	"event-settlement/internal/store"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:               "migrate",
	Short:             "Apply pending database migrations",
	Args:              cobra.NoArgs,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Migrate(serverCfg.PostgresDSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var settleCmd = &cobra.Command{
	Use:               "settle <event-id>",
	Short:             "Settle an active event now",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.Engine.Settle(ctx, args[0], settlement.TriggerManual)
		if err != nil {
			return fmt.Errorf("settle %s: %w", args[0], err)
		}
		if res == nil {
			res, err = rt.Engine.Result(ctx, args[0])
			if err != nil {
				return fmt.Errorf("event %s was not settled: %w", args[0], err)
			}
		}
		return printResult(cmd.OutOrStdout(), res, func(w io.Writer) {
			fmt.Fprintf(w, "Event:   %s\n", res.EventID)
			fmt.Fprintf(w, "Status:  %s\n", res.Status)
			if res.WinningOptionID != "" {
				fmt.Fprintf(w, "Winner:  %s\n", res.WinningOptionID)
			}
			for _, p := range res.Payouts {
				line := fmt.Sprintf("  %-8s %-24s %8d %s", p.Kind, p.Recipient, p.Amount, p.Outcome)
				if p.FailureReason != "" {
					line += " (" + p.FailureReason + ")"
				}
				fmt.Fprintln(w, line)
			}
		})
	},
}

var scanCmd = &cobra.Command{
	Use:               "scan",
	Short:             "Run one deadline scan and report stale settlements",
	Args:              cobra.NoArgs,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		rep, err := rt.Scanner.ScanOnce(ctx)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		return printResult(cmd.OutOrStdout(), rep, func(w io.Writer) {
			fmt.Fprintf(w, "Due: %d  Settled: %d  Deferred: %d  Failed: %d\n", rep.Due, rep.Settled, rep.Deferred, rep.Failed)
			for _, id := range rep.StaleEnded {
				fmt.Fprintf(w, "  stale ended: %s\n", id)
			}
		})
	},
}
