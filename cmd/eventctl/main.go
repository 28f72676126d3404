package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"event-settlement/internal/app/bootstrap"
	"event-settlement/internal/config"
	"event-settlement/internal/logging"

	"github.com/spf13/cobra"
)

var (
	jsonOutput bool

	serverCfg config.ServerConfig
)

var rootCmd = &cobra.Command{
	Use:           "eventctl <command>",
	Short:         "Operator tooling for the event settlement service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig is the PersistentPreRunE of commands that need the database.
func loadConfig(*cobra.Command, []string) error {
	cfg, err := config.LoadApp()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	serverCfg = cfg.Server
	return nil
}

func openRuntime(ctx context.Context) (*bootstrap.Runtime, error) {
	cfg := serverCfg
	cfg.MigrateOnStart = false
	return bootstrap.New(ctx, cfg)
}

func printResult(w io.Writer, v any, text func(io.Writer)) error {
	if jsonOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	text(w)
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(settleCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(verifyDrawCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
