// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the exchange ledger",
	Long: `Ledger reads the SQLite log of chat and consultation exchanges kept at
ledger.path.`,
}

func openLedger() (*ledger.Ledger, error) {
	if cfg.Ledger.Path == "" {
		return nil, fmt.Errorf("ledger.path is empty; the ledger is disabled")
	}
	return ledger.Open(cfg.Ledger)
}

var ledgerRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		l, err := openLedger()
		if err != nil {
			return err
		}
		defer l.Close()

		entries, err := l.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No exchanges recorded.")
			return nil
		}
		fmt.Fprintf(out, "%-6s  %-20s  %-12s  %-12s  %-22s  %6s  %s\n", "ID", "Time", "Kind", "Profile", "Model", "Tokens", "OK")
		fmt.Fprintln(out, strings.Repeat("-", 96))
		for _, e := range entries {
			fmt.Fprintf(out, "%-6d  %-20s  %-12s  %-12s  %-22s  %6d  %t\n",
				e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Profile, e.Model, e.TokensUsed, e.Success)
		}
		return nil
	},
}

var ledgerUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger()
		if err != nil {
			return err
		}
		defer l.Close()

		usage, err := l.Usage(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-28s  %9s  %8s  %10s\n", "Model", "Exchanges", "Failures", "Tokens")
		fmt.Fprintln(out, strings.Repeat("-", 62))
		for _, u := range usage {
			fmt.Fprintf(out, "%-28s  %9d  %8d  %10d\n", u.Model, u.Exchanges, u.Failures, u.TokensUsed)
		}
		return nil
	},
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent exchanges as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		path, _ := cmd.Flags().GetString("output")

		l, err := openLedger()
		if err != nil {
			return err
		}
		defer l.Close()

		if path == "" || path == "-" {
			return l.WriteYAML(cmd.Context(), cmd.OutOrStdout(), limit)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := l.WriteYAML(cmd.Context(), f, limit); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func init() {
	ledgerRecentCmd.Flags().Int("limit", ledger.DefaultRecentLimit, "number of exchanges to list")
	ledgerRecentCmd.Flags().Bool("json", false, "output as JSON")
	ledgerExportCmd.Flags().Int("limit", 1000, "number of exchanges to export")
	ledgerExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	ledgerCmd.AddCommand(ledgerRecentCmd, ledgerUsageCmd, ledgerExportCmd)
	rootCmd.AddCommand(ledgerCmd)
}
