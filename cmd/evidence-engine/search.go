// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/telemetry"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Assemble PubMed evidence for a query",
	Long: `Search runs the retrieval half of the pipeline: esearch for identifiers,
then esummary and efetch concurrently, merged by PMID. It prints a table by
default, or JSON, YAML, or the exact context block the model would receive.
Indexes named by --supplement (or evidence.supplements) are searched
alongside PubMed and appended after the PubMed hits. No generation
credentials are needed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxResults, _ := cmd.Flags().GetInt("max-results")
		if maxResults <= 0 {
			maxResults = cfg.Evidence.SearchLimit
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		asYAML, _ := cmd.Flags().GetBool("yaml")
		asContext, _ := cmd.Flags().GetBool("context")

		c := cfg
		if cmd.Flags().Changed("supplement") {
			c.Evidence.Supplements, _ = cmd.Flags().GetStringSlice("supplement")
			if err := validateSupplements(c.Evidence.Supplements); err != nil {
				return err
			}
		}

		query := strings.Join(args, " ")
		res := newAssembler(c, telemetry.New()).Assemble(cmd.Context(), query, maxResults)
		for _, st := range res.Degraded {
			logger.Warn("stage degraded; results may be partial", zap.String("stage", string(st)))
		}

		out := cmd.OutOrStdout()
		switch {
		case asJSON:
			return evidence.FormatJSON(res.Evidence, out)
		case asYAML:
			return evidence.FormatYAML(res.Evidence, out)
		case asContext:
			_, err := fmt.Fprintln(out, evidence.RenderContext(res.Evidence))
			return err
		default:
			evidence.FormatTable(res.Evidence, out)
			return nil
		}
	},
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of documents (default evidence.search_limit)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("yaml", false, "output results as YAML")
	searchCmd.Flags().Bool("context", false, "print the prompt context block")
	searchCmd.Flags().StringSlice("supplement", nil, "additional index to search: semantic_scholar, europe_pmc (repeatable)")
	searchCmd.MarkFlagsMutuallyExclusive("json", "yaml", "context")

	rootCmd.AddCommand(searchCmd)
}
