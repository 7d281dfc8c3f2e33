// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/consultation"
	"github.com/pdiddy/evidence-engine/internal/prompt"
)

var consultCmd = &cobra.Command{
	Use:   "consult [transcript-file]",
	Short: "Generate a clinical report from a consultation transcript",
	Long: `Consult reads a consultation transcript from a file, or from stdin when no
file is given or the file is "-", and prints a structured clinical report.
With --soap it prints the transcript as a SOAP note instead, adding PubMed
evidence when the transcript reads as a clinical question.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading transcript: %w", err)
		}

		var patient prompt.Patient
		patient.Name, _ = cmd.Flags().GetString("name")
		patient.Age, _ = cmd.Flags().GetString("age")
		patient.Gender, _ = cmd.Flags().GetString("gender")
		patient.Observations, _ = cmd.Flags().GetString("observations")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if soap, _ := cmd.Flags().GetBool("soap"); soap {
			note, err := a.analyzer.FormatSOAP(cmd.Context(), consultation.Request{
				Transcript: string(data),
				Patient:    patient,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), note.FullText)
			for _, src := range note.Sources {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s) %s\n", src.Title, src.Year, src.URL)
			}
			fmt.Fprintf(os.Stderr, "(%s, %d tokens)\n", note.Model, note.TokensUsed)
			return nil
		}

		report, err := a.analyzer.Analyze(cmd.Context(), consultation.Request{
			Transcript: string(data),
			Patient:    patient,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Text)
		fmt.Fprintf(os.Stderr, "(%s, %d tokens)\n", report.Model, report.TokensUsed)
		return nil
	},
}

func init() {
	consultCmd.Flags().String("name", "", "patient name")
	consultCmd.Flags().String("age", "", "patient age")
	consultCmd.Flags().String("gender", "", "patient sex")
	consultCmd.Flags().String("observations", "", "additional observations")
	consultCmd.Flags().Bool("soap", false, "format the transcript as a SOAP note")
	rootCmd.AddCommand(consultCmd)
}
