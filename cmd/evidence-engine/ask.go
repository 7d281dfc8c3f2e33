// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/respond"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question, or chat interactively with --interactive",
	Long: `Ask runs the full chat pipeline for one question and prints the answer
followed by the PubMed sources it was grounded on. With --interactive it reads
questions from stdin line by line and keeps the conversation history between
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		asJSON, _ := cmd.Flags().GetBool("json")
		interactive, _ := cmd.Flags().GetBool("interactive")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		ask := func(id, question string) (string, error) {
			resp, err := a.chat.Respond(cmd.Context(), respond.Request{
				Message:        question,
				Profile:        profile,
				ConversationID: id,
			})
			if err != nil {
				return id, err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(askOutput(resp)); err != nil {
					return resp.ConversationID, err
				}
			} else {
				printAnswer(out, resp)
			}
			if !resp.Success {
				return resp.ConversationID, fmt.Errorf("generation failed: %w", resp.Err)
			}
			return resp.ConversationID, nil
		}

		if !interactive {
			if len(args) == 0 {
				return fmt.Errorf("a question is required")
			}
			_, err := ask("", strings.Join(args, " "))
			return err
		}

		id := ""
		scanner := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprint(os.Stderr, "> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				next, err := ask(id, line)
				if err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
				id = next
			}
			fmt.Fprint(os.Stderr, "> ")
		}
		return scanner.Err()
	},
}

type askSource struct {
	Title string `json:"title"`
	PMID  string `json:"pmid"`
	URL   string `json:"url"`
}

type askResult struct {
	Success        bool        `json:"success"`
	ConversationID string      `json:"conversation_id"`
	Profile        string      `json:"profile"`
	Response       string      `json:"response"`
	Model          string      `json:"model,omitempty"`
	TokensUsed     int         `json:"tokens_used"`
	Sources        []askSource `json:"sources"`
}

func askOutput(r respond.Response) askResult {
	out := askResult{
		Success:        r.Success,
		ConversationID: r.ConversationID,
		Profile:        r.Profile.String(),
		Response:       r.Text,
		Model:          r.Model,
		TokensUsed:     r.TokensUsed,
		Sources:        make([]askSource, 0, len(r.Sources)),
	}
	for _, s := range r.Sources {
		out.Sources = append(out.Sources, askSource{Title: s.Title, PMID: s.PMID, URL: s.URL})
	}
	return out
}

func printAnswer(w io.Writer, r respond.Response) {
	fmt.Fprintln(w, r.Text)
	if len(r.Sources) > 0 {
		fmt.Fprintln(w, "\nFontes:")
		for i, s := range r.Sources {
			fmt.Fprintf(w, "  [%d] %s (%s) %s\n", i+1, s.Title, s.Year, s.URL)
		}
	}
	if r.Success {
		fmt.Fprintf(w, "\n(%s, %d tokens, conversa %s)\n", r.Model, r.TokensUsed, r.ConversationID)
	}
}

func init() {
	askCmd.Flags().String("profile", "geral", "assistant profile: geral, exames, pediatria, emergencia, calculadoras")
	askCmd.Flags().Bool("json", false, "output the response as JSON")
	askCmd.Flags().BoolP("interactive", "i", false, "read questions from stdin and keep history")
	rootCmd.AddCommand(askCmd)
}
