// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consultation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/generate"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Sampling settings for SOAP notes.
const (
	SOAPTemperature = 0.3
	SOAPMaxTokens   = 2000
)

// MissingSection fills a SOAP section the model did not produce.
const MissingSection = "Não identificado na transcrição"

// EvidenceSource retrieves evidence for a query. *evidence.Assembler
// implements it.
type EvidenceSource interface {
	Assemble(ctx context.Context, query string, maxResults int) evidence.Result
}

// SOAP holds the four sections of a note.
type SOAP struct {
	Subjective string `json:"subjetivo" yaml:"subjetivo"`
	Objective  string `json:"objetivo" yaml:"objetivo"`
	Assessment string `json:"avaliacao" yaml:"avaliacao"`
	Plan       string `json:"plano" yaml:"plano"`
}

// Note is a transcript formatted as SOAP.
type Note struct {
	SOAP       SOAP
	Patient    prompt.Patient
	FullText   string
	Sources    []types.Source
	Model      string
	TokensUsed int
}

// FormatSOAP formats the transcript of req as a SOAP note. When the
// transcript reads as a clinical question and Evidence is set, retrieved
// studies are added to the instruction; a failed lookup only drops them.
func (a *Analyzer) FormatSOAP(ctx context.Context, req Request) (Note, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return Note{}, ErrEmptyTranscript
	}
	start := time.Now()

	var set types.EvidenceSet
	if a.Evidence != nil && prompt.NeedsEvidence(req.Transcript) {
		set = a.Evidence.Assemble(ctx, req.Transcript, a.MaxResults).Evidence
	}
	var block string
	if len(set) > 0 {
		block = evidence.RenderContext(set)
	}

	system, err := prompt.SOAPSystem(block)
	if err != nil {
		return Note{}, fmt.Errorf("rendering SOAP instruction: %w", err)
	}
	user, err := prompt.SOAPPrompt(req.Transcript, req.Patient)
	if err != nil {
		return Note{}, fmt.Errorf("rendering SOAP prompt: %w", err)
	}

	c, err := a.Backend.Generate(ctx, generate.Request{
		Turns:       []types.Turn{types.SystemTurn(system), types.UserTurn(user)},
		Temperature: SOAPTemperature,
		MaxTokens:   SOAPMaxTokens,
	})
	a.recordKind(ctx, types.ExchangeSOAP, c, err, set.IDs(), start)
	if err != nil {
		return Note{}, fmt.Errorf("generating SOAP note: %w", err)
	}

	a.logger().Info("soap note generated",
		zap.String("model", c.Model),
		zap.Int("tokens", c.TokensUsed),
		zap.Int("sources", len(set)))
	return Note{
		SOAP:       ParseSOAP(c.Text),
		Patient:    req.Patient.OrNotInformed(),
		FullText:   c.Text,
		Sources:    set.Sources(),
		Model:      c.Model,
		TokensUsed: c.TokensUsed,
	}, nil
}

// Section headings accepted by ParseSOAP. A single letter counts only when
// followed by a parenthesis, colon, bold marker, dash or line end, so prose
// starting with "A " is not a heading.
var (
	letterHeading = regexp.MustCompile(`^[#*\s]*([SOAP])\s*(?:\([^)]*\))?\s*\**\s*(?::|\*\*|-|$)\s*\**\s*(.*)$`)
	wordHeading   = regexp.MustCompile(`(?i)^[#*\s]*(SUBJETIVO|OBJETIVO|AVALIAÇÃO|AVALIACAO|PLANO)\s*\**\s*(?::|\*\*|$)\s*\**\s*(.*)$`)
)

// ParseSOAP splits model output into the four SOAP sections. Text before the
// first heading is ignored; a missing section reads MissingSection.
func ParseSOAP(text string) SOAP {
	sections := map[byte]*strings.Builder{}
	var current *strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if key, rest, ok := heading(line); ok {
			b, seen := sections[key]
			if !seen {
				b = &strings.Builder{}
				sections[key] = b
			}
			current = b
			if rest != "" {
				current.WriteString(rest)
				current.WriteByte('\n')
			}
			continue
		}
		if current != nil {
			current.WriteString(line)
			current.WriteByte('\n')
		}
	}

	get := func(key byte) string {
		if b, ok := sections[key]; ok {
			if s := strings.TrimSpace(b.String()); s != "" {
				return s
			}
		}
		return MissingSection
	}
	return SOAP{Subjective: get('S'), Objective: get('O'), Assessment: get('A'), Plan: get('P')}
}

// heading reports whether line opens a SOAP section, returning the section
// letter and any text after the heading on the same line.
func heading(line string) (byte, string, bool) {
	if m := letterHeading.FindStringSubmatch(line); m != nil {
		return m[1][0], strings.TrimSpace(m[2]), true
	}
	if m := wordHeading.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(m[1])[0], strings.TrimSpace(m[2]), true
	}
	return 0, "", false
}
