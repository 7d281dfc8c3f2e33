// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package consultation turns a consultation transcript into a structured
// clinical report or a SOAP note.
package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/generate"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrEmptyTranscript rejects a blank transcript before any external call.
var ErrEmptyTranscript = errors.New("transcript must not be empty")

// Sampling settings for reports.
const (
	Temperature = 0.5
	MaxTokens   = 2000
)

// Recorder persists exchanges. *ledger.Ledger implements it.
type Recorder interface {
	Record(ctx context.Context, ex types.Exchange) (int64, error)
}

// Observer counts exchanges. *telemetry.Metrics implements it.
type Observer interface {
	Exchange(kind, model string, success bool, tokens int, elapsed time.Duration)
}

// Request is one transcript to analyze.
type Request struct {
	Transcript string
	Patient    prompt.Patient
}

// Report is the generated clinical report.
type Report struct {
	Text       string
	Transcript string
	Model      string
	TokensUsed int
}

// Analyzer generates reports and SOAP notes with a single backend call
// each. Evidence, Recorder, Observer and Logger may be nil; MaxResults zero
// uses the assembler default.
type Analyzer struct {
	Backend    generate.Backend
	Evidence   EvidenceSource
	MaxResults int
	Recorder   Recorder
	Observer   Observer
	Logger     *zap.Logger
}

// Analyze renders the consultation prompt for req and returns the report.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Report, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return Report{}, ErrEmptyTranscript
	}
	start := time.Now()

	user, err := prompt.ConsultationPrompt(req.Transcript, req.Patient)
	if err != nil {
		return Report{}, fmt.Errorf("rendering consultation prompt: %w", err)
	}

	c, err := a.Backend.Generate(ctx, generate.Request{
		Turns: []types.Turn{
			types.SystemTurn(prompt.ConsultationSystem),
			types.UserTurn(user),
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	a.recordKind(ctx, types.ExchangeConsultation, c, err, nil, start)
	if err != nil {
		return Report{}, fmt.Errorf("generating report: %w", err)
	}

	a.logger().Info("consultation report generated",
		zap.String("model", c.Model),
		zap.Int("tokens", c.TokensUsed),
		zap.Int("transcript_chars", len(req.Transcript)))
	return Report{Text: c.Text, Transcript: req.Transcript, Model: c.Model, TokensUsed: c.TokensUsed}, nil
}

func (a *Analyzer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Analyzer) recordKind(ctx context.Context, kind types.ExchangeKind, c generate.Completion, genErr error, pmids []string, start time.Time) {
	success := genErr == nil
	if a.Observer != nil {
		a.Observer.Exchange(string(kind), c.Model, success, c.TokensUsed, time.Since(start))
	}
	if a.Recorder == nil {
		return
	}
	ex := types.Exchange{
		Kind:       kind,
		Model:      c.Model,
		PMIDs:      pmids,
		TokensUsed: c.TokensUsed,
		Success:    success,
		CreatedAt:  start,
	}
	if genErr != nil {
		ex.Error = genErr.Error()
	}
	if _, err := a.Recorder.Record(context.WithoutCancel(ctx), ex); err != nil {
		a.logger().Warn("recording exchange", zap.Error(err))
	}
}
