// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/consultation"
	"github.com/pdiddy/evidence-engine/internal/conversation"
	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/generate"
	"github.com/pdiddy/evidence-engine/internal/ledger"
	"github.com/pdiddy/evidence-engine/internal/pubmed"
	"github.com/pdiddy/evidence-engine/internal/respond"
	"github.com/pdiddy/evidence-engine/internal/scholar"
	"github.com/pdiddy/evidence-engine/internal/telemetry"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// app holds the wired components shared by the commands.
type app struct {
	metrics   *telemetry.Metrics
	assembler *evidence.Assembler
	store     *conversation.Store
	ledger    *ledger.Ledger
	chat      *respond.Orchestrator
	analyzer  *consultation.Analyzer
}

// newAssembler wires the PubMed stages and the configured supplementary
// indexes. It needs no generation credentials.
func newAssembler(c types.Config, metrics *telemetry.Metrics) *evidence.Assembler {
	pm := pubmed.NewClient(c.PubMed, c.HTTP, logger.Named("pubmed"))
	return evidence.NewAssembler(pm, pm, pm, metrics, logger.Named("evidence"), supplements(c)...)
}

// supplements builds the indexes named in evidence.supplements, in order.
// Names are validated by loadConfig.
func supplements(c types.Config) []evidence.Supplement {
	var out []evidence.Supplement
	for _, name := range c.Evidence.Supplements {
		switch name {
		case types.OriginSemanticScholar:
			out = append(out, scholar.NewSemanticScholar(c.SemanticScholar, c.HTTP, logger.Named("semantic_scholar")))
		case types.OriginEuropePMC:
			out = append(out, scholar.NewEuropePMC(c.EuropePMC, c.HTTP, logger.Named("europe_pmc")))
		}
	}
	return out
}

// newApp wires the full pipeline. The ledger is skipped when ledger.path
// is empty or cannot be opened.
func newApp(ctx context.Context, c types.Config) (*app, error) {
	metrics := telemetry.New()

	backend, err := generate.New(ctx, c.Generation, c.HTTP, logger.Named("generate"))
	if err != nil {
		return nil, fmt.Errorf("configuring %s backend: %w", c.Generation.Provider, err)
	}

	a := &app{
		metrics:   metrics,
		assembler: newAssembler(c, metrics),
		store:     conversation.NewStore(c.Conversation),
	}
	a.store.OnEvict(metrics.Evicted)

	var rec respond.Recorder
	if c.Ledger.Path != "" {
		l, err := ledger.Open(c.Ledger)
		if err != nil {
			logger.Warn("exchange ledger disabled", zap.String("path", c.Ledger.Path), zap.Error(err))
		} else {
			a.ledger = l
			rec = l
		}
	}

	temperature := c.Generation.Temperature
	a.chat = respond.New(respond.Deps{
		Evidence: a.assembler,
		Backend:  backend,
		Store:    a.store,
		Recorder: rec,
		Observer: metrics,
		Logger:   logger.Named("respond"),
	}, respond.Options{
		MaxResults:    c.Evidence.MaxResults,
		HistoryWindow: c.Conversation.HistoryWindow,
		Temperature:   &temperature,
		MaxTokens:     c.Generation.MaxTokens,
		Timeout:       c.Respond.Timeout,
	})

	a.analyzer = &consultation.Analyzer{
		Backend:    backend,
		Evidence:   a.assembler,
		MaxResults: c.Evidence.MaxResults,
		Observer:   metrics,
		Logger:     logger.Named("consultation"),
	}
	if a.ledger != nil {
		a.analyzer.Recorder = a.ledger
	}
	return a, nil
}

func (a *app) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}
