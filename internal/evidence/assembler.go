// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence assembles literature evidence for a query: it searches the
// index, fetches metadata and abstracts concurrently, merges them by
// identifier and renders the result as a prompt context block.
package evidence

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultMaxResults is the evidence limit used when the caller passes none.
const DefaultMaxResults = 3

// Searcher returns document identifiers for a query in relevance order.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) types.Outcome[[]string]
}

// MetadataFetcher returns one partial Document per identifier it can resolve.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ids []string) types.Outcome[[]types.Document]
}

// AbstractFetcher returns abstracts for the identifiers it can resolve.
type AbstractFetcher interface {
	FetchAbstracts(ctx context.Context, ids []string) types.Outcome[[]types.Abstract]
}

// Supplement is an additional index that returns complete documents from a
// single search. Its documents follow the PubMed documents in the set.
type Supplement interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) types.Outcome[types.EvidenceSet]
}

// Stage names a retrieval step. Supplements degrade under their own name.
type Stage string

const (
	StageSearch    Stage = "search"
	StageMetadata  Stage = "metadata"
	StageAbstracts Stage = "abstracts"
)

// Observer is notified of degraded stages. telemetry.Metrics implements it.
type Observer interface {
	StageDegraded(stage string)
}

// Result is the output of one assembly. Degraded lists the stages that
// failed and were replaced by empty results.
type Result struct {
	Evidence types.EvidenceSet
	Degraded []Stage
}

// Assembler runs the retrieval pipeline.
type Assembler struct {
	search    Searcher
	metadata  MetadataFetcher
	abstracts AbstractFetcher
	extra     []Supplement
	observer  Observer
	logger    *zap.Logger
}

// NewAssembler wires the three stages plus any supplementary indexes.
// observer and logger may be nil.
func NewAssembler(s Searcher, m MetadataFetcher, a AbstractFetcher, observer Observer, logger *zap.Logger, extra ...Supplement) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{search: s, metadata: m, abstracts: a, extra: extra, observer: observer, logger: logger}
}

// Assemble retrieves up to maxResults documents for query from PubMed and
// up to maxResults from each supplement. It never fails: a degraded search
// or metadata fetch yields no PubMed documents, a degraded abstract fetch
// leaves placeholder abstracts, and a degraded supplement contributes
// nothing. Supplements run concurrently with the PubMed stages.
func (a *Assembler) Assemble(ctx context.Context, query string, maxResults int) Result {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if len(a.extra) == 0 {
		return a.assemblePubMed(ctx, query, maxResults)
	}

	found := make([]types.Outcome[types.EvidenceSet], len(a.extra))
	var g errgroup.Group
	for i, s := range a.extra {
		g.Go(func() error {
			found[i] = s.Search(ctx, query, maxResults)
			return nil
		})
	}
	res := a.assemblePubMed(ctx, query, maxResults)
	_ = g.Wait()

	sets := make([]types.EvidenceSet, 0, len(found))
	for i, out := range found {
		if out.IsDegraded() {
			a.degrade(&res, Stage(a.extra[i].Name()), out.Err)
			continue
		}
		sets = append(sets, out.Value)
	}
	res.Evidence = Combine(res.Evidence, sets...)
	return res
}

// assemblePubMed runs search, then metadata and abstracts concurrently.
func (a *Assembler) assemblePubMed(ctx context.Context, query string, maxResults int) Result {
	var res Result

	found := a.search.Search(ctx, query, maxResults)
	if found.IsDegraded() {
		a.degrade(&res, StageSearch, found.Err)
	}
	ids := dedupe(found.Value)
	if len(ids) == 0 {
		res.Evidence = types.EvidenceSet{}
		return res
	}

	var (
		meta types.Outcome[[]types.Document]
		abs  types.Outcome[[]types.Abstract]
		g    errgroup.Group
	)
	g.Go(func() error {
		meta = a.metadata.FetchMetadata(ctx, ids)
		return nil
	})
	g.Go(func() error {
		abs = a.abstracts.FetchAbstracts(ctx, ids)
		return nil
	})
	_ = g.Wait()

	if meta.IsDegraded() {
		a.degrade(&res, StageMetadata, meta.Err)
	}
	if abs.IsDegraded() {
		a.degrade(&res, StageAbstracts, abs.Err)
	}

	res.Evidence = Merge(ids, meta.Value, abs.Value)
	a.logger.Debug("evidence assembled",
		zap.String("query", query),
		zap.Int("ids", len(ids)),
		zap.Int("documents", len(res.Evidence)))
	return res
}

func (a *Assembler) degrade(res *Result, stage Stage, err error) {
	res.Degraded = append(res.Degraded, stage)
	a.logger.Warn("evidence stage degraded", zap.String("stage", string(stage)), zap.Error(err))
	if a.observer != nil {
		a.observer.StageDegraded(string(stage))
	}
}

// Merge joins metadata and abstracts on identifier. The metadata batch
// decides which documents exist and their order; documents whose id is not
// in ids are dropped. The first abstract seen for an id wins; documents
// without one get types.PlaceholderAbstract.
func Merge(ids []string, docs []types.Document, abstracts []types.Abstract) types.EvidenceSet {
	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}

	byID := make(map[string]string, len(abstracts))
	for _, ab := range abstracts {
		if _, seen := byID[ab.ID]; !seen {
			byID[ab.ID] = ab.Text
		}
	}

	out := make(types.EvidenceSet, 0, len(docs))
	emitted := make(map[string]bool, len(docs))
	for _, d := range docs {
		if !allowed[d.ID] || emitted[d.ID] {
			continue
		}
		emitted[d.ID] = true
		if text, ok := byID[d.ID]; ok && text != "" {
			d.Abstract = text
		} else {
			d.Abstract = types.PlaceholderAbstract
		}
		out = append(out, d)
	}
	return out
}

// Combine appends the supplementary sets to base in order, skipping any
// document already present by identifier, DOI or title.
func Combine(base types.EvidenceSet, extra ...types.EvidenceSet) types.EvidenceSet {
	out := make(types.EvidenceSet, 0, len(base))
	seen := make(map[string]bool)
	add := func(d types.Document) {
		keys := documentKeys(d)
		for _, k := range keys {
			if seen[k] {
				return
			}
		}
		for _, k := range keys {
			seen[k] = true
		}
		out = append(out, d)
	}
	for _, d := range base {
		add(d)
	}
	for _, set := range extra {
		for _, d := range set {
			add(d)
		}
	}
	return out
}

// documentKeys returns the identity keys of d. Placeholder titles do not
// identify a document.
func documentKeys(d types.Document) []string {
	var keys []string
	if id := strings.TrimSpace(d.ID); id != "" {
		keys = append(keys, "id:"+id)
	}
	if doi := normalizeDOI(d.DOI); doi != "" {
		keys = append(keys, "doi:"+doi)
	}
	if title := strings.ToLower(strings.Trim(strings.TrimSpace(d.Title), ".")); title != "" && d.Title != types.PlaceholderTitle {
		keys = append(keys, "title:"+title)
	}
	return keys
}

// normalizeDOI strips the "doi:" prefixes and resolver hosts PubMed and the
// supplements put in front of a DOI.
func normalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"doi:", "https://doi.org/", "http://doi.org/", "http://dx.doi.org/", "https://dx.doi.org/"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, p))
	}
	return s
}

// dedupe drops repeated identifiers, keeping first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
