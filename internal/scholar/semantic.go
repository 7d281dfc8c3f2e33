// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// semanticAPIBase is the Graph API root used when the config leaves BaseURL
// empty. Declared as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,url,abstract,year,venue,authors,externalIds"

// SemanticScholar searches the Semantic Scholar paper index.
type SemanticScholar struct {
	HTTP      *http.Client
	Config    types.SemanticScholarConfig
	UserAgent string
	Logger    *zap.Logger
}

// NewSemanticScholar builds a client whose HTTP timeout comes from httpCfg.
func NewSemanticScholar(cfg types.SemanticScholarConfig, httpCfg types.HTTPConfig, logger *zap.Logger) *SemanticScholar {
	return &SemanticScholar{
		HTTP:      &http.Client{Timeout: httpCfg.Timeout},
		Config:    cfg,
		UserAgent: httpCfg.UserAgent,
		Logger:    nopIfNil(logger),
	}
}

// Name returns the index identifier.
func (s *SemanticScholar) Name() string { return types.OriginSemanticScholar }

// Search returns up to maxResults papers for query in relevance order.
// Papers with a PubMed external id use the PMID as identifier; others use
// the Semantic Scholar paper id.
func (s *SemanticScholar) Search(ctx context.Context, query string, maxResults int) types.Outcome[types.EvidenceSet] {
	query = strings.TrimSpace(query)
	if query == "" {
		return emptySet()
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(maxResults)},
		"fields": {semanticFields},
	}
	header := http.Header{}
	if s.Config.APIKey != "" {
		header.Set("x-api-key", s.Config.APIKey)
	}
	base := s.Config.BaseURL
	if base == "" {
		base = semanticAPIBase
	}

	body, err := getJSON(ctx, s.HTTP, base, "/paper/search", params, header, s.UserAgent)
	if err != nil {
		return types.Degraded[types.EvidenceSet](fmt.Errorf("Semantic Scholar request: %w", err))
	}

	var sr semanticResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return types.Degraded[types.EvidenceSet](fmt.Errorf("parsing Semantic Scholar response: %w", err))
	}

	set := make(types.EvidenceSet, 0, len(sr.Data))
	for _, p := range sr.Data {
		if len(set) == maxResults {
			break
		}
		set = append(set, p.document())
	}
	nopIfNil(s.Logger).Debug("semantic scholar search",
		zap.String("query", query), zap.Int("results", len(set)))
	return types.Ok(set)
}

func (p semanticPaper) document() types.Document {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}

	d := types.Document{
		ID:       p.PaperID,
		Title:    orPlaceholder(p.Title, types.PlaceholderTitle),
		Authors:  orPlaceholder(strings.Join(names, ", "), types.PlaceholderAuthors),
		Journal:  orPlaceholder(p.Venue, types.PlaceholderJournal),
		PubDate:  types.PlaceholderDate,
		DOI:      p.ExternalIDs.DOI,
		URL:      p.URL,
		Abstract: orPlaceholder(p.Abstract, types.PlaceholderAbstract),
		Origin:   types.OriginSemanticScholar,
	}
	if p.Year > 0 {
		d.PubDate = strconv.Itoa(p.Year)
	}
	if pmid := strings.TrimSpace(p.ExternalIDs.PubMed); pmid != "" {
		d.ID = pmid
		if d.URL == "" {
			d.URL = types.PubMedURL(pmid)
		}
	}
	return d
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	URL         string              `json:"url"`
	Abstract    string              `json:"abstract"`
	Year        int                 `json:"year"`
	Venue       string              `json:"venue"`
	Authors     []semanticAuthor    `json:"authors"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
}
