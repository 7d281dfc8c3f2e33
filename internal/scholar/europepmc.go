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

// europePMCBase is the REST root used when the config leaves BaseURL empty.
var europePMCBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMC searches the Europe PMC index, which aggregates PubMed, PMC,
// SciELO and preprint servers.
type EuropePMC struct {
	HTTP      *http.Client
	Config    types.EuropePMCConfig
	UserAgent string
	Logger    *zap.Logger
}

// NewEuropePMC builds a client whose HTTP timeout comes from httpCfg.
func NewEuropePMC(cfg types.EuropePMCConfig, httpCfg types.HTTPConfig, logger *zap.Logger) *EuropePMC {
	return &EuropePMC{
		HTTP:      &http.Client{Timeout: httpCfg.Timeout},
		Config:    cfg,
		UserAgent: httpCfg.UserAgent,
		Logger:    nopIfNil(logger),
	}
}

// Name returns the index identifier.
func (e *EuropePMC) Name() string { return types.OriginEuropePMC }

// Search returns up to maxResults records for query. Records indexed by
// PubMed keep their PMID as identifier.
func (e *EuropePMC) Search(ctx context.Context, query string, maxResults int) types.Outcome[types.EvidenceSet] {
	query = strings.TrimSpace(query)
	if query == "" {
		return emptySet()
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{
		"query":      {query},
		"format":     {"json"},
		"pageSize":   {strconv.Itoa(maxResults)},
		"resultType": {"core"},
	}
	base := e.Config.BaseURL
	if base == "" {
		base = europePMCBase
	}

	body, err := getJSON(ctx, e.HTTP, base, "/search", params, nil, e.UserAgent)
	if err != nil {
		return types.Degraded[types.EvidenceSet](fmt.Errorf("Europe PMC request: %w", err))
	}

	var er europePMCResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return types.Degraded[types.EvidenceSet](fmt.Errorf("parsing Europe PMC response: %w", err))
	}

	set := make(types.EvidenceSet, 0, len(er.ResultList.Result))
	for _, r := range er.ResultList.Result {
		if len(set) == maxResults {
			break
		}
		set = append(set, r.document())
	}
	nopIfNil(e.Logger).Debug("europe pmc search",
		zap.String("query", query), zap.Int("results", len(set)))
	return types.Ok(set)
}

func (r europePMCResult) document() types.Document {
	journal := r.JournalTitle
	if journal == "" {
		journal = r.JournalInfo.Journal.Title
	}

	d := types.Document{
		ID:       r.Source + ":" + r.ID,
		Title:    orPlaceholder(r.Title, types.PlaceholderTitle),
		Authors:  orPlaceholder(strings.TrimSuffix(strings.TrimSpace(r.AuthorString), "."), types.PlaceholderAuthors),
		Journal:  orPlaceholder(journal, types.PlaceholderJournal),
		PubDate:  orPlaceholder(r.PubYear, types.PlaceholderDate),
		DOI:      r.DOI,
		URL:      r.link(),
		Abstract: orPlaceholder(r.AbstractText, types.PlaceholderAbstract),
		Origin:   types.OriginEuropePMC,
	}
	if r.PMID != "" {
		d.ID = r.PMID
	}
	return d
}

// link prefers a full-text URL, then the DOI resolver, then PubMed, then PMC.
func (r europePMCResult) link() string {
	switch {
	case len(r.FullTextURLList.FullTextURL) > 0 && r.FullTextURLList.FullTextURL[0].URL != "":
		return r.FullTextURLList.FullTextURL[0].URL
	case r.DOI != "":
		return "https://doi.org/" + r.DOI
	case r.PMID != "":
		return types.PubMedURL(r.PMID)
	case r.PMCID != "":
		return "https://europepmc.org/article/PMC/" + r.PMCID
	default:
		return ""
	}
}

// Europe PMC JSON structures. Core results carry the journal under
// journalInfo; lite results carry journalTitle.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	JournalTitle string `json:"journalTitle"`
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	PubYear         string `json:"pubYear"`
	AbstractText    string `json:"abstractText"`
	FullTextURLList struct {
		FullTextURL []struct {
			URL string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}
