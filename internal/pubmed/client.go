// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed queries the NCBI E-utilities API. It implements the three
// retrieval stages of the evidence pipeline: keyword search (esearch),
// bibliographic metadata (esummary) and abstracts (efetch).
//
// Every stage makes a single attempt and returns a types.Outcome: transport,
// status and parse failures degrade to an empty value instead of an error.
package pubmed

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// eutilsBase is the E-utilities root used when the config leaves BaseURL empty.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// DefaultSearchLimit is the esearch retmax used when the caller passes no limit.
const DefaultSearchLimit = 5

// Client talks to the E-utilities endpoints.
type Client struct {
	HTTP      *http.Client
	Config    types.PubMedConfig
	UserAgent string
	Logger    *zap.Logger
}

// NewClient builds a Client whose HTTP timeout comes from httpCfg.
func NewClient(cfg types.PubMedConfig, httpCfg types.HTTPConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTP:      &http.Client{Timeout: httpCfg.Timeout},
		Config:    cfg,
		UserAgent: httpCfg.UserAgent,
		Logger:    logger,
	}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// params returns the etiquette parameters NCBI asks every caller to send.
func (c *Client) params() url.Values {
	v := url.Values{"db": {"pubmed"}}
	if c.Config.Email != "" {
		v.Set("email", c.Config.Email)
	}
	if c.Config.Tool != "" {
		v.Set("tool", c.Config.Tool)
	}
	if c.Config.APIKey != "" {
		v.Set("api_key", c.Config.APIKey)
	}
	return v
}

// get issues one GET against an E-utilities endpoint.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	base := c.Config.BaseURL
	if base == "" {
		base = eutilsBase
	}
	reqURL := strings.TrimRight(base, "/") + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return httputil.Fetch(ctx, c.HTTP, req, c.UserAgent)
}

// cleanIDs drops blank identifiers and surrounding whitespace.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
