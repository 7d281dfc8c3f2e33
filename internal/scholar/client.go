// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scholar queries supplementary literature indexes (Semantic Scholar
// and Europe PMC). Each index returns complete documents from a single
// search call, so unlike PubMed there is no separate metadata or abstract
// stage.
//
// Searches make one attempt and return a types.Outcome: any failure
// degrades to an empty set.
package scholar

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// getJSON issues a GET for base+path with params and returns the body.
func getJSON(ctx context.Context, client *http.Client, base, path string, params url.Values, header http.Header, userAgent string) ([]byte, error) {
	reqURL := strings.TrimRight(base, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return httputil.Fetch(ctx, client, req, userAgent)
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// orPlaceholder returns the trimmed s, or placeholder when it is blank.
func orPlaceholder(s, placeholder string) string {
	if s = strings.TrimSpace(s); s == "" {
		return placeholder
	}
	return s
}

// emptySet is the value returned for blank queries.
func emptySet() types.Outcome[types.EvidenceSet] {
	return types.Ok(types.EvidenceSet{})
}
