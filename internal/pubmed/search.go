// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Search runs an esearch query and returns PMIDs in relevance order. A blank
// query returns an empty list without a request; maxResults <= 0 means
// DefaultSearchLimit.
func (c *Client) Search(ctx context.Context, query string, maxResults int) types.Outcome[[]string] {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.Ok([]string{})
	}
	if maxResults <= 0 {
		maxResults = DefaultSearchLimit
	}

	params := c.params()
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return types.Degraded[[]string](fmt.Errorf("esearch request: %w", err))
	}

	var sr esearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return types.Degraded[[]string](fmt.Errorf("parsing esearch response: %w", err))
	}
	if sr.Result == nil {
		return types.Ok([]string{})
	}
	if sr.Result.Error != "" && len(sr.Result.IDList) == 0 {
		return types.Degraded[[]string](fmt.Errorf("esearch error: %s", sr.Result.Error))
	}

	ids := cleanIDs(sr.Result.IDList)
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	c.logger().Debug("esearch", zap.String("query", query), zap.Int("ids", len(ids)))
	return types.Ok(ids)
}

type esearchResponse struct {
	Result *esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
	Error  string   `json:"ERROR"`
}
