// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// FetchMetadata runs an esummary lookup for ids and returns one Document per
// id that has a titled record, in input order. The Abstract field is left
// empty. Ids without a usable record are skipped.
func (c *Client) FetchMetadata(ctx context.Context, ids []string) types.Outcome[[]types.Document] {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return types.Ok([]types.Document{})
	}

	params := c.params()
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esummary.fcgi", params)
	if err != nil {
		return types.Degraded[[]types.Document](fmt.Errorf("esummary request: %w", err))
	}

	var sr esummaryResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return types.Degraded[[]types.Document](fmt.Errorf("parsing esummary response: %w", err))
	}
	if sr.Result == nil {
		if sr.Error != "" {
			return types.Degraded[[]types.Document](fmt.Errorf("esummary error: %s", sr.Error))
		}
		return types.Ok([]types.Document{})
	}

	docs := make([]types.Document, 0, len(ids))
	for _, id := range ids {
		raw, ok := sr.Result[id]
		if !ok {
			continue
		}
		var rec summaryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger().Debug("skipping unparseable esummary record", zap.String("pmid", id), zap.Error(err))
			continue
		}
		if strings.TrimSpace(rec.Title) == "" {
			continue
		}
		docs = append(docs, rec.document(id))
	}
	return types.Ok(docs)
}

// document maps an esummary record to a Document, substituting placeholders
// for missing fields.
func (r summaryRecord) document(id string) types.Document {
	names := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	authors := strings.Join(names, ", ")
	if authors == "" {
		authors = types.PlaceholderAuthors
	}

	journal := firstNonEmpty(r.FullJournalName, r.Source, types.PlaceholderJournal)
	pubdate := firstNonEmpty(r.PubDate, types.PlaceholderDate)

	return types.Document{
		ID:      id,
		Title:   strings.TrimSpace(r.Title),
		Authors: authors,
		Journal: journal,
		PubDate: pubdate,
		DOI:     strings.TrimSpace(r.ELocationID),
		URL:     types.PubMedURL(id),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// esummary JSON structures. The result object maps each uid to its record
// and also carries a "uids" array, which fails to decode as a record and is
// never looked up by id.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
	Error  string                     `json:"error"`
}

type summaryRecord struct {
	UID             string          `json:"uid"`
	Title           string          `json:"title"`
	Authors         []summaryAuthor `json:"authors"`
	FullJournalName string          `json:"fulljournalname"`
	Source          string          `json:"source"`
	PubDate         string          `json:"pubdate"`
	ELocationID     string          `json:"elocationid"`
	Error           string          `json:"error"`
}

type summaryAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}
