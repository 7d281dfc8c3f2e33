// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// FetchAbstracts runs an efetch lookup for ids and returns the abstract of
// each parseable PubmedArticle in document order. Labeled abstract segments
// are rendered "LABEL: text" and joined by newlines; an article without
// segments gets types.PlaceholderAbstract. Records lacking a citation, an
// article body or a PMID are skipped.
func (c *Client) FetchAbstracts(ctx context.Context, ids []string) types.Outcome[[]types.Abstract] {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return types.Ok([]types.Abstract{})
	}

	params := c.params()
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return types.Degraded[[]types.Abstract](fmt.Errorf("efetch request: %w", err))
	}

	abstracts, err := parseArticleSet(body)
	if err != nil {
		return types.Degraded[[]types.Abstract](fmt.Errorf("parsing efetch response: %w", err))
	}
	return types.Ok(abstracts)
}

// parseArticleSet decodes a PubmedArticleSet document.
func parseArticleSet(data []byte) ([]types.Abstract, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity

	var set articleSet
	if err := dec.Decode(&set); err != nil {
		return nil, err
	}

	out := make([]types.Abstract, 0, len(set.Articles))
	for _, a := range set.Articles {
		cit := a.Citation
		if cit == nil || cit.Article == nil {
			continue
		}
		pmid := strings.TrimSpace(cit.PMID)
		if pmid == "" {
			continue
		}

		title := strings.TrimSpace(cit.Article.Title.Text)
		if title == "" {
			title = types.PlaceholderTitle
		}

		out = append(out, types.Abstract{
			ID:    pmid,
			Title: title,
			Text:  joinSegments(cit.Article.Abstract),
		})
	}
	return out, nil
}

// joinSegments renders the AbstractText segments of one article.
func joinSegments(abs *abstractBlock) string {
	if abs == nil {
		return types.PlaceholderAbstract
	}
	lines := make([]string, 0, len(abs.Segments))
	for _, seg := range abs.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if label := strings.TrimSpace(seg.Label); label != "" {
			text = label + ": " + text
		}
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return types.PlaceholderAbstract
	}
	return strings.Join(lines, "\n")
}

// efetch XML structures. Only the fields read by the pipeline are declared.
type articleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation *medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID    string       `xml:"PMID"`
	Article *articleBody `xml:"Article"`
}

type articleBody struct {
	Title    flatText       `xml:"ArticleTitle"`
	Abstract *abstractBlock `xml:"Abstract"`
}

type abstractBlock struct {
	Segments []abstractSegment `xml:"AbstractText"`
}

// abstractSegment is one AbstractText element. Its text may contain inline
// markup (<i>, <sup>, <b>) which is flattened to character data.
type abstractSegment struct {
	Label string
	Text  string
}

func (s *abstractSegment) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			s.Label = attr.Value
		}
	}
	text, err := collectText(d)
	if err != nil {
		return err
	}
	s.Text = text
	return nil
}

// flatText is element content with nested markup reduced to its text.
type flatText struct {
	Text string
}

func (f *flatText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	text, err := collectText(d)
	if err != nil {
		return err
	}
	f.Text = text
	return nil
}

// collectText consumes tokens up to the end of the current element and
// returns the concatenated character data of it and its descendants.
func collectText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String(), nil
}
