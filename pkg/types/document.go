// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine pipeline:
// literature documents and evidence sets, conversation turns, degradable stage
// outcomes, and per-component configuration.
package types

import "strings"

// Placeholder values substituted when PubMed omits a field. They are shown to
// the model and to the caller verbatim.
const (
	PlaceholderAbstract = "Abstract não disponível"
	PlaceholderAuthors  = "Autores não disponíveis"
	PlaceholderJournal  = "Journal não disponível"
	PlaceholderDate     = "Data não disponível"
	PlaceholderTitle    = "Título não disponível"
)

// Supplementary index names carried in Document.Origin.
const (
	OriginSemanticScholar = "semantic_scholar"
	OriginEuropePMC       = "europe_pmc"
)

// Document is one literature record combining bibliographic metadata with the
// abstract body. ID is the PubMed identifier and the join key between the
// metadata and abstract batches.
type Document struct {
	// ID is the PMID (e.g. "31452104").
	ID string `json:"pmid" yaml:"pmid"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Authors is the comma-joined author list.
	Authors string `json:"authors" yaml:"authors"`

	// Journal is the full journal name, or its abbreviation when the full
	// name is unavailable.
	Journal string `json:"journal" yaml:"journal"`

	// PubDate is the free-form publication date as PubMed reports it
	// (e.g. "2019 Aug 27"). It is never parsed.
	PubDate string `json:"pubdate" yaml:"pubdate"`

	// DOI is the electronic location id, often "doi: 10.xxxx/...".
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL links to the PubMed landing page.
	URL string `json:"url" yaml:"url"`

	// Abstract is the plain-text abstract, possibly multi-line with section labels.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Origin names the index a supplementary document came from
	// (e.g. "semantic_scholar"). Empty means PubMed.
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Abstract is the per-record output of the abstract fetch stage.
type Abstract struct {
	ID    string `json:"pmid" yaml:"pmid"`
	Title string `json:"title" yaml:"title"`
	Text  string `json:"abstract" yaml:"abstract"`
}

// Source is the citation surfaced to callers for one document.
type Source struct {
	Title   string `json:"title" yaml:"title"`
	Authors string `json:"authors" yaml:"authors"`
	Journal string `json:"journal" yaml:"journal"`
	Year    string `json:"year" yaml:"year"`
	PMID    string `json:"pmid" yaml:"pmid"`
	URL     string `json:"url" yaml:"url"`
	Origin  string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// EvidenceSet is the ordered collection of documents assembled for one query.
// Order is the relevance order returned by the search index and determines
// citation numbering.
type EvidenceSet []Document

// IDs returns the document identifiers in order.
func (e EvidenceSet) IDs() []string {
	ids := make([]string, len(e))
	for i, d := range e {
		ids[i] = d.ID
	}
	return ids
}

// Sources projects the set to the citation list returned to callers.
func (e EvidenceSet) Sources() []Source {
	sources := make([]Source, 0, len(e))
	for _, d := range e {
		sources = append(sources, Source{
			Title:   d.Title,
			Authors: d.Authors,
			Journal: d.Journal,
			Year:    d.PubDate,
			PMID:    d.ID,
			URL:     d.URL,
			Origin:  d.Origin,
		})
	}
	return sources
}

// PubMedURL returns the landing page for a PMID.
func PubMedURL(id string) string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + strings.TrimSpace(id) + "/"
}
