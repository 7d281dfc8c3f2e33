// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// NoEvidence is the context block used when no document was found.
const NoEvidence = "Nenhum estudo científico recente encontrado para esta consulta."

// stanzaDelimiter terminates each document stanza.
const stanzaDelimiter = "---"

// RenderContext formats the set as numbered stanzas for the model prompt.
// Fields appear in a fixed order: title, authors, journal, date, PMID, link,
// abstract. Supplementary documents carry a source line and a plain ID line
// in place of the PMID. An empty set renders as NoEvidence.
func RenderContext(set types.EvidenceSet) string {
	if len(set) == 0 {
		return NoEvidence
	}
	stanzas := make([]string, len(set))
	for i, d := range set {
		var b strings.Builder
		fmt.Fprintf(&b, "ESTUDO %d:\n", i+1)
		fmt.Fprintf(&b, "Título: %s\n", d.Title)
		fmt.Fprintf(&b, "Autores: %s\n", d.Authors)
		fmt.Fprintf(&b, "Revista: %s\n", d.Journal)
		fmt.Fprintf(&b, "Ano: %s\n", d.PubDate)
		if d.Origin == "" {
			fmt.Fprintf(&b, "PMID: %s\n", d.ID)
		} else {
			fmt.Fprintf(&b, "Fonte: %s\n", OriginLabel(d.Origin))
			fmt.Fprintf(&b, "ID: %s\n", d.ID)
		}
		fmt.Fprintf(&b, "Link: %s\n", d.URL)
		fmt.Fprintf(&b, "\nAbstract:\n%s\n", d.Abstract)
		b.WriteString(stanzaDelimiter)
		stanzas[i] = b.String()
	}
	return strings.Join(stanzas, "\n\n")
}

// OriginLabel returns the display name of a document origin.
func OriginLabel(origin string) string {
	switch origin {
	case "":
		return "PubMed"
	case types.OriginSemanticScholar:
		return "Semantic Scholar"
	case types.OriginEuropePMC:
		return "Europe PMC"
	default:
		return origin
	}
}

// FormatTable writes the set as a human-readable table to w.
func FormatTable(set types.EvidenceSet, w io.Writer) {
	if len(set) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-10s  %-56s  %-22s  %s\n", "Rank", "PMID", "Title", "Journal", "Date")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, d := range set {
		fmt.Fprintf(w, "%-4d  %-10s  %-56s  %-22s  %s\n",
			i+1, d.ID, truncate(d.Title, 56), truncate(d.Journal, 22), d.PubDate)
	}
	fmt.Fprintf(w, "\n%d results\n", len(set))
}

// FormatJSON writes the set as indented JSON to w.
func FormatJSON(set types.EvidenceSet, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

// FormatYAML writes the set as YAML to w.
func FormatYAML(set types.EvidenceSet, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(set); err != nil {
		return err
	}
	return enc.Close()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
