// Package citation extracts structured statute and regulation references
// from FPPC opinion queries and maintains the inverted citation index used
// by the fusion strategies.
//
// Statute numbers are Government Code sections (Political Reform Act
// 81000-91014 plus Section 1090-1097); regulations are Title 2, Division 6
// regulations in the 18000-18999 range.
package citation

import (
	"regexp"
	"strings"
)

// Reference is one parsed statute or regulation citation.
// Raw is the exact matched text (e.g. "87103(a)"), Base is the numeric-only
// form ("87103"), Subsection is the trailing qualifier ("(a)" or ".2") or
// empty. Invariant: Raw == Base + Subsection.
type Reference struct {
	Raw        string
	Base       string
	Subsection string
}

// ParsedQuery holds the citations extracted from one query, in order of
// first occurrence and unique by Raw within each list.
type ParsedQuery struct {
	GovCode     []Reference
	Regulations []Reference
}

// HasCitations reports whether any reference was extracted.
func (p ParsedQuery) HasCitations() bool {
	return len(p.GovCode) > 0 || len(p.Regulations) > 0
}

// Prefixed statute: "Section 87103(a)", "Government Code 1090", "Gov. Code 87100"
var rePrefixedStatute = regexp.MustCompile(
	`(?i)(?:Section|Gov(?:ernment)?\.?\s*Code)\s+(\d{3,5})(\([a-zA-Z0-9]\))?`)

// Prefixed regulation: "Regulation 18702.2", "Reg. 18703", "FPPC Reg 18700"
var rePrefixedReg = regexp.MustCompile(
	`(?i)(?:Reg(?:ulation)?\.?)\s+(\d{4,5}(?:\.\d+)?)`)

// Bare statute, known FPPC ranges only to avoid false positives:
// 81000-91014 (Political Reform Act), 1090-1097 (Section 1090).
// The word boundary anchors the number itself; the subsection sits
// outside it so "87103(a)" never also matches as a bare "87103".
var reBareStatute = regexp.MustCompile(
	`\b(8[1-9]\d{3}|90\d{3}|91014|109[0-7])\b(\(([a-zA-Z0-9])\))?`)

// Bare regulation, 18000-18999 range (Title 2, Division 6 regulations).
var reBareReg = regexp.MustCompile(`\b(18\d{3}(?:\.\d+)?)\b`)

// Parse extracts statute and regulation references from a query string.
// Prefixed forms are matched before bare numeric forms so a reference
// already captured is never re-added; deduplication is by Raw within each
// output list. Unmatched text yields empty lists, never an error.
func Parse(query string) ParsedQuery {
	var parsed ParsedQuery
	seenGC := make(map[string]bool)
	seenReg := make(map[string]bool)

	for _, m := range rePrefixedStatute.FindAllStringSubmatch(query, -1) {
		base := m[1]
		sub := m[2]
		raw := base + sub
		if !seenGC[raw] {
			seenGC[raw] = true
			parsed.GovCode = append(parsed.GovCode, Reference{Raw: raw, Base: base, Subsection: sub})
		}
	}

	for _, m := range rePrefixedReg.FindAllStringSubmatch(query, -1) {
		ref := splitRegulation(m[1])
		if !seenReg[ref.Raw] {
			seenReg[ref.Raw] = true
			parsed.Regulations = append(parsed.Regulations, ref)
		}
	}

	for _, m := range reBareStatute.FindAllStringSubmatch(query, -1) {
		base := m[1]
		sub := m[2]
		raw := base + sub
		if !seenGC[raw] {
			seenGC[raw] = true
			parsed.GovCode = append(parsed.GovCode, Reference{Raw: raw, Base: base, Subsection: sub})
		}
	}

	for _, m := range reBareReg.FindAllStringSubmatch(query, -1) {
		ref := splitRegulation(m[1])
		if !seenReg[ref.Raw] {
			seenReg[ref.Raw] = true
			parsed.Regulations = append(parsed.Regulations, ref)
		}
	}

	return parsed
}

// splitRegulation separates a regulation number like "18702.2" into its
// base ("18702") and decimal suffix (".2").
func splitRegulation(full string) Reference {
	base, suffix, found := strings.Cut(full, ".")
	sub := ""
	if found {
		sub = "." + suffix
	}
	return Reference{Raw: full, Base: base, Subsection: sub}
}
