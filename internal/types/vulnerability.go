package types

import (
	"strings"
	"time"
)

// Identifier is a structured vendor/product designation on a vulnerability record.
type Identifier struct {
	Vendor  string `json:"vendor" bson:"vendor"`
	Product string `json:"product" bson:"product"`
}

// VulnerabilityRecord is a corpus document as seen by the matcher. Published is
// left untyped because corpus loaders have stored it as native dates, ISO strings
// and {"$date": ...} wrappers over time.
type VulnerabilityRecord struct {
	ID          string       `json:"cve_id" bson:"cve_id"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Identifiers []Identifier `json:"identifiers,omitempty" bson:"identifiers,omitempty"`
	CPEs        []string     `json:"cpes,omitempty" bson:"cpes,omitempty"`
	Score       float64      `json:"score" bson:"score"`
	Exploited   bool         `json:"exploited" bson:"exploited"`
	Published   any          `json:"published,omitempty" bson:"published,omitempty"`
}

// flat identifier layout: cpe:2.3:part:vendor:product:version:...
const (
	flatVendorField  = 3
	flatProductField = 4
)

// ParseFlatIdentifier decomposes a colon-delimited platform identifier into its
// vendor and product fields. Strings too short to carry both fields are rejected.
func ParseFlatIdentifier(flat string) (Identifier, bool) {
	parts := strings.Split(flat, ":")
	if len(parts) <= flatProductField {
		return Identifier{}, false
	}
	return Identifier{
		Vendor:  parts[flatVendorField],
		Product: parts[flatProductField],
	}, true
}

// AllIdentifiers returns the structured identifiers followed by every decodable flat one.
func (r VulnerabilityRecord) AllIdentifiers() []Identifier {
	ids := make([]Identifier, 0, len(r.Identifiers)+len(r.CPEs))
	ids = append(ids, r.Identifiers...)
	for _, flat := range r.CPEs {
		if id, ok := ParseFlatIdentifier(flat); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// VulnerabilityDetail is the report projection of a vulnerability record.
type VulnerabilityDetail struct {
	ID          string  `json:"cve_id"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
	Exploited   bool    `json:"exploited"`
	Published   string  `json:"published"` // YYYY-MM-DD, empty when unknown
}

// EntityDetailResult groups the most recent vulnerabilities of one resolved entity.
type EntityDetailResult struct {
	Type            string                `json:"type"`
	Name            string                `json:"name"`
	Vulnerabilities []VulnerabilityDetail `json:"vulnerabilities"`
}

// RankedMatch is one matched vendor or product value with its best priority.
type RankedMatch struct {
	Value    string `json:"value"`
	Priority int    `json:"priority"`
}

// MatchCacheEntry is the persisted outcome of matching one normalized software name.
type MatchCacheEntry struct {
	NormalizedName     string    `json:"normalized_name" bson:"normalized_name"`
	OriginalName       string    `json:"original_name" bson:"original_name"`
	MatchedVendors     []string  `json:"matched_vendors" bson:"matched_vendors"`
	MatchedProducts    []string  `json:"matched_products" bson:"matched_products"`
	VulnerabilityCount int       `json:"vulnerability_count" bson:"vulnerability_count"`
	LastUpdated        time.Time `json:"last_updated" bson:"last_updated"`
}

// Values returns the matched values in rank order.
func Values(matches []RankedMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Value
	}
	return out
}
