// Package normalize turns raw inventory names into the canonical token
// sequence the matcher probes the corpus with.
package normalize

import (
	"strings"
)

// DefaultStopwords are function words that never identify a product on their own.
var DefaultStopwords = []string{
	"for", "and", "the", "of", "to", "in", "with", "by", "us", "en", "a", "an",
}

// maxShortLen is the longest token kept apart as a short token.
const maxShortLen = 2

// unknownPublisher is the lowercased inventory default for a missing publisher.
const unknownPublisher = "unknown"

// TokenSet is the classified token sequence of a normalized name.
type TokenSet struct {
	Standard []string
	Short    []string
}

// Normalized is a software name and publisher ready for candidate generation.
type Normalized struct {
	Name      string
	Publisher string
	Tokens    TokenSet
}

// Normalizer classifies tokens against a fixed stopword list.
type Normalizer struct {
	stopwords map[string]struct{}
}

// New creates a Normalizer using DefaultStopwords plus any extra words.
func New(extra ...string) *Normalizer {
	stop := make(map[string]struct{}, len(DefaultStopwords)+len(extra))
	for _, w := range DefaultStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			stop[w] = struct{}{}
		}
	}
	return &Normalizer{stopwords: stop}
}

// Normalize lowercases, trims and tokenizes name. ok is false when the name is
// blank, in which case the record contributes no match.
func (n *Normalizer) Normalize(name, publisher string) (Normalized, bool) {
	normName := strings.ToLower(strings.TrimSpace(name))
	if normName == "" {
		return Normalized{}, false
	}

	normPublisher := strings.ToLower(strings.TrimSpace(publisher))
	if normPublisher == unknownPublisher {
		normPublisher = ""
	}

	return Normalized{
		Name:      normName,
		Publisher: normPublisher,
		Tokens:    n.Tokenize(normName),
	}, true
}

// Tokenize splits an already normalized name on whitespace and classifies each token.
func (n *Normalizer) Tokenize(normName string) TokenSet {
	var ts TokenSet
	for _, tok := range strings.Fields(normName) {
		if n.IsStopword(tok) {
			continue
		}
		if len(tok) <= maxShortLen {
			ts.Short = append(ts.Short, tok)
		} else {
			ts.Standard = append(ts.Standard, tok)
		}
	}
	return ts
}

// IsStopword reports whether tok is in the stopword list.
func (n *Normalizer) IsStopword(tok string) bool {
	_, ok := n.stopwords[tok]
	return ok
}
