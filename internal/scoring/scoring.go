// Package scoring ranks the vendor and product identifiers of matched
// vulnerability records by how specifically they match a software name.
package scoring

import (
	"sort"
	"strings"

	"github.com/daimoniac/swaudit/internal/candidate"
	"github.com/daimoniac/swaudit/internal/normalize"
	"github.com/daimoniac/swaudit/internal/types"
)

// DefaultLimit is the number of ranked values kept per list.
const DefaultLimit = 3

// Priority tiers, lower is better. Token tiers are offsets added to the token index.
// PriorityPublisher shares its value with PriorityThreeWord, so a vendor qualifying
// under both ties and the first value encountered ranks ahead.
const (
	PriorityFullName  = 1
	PriorityPublisher = 2
	PriorityThreeWord = 2
	PriorityTwoWord   = 3
	PriorityToken     = 4
)

// minSubstringLen is the shortest value a publisher substring match accepts.
const minSubstringLen = 3

var sentinels = map[string]struct{}{
	"":    {},
	"-":   {},
	"*":   {},
	"n/a": {},
	"na":  {},
}

// Result is the ranked outcome for one software record.
type Result struct {
	Vendors            []types.RankedMatch
	Products           []types.RankedMatch
	VulnerabilityCount int
	HasValidMatch      bool
}

// Score ranks every vendor and product found on records against the normalized
// name and its candidates, keeping at most limit values per list.
func Score(n normalize.Normalized, c candidate.Set, records []types.VulnerabilityRecord, limit int) Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	t := newTiers(n, c)
	vendors := newRanking()
	products := newRanking()
	count := 0

	for _, rec := range records {
		contributed := false
		for _, id := range rec.AllIdentifiers() {
			if value, key, ok := identifierKey(id.Vendor); ok {
				if p, ok := t.vendor(key); ok {
					vendors.offer(value, p)
					contributed = true
				}
			}
			if value, key, ok := identifierKey(id.Product); ok {
				if p, ok := t.product(key); ok {
					products.offer(value, p)
					contributed = true
				}
			}
		}
		if contributed {
			count++
		}
	}

	res := Result{
		Vendors:            vendors.top(limit),
		Products:           products.top(limit),
		VulnerabilityCount: count,
	}
	res.HasValidMatch = len(res.Vendors) > 0 || len(res.Products) > 0
	return res
}

// identifierKey returns the stored form of an identifier value and the key it is
// compared by. Identifiers spell spaces as underscores.
func identifierKey(raw string) (value, key string, ok bool) {
	value = strings.ToLower(strings.TrimSpace(raw))
	if _, skip := sentinels[value]; skip {
		return "", "", false
	}
	key = strings.Join(strings.Fields(strings.ReplaceAll(value, "_", " ")), " ")
	if key == "" {
		return "", "", false
	}
	return value, key, true
}

type tiers struct {
	fullName  string
	publisher string
	three     map[string]struct{}
	two       map[string]struct{}
	standard  map[string]int
	short     map[string]int
}

// Short tokens rank after every standard token.
func newTiers(n normalize.Normalized, c candidate.Set) *tiers {
	return &tiers{
		fullName:  strings.Join(strings.Fields(n.Name), " "),
		publisher: strings.Join(strings.Fields(n.Publisher), " "),
		three:     c.ThreeWord(),
		two:       c.TwoWord(),
		standard:  firstIndex(n.Tokens.Standard, 0),
		short:     firstIndex(n.Tokens.Short, len(n.Tokens.Standard)),
	}
}

func firstIndex(tokens []string, offset int) map[string]int {
	out := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, ok := out[tok]; !ok {
			out[tok] = offset + i
		}
	}
	return out
}

func (t *tiers) product(key string) (int, bool) {
	if key == t.fullName {
		return PriorityFullName, true
	}
	return t.combos(key)
}

func (t *tiers) vendor(key string) (int, bool) {
	if key == t.fullName {
		return PriorityFullName, true
	}
	if t.publisherMatch(key) {
		return PriorityPublisher, true
	}
	return t.combos(key)
}

// publisherMatch accepts an exact publisher, or a substring in either direction
// when the contained side is at least minSubstringLen long.
func (t *tiers) publisherMatch(key string) bool {
	if t.publisher == "" {
		return false
	}
	if key == t.publisher {
		return true
	}
	if len(key) >= minSubstringLen && strings.Contains(t.publisher, key) {
		return true
	}
	return len(t.publisher) >= minSubstringLen && strings.Contains(key, t.publisher)
}

func (t *tiers) combos(key string) (int, bool) {
	if _, ok := t.three[key]; ok {
		return PriorityThreeWord, true
	}
	if _, ok := t.two[key]; ok {
		return PriorityTwoWord, true
	}
	if i, ok := t.standard[key]; ok {
		return PriorityToken + i, true
	}
	if i, ok := t.short[key]; ok {
		return PriorityToken + i, true
	}
	return 0, false
}

// ranking keeps the best priority seen per value and the order values first appeared.
type ranking struct {
	best  map[string]int
	order []string
}

func newRanking() *ranking {
	return &ranking{best: make(map[string]int)}
}

func (r *ranking) offer(value string, priority int) {
	prev, seen := r.best[value]
	if !seen {
		r.order = append(r.order, value)
		r.best[value] = priority
		return
	}
	if priority < prev {
		r.best[value] = priority
	}
}

func (r *ranking) top(limit int) []types.RankedMatch {
	out := make([]types.RankedMatch, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, types.RankedMatch{Value: v, Priority: r.best[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
