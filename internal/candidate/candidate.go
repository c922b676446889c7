// Package candidate builds the literal probe strings a software name is
// matched against in the vulnerability corpus.
package candidate

import (
	"regexp"
	"strings"

	"github.com/daimoniac/swaudit/internal/normalize"
)

// Kind records which generation rule produced a candidate.
type Kind int

const (
	KindFullName Kind = iota
	KindFirstStandard
	KindFirstShort
	KindWindow
	KindShortCombo
)

func (k Kind) String() string {
	switch k {
	case KindFullName:
		return "full_name"
	case KindFirstStandard:
		return "first_standard"
	case KindFirstShort:
		return "first_short"
	case KindWindow:
		return "window"
	case KindShortCombo:
		return "short_combo"
	default:
		return "unknown"
	}
}

// windowTokens is how many leading standard tokens feed the 2- and 3-word windows.
const windowTokens = 4

// Candidate is one literal probe string.
type Candidate struct {
	Text  string
	Words int
	Kind  Kind
}

// Set is the ordered, duplicate-free candidate list of one software name.
type Set struct {
	Candidates []Candidate
}

// Generate builds the candidate set for a normalized name: the full name, the
// first standard and short tokens, contiguous 2- and 3-word windows over the
// first four standard tokens, then short tokens combined with the first one or
// two standard tokens.
func Generate(n normalize.Normalized) Set {
	b := &builder{seen: make(map[string]struct{})}

	b.add(n.Name, KindFullName)

	std, short := n.Tokens.Standard, n.Tokens.Short
	if len(std) > 0 {
		b.add(std[0], KindFirstStandard)
	}
	if len(short) > 0 {
		b.add(short[0], KindFirstShort)
	}

	head := std
	if len(head) > windowTokens {
		head = head[:windowTokens]
	}
	for size := 2; size <= 3; size++ {
		for i := 0; i+size <= len(head); i++ {
			b.add(strings.Join(head[i:i+size], " "), KindWindow)
		}
	}

	if len(std) > 0 {
		for _, s := range short {
			b.add(s+" "+std[0], KindShortCombo)
			b.add(std[0]+" "+s, KindShortCombo)
			if len(std) > 1 {
				b.add(s+" "+std[0]+" "+std[1], KindShortCombo)
				b.add(std[0]+" "+std[1]+" "+s, KindShortCombo)
			}
		}
	}

	return Set{Candidates: b.out}
}

type builder struct {
	seen map[string]struct{}
	out  []Candidate
}

func (b *builder) add(text string, kind Kind) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}
	text = strings.Join(words, " ")
	if _, dup := b.seen[text]; dup {
		return
	}
	b.seen[text] = struct{}{}
	b.out = append(b.out, Candidate{Text: text, Words: len(words), Kind: kind})
}

// Empty reports whether the set has no candidates.
func (s Set) Empty() bool {
	return len(s.Candidates) == 0
}

// Texts returns the candidate strings in generation order.
func (s Set) Texts() []string {
	out := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Text
	}
	return out
}

// ThreeWord returns the 3-word combinations, excluding the full name.
func (s Set) ThreeWord() map[string]struct{} {
	return s.combos(3)
}

// TwoWord returns the 2-word combinations, excluding the full name.
func (s Set) TwoWord() map[string]struct{} {
	return s.combos(2)
}

func (s Set) combos(words int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range s.Candidates {
		if c.Kind != KindFullName && c.Words == words {
			out[c.Text] = struct{}{}
		}
	}
	return out
}

// Patterns returns one regular expression per candidate matching it as a whole
// word. Words are quoted literally and may be separated by whitespace or an
// underscore, since identifiers spell spaces as underscores.
func (s Set) Patterns() []string {
	out := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = Pattern(c.Text)
	}
	return out
}

// Pattern builds the whole-word expression for one candidate text.
func Pattern(text string) string {
	words := strings.Fields(text)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	if len(quoted) == 0 {
		return ""
	}
	body := strings.Join(quoted, `[\s_]`)
	text = strings.Join(words, " ")
	// \b only holds next to a word character; "(x64)" must still match at its parens.
	if isWordByte(text[0]) {
		body = `\b` + body
	}
	if isWordByte(text[len(text)-1]) {
		body += `\b`
	}
	return body
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
