package candidate

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/daimoniac/swaudit/internal/normalize"
)

func generate(t *testing.T, name string) Set {
	t.Helper()
	n, ok := normalize.New().Normalize(name, "")
	if !ok {
		t.Fatalf("normalize(%q) rejected", name)
	}
	return Generate(n)
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single token collapses into full name",
			input: "Chrome",
			want:  []string{"chrome"},
		},
		{
			name:  "windows over first four standard tokens",
			input: "Microsoft Visual Studio Code Insiders",
			want: []string{
				"microsoft visual studio code insiders",
				"microsoft",
				"microsoft visual",
				"visual studio",
				"studio code",
				"microsoft visual studio",
				"visual studio code",
			},
		},
		{
			name:  "short token combinations both orders",
			input: "R Studio Desktop",
			want: []string{
				"r studio desktop",
				"studio",
				"r",
				"studio desktop",
				"r studio",
				"studio r",
				"studio desktop r",
			},
		},
		{
			name:  "only short tokens",
			input: "Qt 5",
			want:  []string{"qt 5", "qt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generate(t, tt.input).Texts()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Generate(%q)\n got  %q\n want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCombos(t *testing.T) {
	set := generate(t, "Microsoft Visual Studio Code")

	three := set.ThreeWord()
	if _, ok := three["microsoft visual studio"]; !ok {
		t.Errorf("expected 3-word window, got %v", three)
	}
	two := set.TwoWord()
	if len(two) != 3 {
		t.Errorf("expected 3 two-word windows, got %v", two)
	}

	full := generate(t, "Google Chrome")
	if len(full.TwoWord()) != 0 {
		t.Errorf("full name must not be reported as a 2-word combination: %v", full.TwoWord())
	}
}

func TestPattern(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		match   []string
		noMatch []string
	}{
		{
			text:    "open",
			want:    `\bopen\b`,
			match:   []string{"open", "Open Office", "x:open:1"},
			noMatch: []string{"reopened", "opener"},
		},
		{
			text:  "open source",
			want:  `\bopen[\s_]source\b`,
			match: []string{"open_source", "Open Source Edition"},
		},
		{
			text:    "c++",
			want:    `\bc\+\+`,
			match:   []string{"visual c++ 2015", "c++"},
			noMatch: []string{"abc++"},
		},
		{
			text:  "redistributable (x64)",
			want:  `\bredistributable[\s_]\(x64\)`,
			match: []string{"c++ redistributable (x64)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Pattern(tt.text)
			if got != tt.want {
				t.Fatalf("Pattern(%q) = %q, want %q", tt.text, got, tt.want)
			}
			re := regexp.MustCompile("(?i)" + got)
			for _, s := range tt.match {
				if !re.MatchString(s) {
					t.Errorf("%s should match %q", got, s)
				}
			}
			for _, s := range tt.noMatch {
				if re.MatchString(s) {
					t.Errorf("%s should not match %q", got, s)
				}
			}
		})
	}
}

func TestEscapingKeepsStructure(t *testing.T) {
	meta := generate(t, "C++ Redistributable (x64)")
	plain := generate(t, "Cpp Redistributable x64")

	shape := func(s Set) []Candidate {
		out := make([]Candidate, len(s.Candidates))
		for i, c := range s.Candidates {
			out[i] = Candidate{Words: c.Words, Kind: c.Kind}
		}
		return out
	}

	if !reflect.DeepEqual(shape(meta), shape(plain)) {
		t.Errorf("structure differs:\n meta  %+v\n plain %+v", meta.Candidates, plain.Candidates)
	}
	for _, p := range meta.Patterns() {
		if _, err := regexp.Compile(p); err != nil {
			t.Errorf("pattern %q does not compile: %v", p, err)
		}
	}
}

func TestCandidateSetProperties(t *testing.T) {
	norm := normalize.New()
	properties := gopter.NewProperties(nil)

	words := gen.SliceOf(gen.OneGenOf(
		gen.AlphaString(),
		gen.OneConstOf("c++", "(x64)", "[beta]", "v1.2", "$", "^x", "a|b", "?", "for"),
	))

	properties.Property("non-empty normalized name yields a non-empty set", prop.ForAll(
		func(parts []string) bool {
			n, ok := norm.Normalize(strings.Join(parts, " "), "")
			if !ok {
				return true
			}
			return !Generate(n).Empty()
		},
		words,
	))

	properties.Property("every pattern compiles and matches its own candidate", prop.ForAll(
		func(parts []string) bool {
			n, ok := norm.Normalize(strings.Join(parts, " "), "")
			if !ok {
				return true
			}
			set := Generate(n)
			for i, p := range set.Patterns() {
				re, err := regexp.Compile("(?i)" + p)
				if err != nil || !re.MatchString(set.Candidates[i].Text) {
					return false
				}
			}
			return true
		},
		words,
	))

	properties.Property("candidates are unique", prop.ForAll(
		func(parts []string) bool {
			n, ok := norm.Normalize(strings.Join(parts, " "), "")
			if !ok {
				return true
			}
			seen := map[string]bool{}
			for _, text := range Generate(n).Texts() {
				if seen[text] {
					return false
				}
				seen[text] = true
			}
			return true
		},
		words,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
