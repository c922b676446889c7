package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNormalize(t *testing.T) {
	n := New()

	tests := []struct {
		name          string
		input         string
		publisher     string
		wantOK        bool
		wantName      string
		wantPublisher string
		wantStandard  []string
		wantShort     []string
	}{
		{
			name:          "two standard tokens",
			input:         "  Google Chrome ",
			publisher:     "Google LLC",
			wantOK:        true,
			wantName:      "google chrome",
			wantPublisher: "google llc",
			wantStandard:  []string{"google", "chrome"},
		},
		{
			name:         "stopwords removed, short kept",
			input:        "Microsoft Visual C++ 2015 Redistributable for the x64 R",
			wantOK:       true,
			wantName:     "microsoft visual c++ 2015 redistributable for the x64 r",
			wantStandard: []string{"microsoft", "visual", "c++", "2015", "redistributable", "x64"},
			wantShort:    []string{"r"},
		},
		{
			name:         "short stopwords dropped",
			input:        "7-Zip en US",
			wantOK:       true,
			wantName:     "7-zip en us",
			wantStandard: []string{"7-zip"},
		},
		{
			name:          "unknown publisher cleared",
			input:         "Git",
			publisher:     "Unknown",
			wantOK:        true,
			wantName:      "git",
			wantPublisher: "",
			wantStandard:  []string{"git"},
		},
		{
			name:   "blank name skipped",
			input:  "   ",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Normalize(tt.input, tt.publisher)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Publisher != tt.wantPublisher {
				t.Errorf("Publisher = %q, want %q", got.Publisher, tt.wantPublisher)
			}
			if !reflect.DeepEqual(got.Tokens.Standard, tt.wantStandard) {
				t.Errorf("Standard = %v, want %v", got.Tokens.Standard, tt.wantStandard)
			}
			if !reflect.DeepEqual(got.Tokens.Short, tt.wantShort) {
				t.Errorf("Short = %v, want %v", got.Tokens.Short, tt.wantShort)
			}
		})
	}
}

func TestExtraStopwords(t *testing.T) {
	n := New("Edition", " ")
	got, _ := n.Normalize("Office Home Edition", "")
	if !reflect.DeepEqual(got.Tokens.Standard, []string{"office", "home"}) {
		t.Errorf("Standard = %v", got.Tokens.Standard)
	}
}

func TestNormalizeIdempotenceProperty(t *testing.T) {
	n := New()
	properties := gopter.NewProperties(nil)

	words := gen.SliceOf(gen.OneGenOf(
		gen.AlphaString(),
		gen.OneConstOf("for", "the", "x", "QT", "C++", "(x64)", "v2.1"),
	))

	properties.Property("normalizing a normalized name yields the same token set", prop.ForAll(
		func(parts []string) bool {
			raw := strings.Join(parts, "  ")
			first, ok := n.Normalize(raw, "")
			if !ok {
				return strings.TrimSpace(raw) == ""
			}
			second, ok := n.Normalize(first.Name, "")
			return ok && second.Name == first.Name && reflect.DeepEqual(second.Tokens, first.Tokens)
		},
		words,
	))

	properties.Property("short tokens are at most two characters and never stopwords", prop.ForAll(
		func(parts []string) bool {
			got, _ := n.Normalize(strings.Join(parts, " "), "")
			for _, tok := range got.Tokens.Short {
				if len(tok) > maxShortLen || n.IsStopword(tok) {
					return false
				}
			}
			return true
		},
		words,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
