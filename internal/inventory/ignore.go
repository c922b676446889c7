package inventory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"

	"github.com/daimoniac/swaudit/internal/types"
)

// IgnoreRule excludes software from audits by name and, optionally, version.
type IgnoreRule struct {
	// Name matches case-insensitively; a trailing * matches any suffix.
	Name string `yaml:"name"`
	// Versions is a semver constraint such as "< 2.0" or ">= 1.2, < 1.4".
	// Empty matches every version.
	Versions string `yaml:"versions,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
}

type compiledRule struct {
	rule       IgnoreRule
	name       string
	prefix     bool
	constraint *semver.Constraints
}

// Filter drops records matched by any ignore rule
type Filter struct {
	rules  []compiledRule
	logger *slog.Logger
}

// NewFilter compiles the rules, failing on an invalid version constraint.
func NewFilter(rules []IgnoreRule, logger *slog.Logger) (*Filter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Filter{logger: logger}
	for _, r := range rules {
		name := strings.ToLower(strings.TrimSpace(r.Name))
		if name == "" {
			return nil, fmt.Errorf("ignore rule without a name")
		}
		c := compiledRule{rule: r, name: name}
		if strings.HasSuffix(name, "*") {
			c.name, c.prefix = strings.TrimSuffix(name, "*"), true
		}
		if r.Versions != "" {
			constraint, err := semver.NewConstraint(r.Versions)
			if err != nil {
				return nil, fmt.Errorf("invalid version constraint %q for %s: %w", r.Versions, r.Name, err)
			}
			c.constraint = constraint
		}
		f.rules = append(f.rules, c)
	}
	return f, nil
}

// Apply returns the records no rule matches, preserving order.
func (f *Filter) Apply(records []types.SoftwareRecord) []types.SoftwareRecord {
	if f == nil || len(f.rules) == 0 {
		return records
	}
	return lo.Reject(records, func(rec types.SoftwareRecord, _ int) bool {
		rule, ok := f.match(rec)
		if ok {
			f.logger.Debug("software ignored",
				"name", rec.Name,
				"version", rec.Version,
				"rule", rule.Name,
				"reason", rule.Reason)
		}
		return ok
	})
}

func (f *Filter) match(rec types.SoftwareRecord) (IgnoreRule, bool) {
	name := strings.ToLower(strings.TrimSpace(rec.Name))
	for _, c := range f.rules {
		if c.prefix && !strings.HasPrefix(name, c.name) || !c.prefix && name != c.name {
			continue
		}
		if c.constraint == nil {
			return c.rule, true
		}
		// versions that are not semver never satisfy a constraint
		v, err := semver.NewVersion(rec.Version)
		if err != nil {
			continue
		}
		if c.constraint.Check(v) {
			return c.rule, true
		}
	}
	return IgnoreRule{}, false
}
