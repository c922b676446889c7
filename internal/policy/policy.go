// Package policy evaluates a CEL expression over an audit summary to decide
// whether an inventory is acceptable.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/swaudit/internal/observability"
)

// DefaultExpression passes any audit without a known exploited vulnerability.
const DefaultExpression = `exploitedCount == 0`

// PolicyEngine defines the interface for policy evaluation
type PolicyEngine interface {
	// Evaluate decides whether the audited inventory passes the policy.
	// Active tolerations remove their CVEs from every count.
	Evaluate(ctx context.Context, summary Summary, tolerations []Toleration) (*PolicyDecision, error)
}

// Config defines a CEL-based policy configuration
type Config struct {
	// Expression is the CEL expression that must evaluate to true for the policy to pass
	// Available variables:
	//   - vulnerabilities: list of maps with id, product, score, exploited, tolerated
	//   - products: matched product names, most frequent first
	//   - softwareCount: number of audited software records
	//   - matchedCount: number of records with at least one match
	//   - totalCves: distinct CVEs not tolerated
	//   - exploitedCount: distinct known-exploited CVEs not tolerated
	//   - maxScore: highest score among CVEs not tolerated
	//   - failedBatches: worker batches that could not be completed
	//   - toleratedCount: distinct tolerated CVEs
	Expression string `yaml:"expression" json:"expression"`

	// FailureMessage is the message to return when the policy fails (optional)
	FailureMessage string `yaml:"failureMessage,omitempty" json:"failureMessage,omitempty"`
}

// Toleration accepts a CVE until it expires.
type Toleration struct {
	ID        string     `yaml:"id" json:"id"`
	Statement string     `yaml:"statement" json:"statement"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// Vulnerability is one CVE found for a matched product.
type Vulnerability struct {
	ID        string
	Product   string
	Score     float64
	Exploited bool
}

// Summary is the audit outcome a policy is evaluated against.
type Summary struct {
	SoftwareCount   int
	MatchedCount    int
	FailedBatches   int
	Products        []string
	Vulnerabilities []Vulnerability
}

// PolicyDecision represents the result of policy evaluation
type PolicyDecision struct {
	Passed              bool                 `json:"passed"`
	Reason              string               `json:"reason"`
	Expression          string               `json:"expression"`
	TotalCVEs           int                  `json:"total_cves"`
	ExploitedCount      int                  `json:"exploited_count"`
	MaxScore            float64              `json:"max_score"`
	ToleratedCount      int                  `json:"tolerated_count"`
	ToleratedCVEs       []string             `json:"tolerated_cves"`
	ExpiringTolerations []ExpiringToleration `json:"expiring_tolerations,omitempty"`
}

// ExpiringToleration represents a toleration that is expiring soon
type ExpiringToleration struct {
	CVEID     string    `json:"cve_id"`
	Statement string    `json:"statement"`
	ExpiresAt time.Time `json:"expires_at"`
	DaysUntil int       `json:"days_until"`
}

// Engine implements the PolicyEngine interface using CEL expressions
type Engine struct {
	logger              *slog.Logger
	expiryWarningWindow time.Duration
	config              Config
	celProgram          cel.Program
	now                 func() time.Time
}

// NewEngine creates a new policy engine with a CEL-based policy
func NewEngine(logger *slog.Logger, config Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Expression == "" {
		config.Expression = DefaultExpression
		config.FailureMessage = "known exploited vulnerabilities found"
	}

	env, err := cel.NewEnv(
		cel.Variable("vulnerabilities", cel.ListType(cel.MapType(cel.StringType, cel.AnyType))),
		cel.Variable("products", cel.ListType(cel.StringType)),
		cel.Variable("softwareCount", cel.IntType),
		cel.Variable("matchedCount", cel.IntType),
		cel.Variable("totalCves", cel.IntType),
		cel.Variable("exploitedCount", cel.IntType),
		cel.Variable("maxScore", cel.DoubleType),
		cel.Variable("failedBatches", cel.IntType),
		cel.Variable("toleratedCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:              logger,
		expiryWarningWindow: 7 * 24 * time.Hour,
		config:              config,
		celProgram:          program,
		now:                 time.Now,
	}, nil
}

// Evaluate decides whether the summary passes the CEL policy
func (e *Engine) Evaluate(ctx context.Context, summary Summary, tolerations []Toleration) (*PolicyDecision, error) {
	decision := &PolicyDecision{
		Expression:    e.config.Expression,
		ToleratedCVEs: make([]string, 0),
	}

	active := e.activeTolerations(tolerations, decision)

	// a CVE reported for several products is counted once
	seen := make(map[string]bool)
	tolerated := make(map[string]bool)
	vulns := make([]map[string]interface{}, 0, len(summary.Vulnerabilities))
	exploitedCount, totalCves := 0, 0
	maxScore := 0.0

	for _, v := range summary.Vulnerabilities {
		_, isTolerated := active[v.ID]
		vulns = append(vulns, map[string]interface{}{
			"id":        v.ID,
			"product":   v.Product,
			"score":     v.Score,
			"exploited": v.Exploited,
			"tolerated": isTolerated,
		})

		if isTolerated {
			if !tolerated[v.ID] {
				tolerated[v.ID] = true
				decision.ToleratedCVEs = append(decision.ToleratedCVEs, v.ID)
			}
			continue
		}
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		totalCves++
		if v.Exploited {
			exploitedCount++
		}
		maxScore = max(maxScore, v.Score)
	}
	sort.Strings(decision.ToleratedCVEs)

	decision.TotalCVEs = totalCves
	decision.ExploitedCount = exploitedCount
	decision.MaxScore = maxScore
	decision.ToleratedCount = len(decision.ToleratedCVEs)

	products := summary.Products
	if products == nil {
		products = []string{}
	}

	celInput := map[string]interface{}{
		"vulnerabilities": vulns,
		"products":        products,
		"softwareCount":   summary.SoftwareCount,
		"matchedCount":    summary.MatchedCount,
		"totalCves":       totalCves,
		"exploitedCount":  exploitedCount,
		"maxScore":        maxScore,
		"failedBatches":   summary.FailedBatches,
		"toleratedCount":  decision.ToleratedCount,
	}

	out, _, err := e.celProgram.ContextEval(ctx, celInput)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("policy expression did not return a boolean: %v", out.Value())
	}
	decision.Passed = passed

	counts := fmt.Sprintf("cves=%d, exploited=%d, max_score=%.1f (tolerated=%d)",
		totalCves, exploitedCount, maxScore, decision.ToleratedCount)

	metrics := observability.GetMetrics()
	if passed {
		decision.Reason = "policy passed: " + counts
		metrics.PolicyPassed.Inc()
		e.logger.Info("policy evaluation passed",
			"software", summary.SoftwareCount,
			"cves", totalCves,
			"exploited", exploitedCount,
			"tolerated", decision.ToleratedCount)
	} else {
		decision.Reason = "policy failed: " + counts
		if e.config.FailureMessage != "" {
			decision.Reason = e.config.FailureMessage
		}
		metrics.PolicyFailed.Inc()
		e.logger.Warn("policy evaluation failed",
			"software", summary.SoftwareCount,
			"cves", totalCves,
			"exploited", exploitedCount,
			"tolerated", decision.ToleratedCount,
			"expression", e.config.Expression)
	}

	return decision, nil
}

func (e *Engine) activeTolerations(tolerations []Toleration, decision *PolicyDecision) map[string]Toleration {
	now := e.now()
	active := make(map[string]Toleration)

	for _, toleration := range tolerations {
		if toleration.ExpiresAt != nil && toleration.ExpiresAt.Before(now) {
			e.logger.Debug("toleration expired",
				"cve_id", toleration.ID,
				"expired_at", toleration.ExpiresAt)
			continue
		}

		active[toleration.ID] = toleration

		if toleration.ExpiresAt != nil {
			timeUntilExpiry := toleration.ExpiresAt.Sub(now)
			if timeUntilExpiry > 0 && timeUntilExpiry <= e.expiryWarningWindow {
				daysUntil := int(timeUntilExpiry.Hours() / 24)
				decision.ExpiringTolerations = append(decision.ExpiringTolerations, ExpiringToleration{
					CVEID:     toleration.ID,
					Statement: toleration.Statement,
					ExpiresAt: *toleration.ExpiresAt,
					DaysUntil: daysUntil,
				})

				e.logger.Warn("toleration expiring soon",
					"cve_id", toleration.ID,
					"statement", toleration.Statement,
					"expires_at", toleration.ExpiresAt,
					"days_until_expiry", daysUntil)
			}
		}
	}
	return active
}

// SetExpiryWarningWindow sets the duration before expiry to trigger warnings
func (e *Engine) SetExpiryWarningWindow(duration time.Duration) {
	e.expiryWarningWindow = duration
}
