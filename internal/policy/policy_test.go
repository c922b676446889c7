package policy

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func newEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	engine, err := NewEngine(slog.Default(), config)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func chromeSummary() Summary {
	return Summary{
		SoftwareCount: 3,
		MatchedCount:  2,
		Products:      []string{"chrome", "firefox"},
		Vulnerabilities: []Vulnerability{
			{ID: "CVE-2024-0001", Product: "chrome", Score: 8.8, Exploited: true},
			{ID: "CVE-2024-0002", Product: "chrome", Score: 5.4},
			{ID: "CVE-2024-0001", Product: "firefox", Score: 8.8, Exploited: true},
			{ID: "CVE-2024-0003", Product: "firefox", Score: 9.1},
		},
	}
}

func TestEngine_Evaluate_DefaultPolicy(t *testing.T) {
	engine := newEngine(t, Config{})
	ctx := context.Background()

	decision, err := engine.Evaluate(ctx, chromeSummary(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Passed {
		t.Error("expected default policy to fail with an exploited CVE")
	}
	if decision.ExploitedCount != 1 {
		t.Errorf("expected exploited CVE counted once, got %d", decision.ExploitedCount)
	}
	if decision.TotalCVEs != 3 {
		t.Errorf("expected 3 distinct CVEs, got %d", decision.TotalCVEs)
	}
	if decision.MaxScore != 9.1 {
		t.Errorf("expected max score 9.1, got %v", decision.MaxScore)
	}
	if decision.Reason != "known exploited vulnerabilities found" {
		t.Errorf("unexpected reason %q", decision.Reason)
	}
	if decision.Expression != DefaultExpression {
		t.Errorf("unexpected expression %q", decision.Expression)
	}

	clean, err := engine.Evaluate(ctx, Summary{SoftwareCount: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clean.Passed {
		t.Errorf("expected empty summary to pass: %s", clean.Reason)
	}
}

func TestEngine_Evaluate_CustomExpressions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{name: "max score", expression: `maxScore < 9.0`, want: false},
		{name: "total", expression: `totalCves <= 3`, want: true},
		{name: "product list", expression: `!("firefox" in products)`, want: false},
		{name: "vulnerability macro", expression: `vulnerabilities.exists(v, v.product == "chrome" && v.score > 8.0)`, want: true},
		{name: "coverage", expression: `matchedCount * 2 >= softwareCount && failedBatches == 0`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newEngine(t, Config{Expression: tt.expression})
			decision, err := engine.Evaluate(context.Background(), chromeSummary(), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if decision.Passed != tt.want {
				t.Errorf("Passed = %v, want %v (%s)", decision.Passed, tt.want, decision.Reason)
			}
		})
	}
}

func TestNewEngine_InvalidExpressions(t *testing.T) {
	for _, expr := range []string{`exploitedCount +`, `totalCves + 1`, `unknownVar == 1`} {
		if _, err := NewEngine(slog.Default(), Config{Expression: expr}); err == nil {
			t.Errorf("expected error for expression %q", expr)
		}
	}
}

func TestEngine_Evaluate_ActiveToleration(t *testing.T) {
	engine := newEngine(t, Config{})
	future := time.Now().Add(30 * 24 * time.Hour)

	decision, err := engine.Evaluate(context.Background(), chromeSummary(), []Toleration{
		{ID: "CVE-2024-0001", Statement: "mitigated by browser policy", ExpiresAt: &future},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Passed {
		t.Errorf("expected tolerated exploited CVE to pass: %s", decision.Reason)
	}
	if !reflect.DeepEqual(decision.ToleratedCVEs, []string{"CVE-2024-0001"}) {
		t.Errorf("unexpected tolerated CVEs %v", decision.ToleratedCVEs)
	}
	if decision.TotalCVEs != 2 || decision.ToleratedCount != 1 {
		t.Errorf("total = %d, tolerated = %d", decision.TotalCVEs, decision.ToleratedCount)
	}
	if len(decision.ExpiringTolerations) != 0 {
		t.Errorf("30 day toleration must not warn, got %v", decision.ExpiringTolerations)
	}
}

func TestEngine_Evaluate_ExpiredToleration(t *testing.T) {
	engine := newEngine(t, Config{})
	past := time.Now().Add(-time.Hour)

	decision, err := engine.Evaluate(context.Background(), chromeSummary(), []Toleration{
		{ID: "CVE-2024-0001", Statement: "expired", ExpiresAt: &past},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Passed {
		t.Error("expired toleration must not apply")
	}
	if decision.ToleratedCount != 0 {
		t.Errorf("expected no tolerated CVEs, got %d", decision.ToleratedCount)
	}
}

func TestEngine_Evaluate_ExpiringTolerationWarning(t *testing.T) {
	engine := newEngine(t, Config{})
	soon := time.Now().Add(3*24*time.Hour + time.Hour)

	decision, err := engine.Evaluate(context.Background(), chromeSummary(), []Toleration{
		{ID: "CVE-2024-0001", Statement: "patch scheduled", ExpiresAt: &soon},
		{ID: "CVE-2024-0003", Statement: "permanent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decision.ExpiringTolerations) != 1 {
		t.Fatalf("expected 1 expiring toleration, got %d", len(decision.ExpiringTolerations))
	}
	exp := decision.ExpiringTolerations[0]
	if exp.CVEID != "CVE-2024-0001" || exp.DaysUntil != 3 {
		t.Errorf("unexpected expiring toleration %+v", exp)
	}
}

func TestEngine_SetExpiryWarningWindow(t *testing.T) {
	engine := newEngine(t, Config{})
	engine.SetExpiryWarningWindow(time.Hour)
	soon := time.Now().Add(2 * time.Hour)

	decision, err := engine.Evaluate(context.Background(), chromeSummary(), []Toleration{
		{ID: "CVE-2024-0001", ExpiresAt: &soon},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decision.ExpiringTolerations) != 0 {
		t.Errorf("expected no warning outside the window, got %v", decision.ExpiringTolerations)
	}
}
