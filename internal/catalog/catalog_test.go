package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/darkforest/internal/models"
)

func TestDefault(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cat.Version != 1 {
		t.Errorf("Version = %d, want 1", cat.Version)
	}
	if len(cat.Contexts) != 4 {
		t.Errorf("len(Contexts) = %d, want 4", len(cat.Contexts))
	}
	if len(cat.Choices) != 3 {
		t.Errorf("len(Choices) = %d, want 3", len(cat.Choices))
	}
	if len(cat.Criticisms.Logical) != 4 || len(cat.Criticisms.Empirical) != 4 || len(cat.Criticisms.Ethical) != 4 {
		t.Errorf("criticisms = %+v, want 4 of each", cat.Criticisms)
	}
}

func TestScenarioCount(t *testing.T) {
	cat := MustDefault()
	for _, ctx := range models.Contexts {
		t.Run(string(ctx), func(t *testing.T) {
			n, err := cat.ScenarioCount(ctx)
			if err != nil {
				t.Fatalf("ScenarioCount(%s) error = %v", ctx, err)
			}
			if n != 4 {
				t.Errorf("ScenarioCount(%s) = %d, want 4", ctx, n)
			}
		})
	}

	_, err := cat.ScenarioCount("mars")
	var ice *models.InvalidContextError
	if !errors.As(err, &ice) {
		t.Errorf("ScenarioCount(mars) error = %v, want InvalidContextError", err)
	}
}

func TestScenario(t *testing.T) {
	cat := MustDefault()

	tests := []struct {
		ctx       models.Context
		index     int
		wantTitle string
	}{
		{models.ContextBusiness, 0, "STEALTH COMPETITOR INTELLIGENCE"},
		{models.ContextBusiness, 3, "INFORMATION WARFARE"},
		{models.ContextPhilosophy, 1, "UTILITARIAN CALCULUS AT SCALE"},
		{models.ContextScience, 2, "PEER REVIEW UNDER PRESSURE"},
		{models.ContextPolicy, 3, "INTERNATIONAL LAW EVOLUTION"},
	}
	for _, tt := range tests {
		t.Run(tt.wantTitle, func(t *testing.T) {
			sc, err := cat.Scenario(tt.ctx, tt.index)
			if err != nil {
				t.Fatalf("Scenario() error = %v", err)
			}
			if sc.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", sc.Title, tt.wantTitle)
			}
			if sc.Cosmic == "" || sc.RealWorld == "" || len(sc.Examples) != 3 {
				t.Errorf("scenario payload incomplete: %+v", sc)
			}
		})
	}

	if _, err := cat.Scenario(models.ContextBusiness, 4); err == nil {
		t.Error("Scenario(business, 4) should fail")
	}
	if _, err := cat.Scenario(models.ContextBusiness, -1); err == nil {
		t.Error("Scenario(business, -1) should fail")
	}
}

func TestChoice(t *testing.T) {
	cat := MustDefault()

	tests := []struct {
		id    models.Choice
		label string
		risk  string
	}{
		{models.ChoiceCommunicate, "COMMUNICATE", "High"},
		{models.ChoiceSilence, "MAINTAIN SILENCE", "Medium"},
		{models.ChoiceEscalate, "PREEMPTIVE STRIKE", "Extreme"},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			info, err := cat.Choice(tt.id)
			if err != nil {
				t.Fatalf("Choice() error = %v", err)
			}
			if info.Label != tt.label || info.Risk != tt.risk {
				t.Errorf("got (%q, %q), want (%q, %q)", info.Label, info.Risk, tt.label, tt.risk)
			}
			if info.Consequence.Outcome == "" || len(info.Alternatives) != 3 {
				t.Errorf("choice payload incomplete: %+v", info)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"malformed yaml", "contexts: [", "parsing catalog"},
		{"missing contexts", "version: 1\n", "missing context"},
		{"unknown context", "contexts:\n  - id: mars\n    scenarios:\n      - title: x\n", "invalid context"},
		{"empty scenarios", "contexts:\n  - id: business\n", "has no scenarios"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}
