package matching_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/recon_backend/matching"
)

func TestPolicyValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*matching.Policy)
		wantErr bool
	}{
		{"default is valid", func(p *matching.Policy) {}, false},
		{"negative window", func(p *matching.Policy) { p.DateWindowDays = -1 }, true},
		{"negative tolerance", func(p *matching.Policy) { p.AmountTolerancePercent = -0.5 }, true},
		{"zero min confidence", func(p *matching.Policy) { p.MinConfidence = 0 }, true},
		{"min confidence above one", func(p *matching.Policy) { p.MinConfidence = 1.1 }, true},
		{"weights do not sum to one", func(p *matching.Policy) { p.Weights.Amount = 0.9 }, true},
		{"rounding slack within a thousandth", func(p *matching.Policy) { p.Weights.Amount = 0.6005 }, false},
		{"sum off by more than a thousandth", func(p *matching.Policy) { p.Weights.Amount = 0.602 }, true},
		{"negative weight", func(p *matching.Policy) {
			p.Weights = matching.Weights{Amount: 1.2, Date: -0.3, Text: 0.1}
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := matching.DefaultPolicy()
			tc.mutate(&policy)
			err := policy.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPresetPoliciesAreValid(t *testing.T) {
	for name, policy := range map[string]matching.Policy{
		"default": matching.DefaultPolicy(),
		"strict":  matching.StrictPolicy(),
		"relaxed": matching.RelaxedPolicy(),
	} {
		if err := policy.Validate(); err != nil {
			t.Fatalf("%s policy invalid: %v", name, err)
		}
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	policy := matching.DefaultPolicy()
	policy.MinConfidence = 0
	if _, err := matching.NewEngine(policy, nil); err == nil {
		t.Fatalf("expected error for invalid policy")
	}
}
