package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/recon_backend/llm"
)

func TestSessionPolicyDefaults(t *testing.T) {
	t.Setenv("MATCHING_MIN_CONFIDENCE", "")
	t.Setenv("MATCHING_DATE_WINDOW_DAYS", "")
	t.Setenv("MATCHING_AMOUNT_TOLERANCE_PERCENT", "")

	policy := SessionPolicy()
	if policy.MinConfidence != 0.8 {
		t.Fatalf("MinConfidence = %v", policy.MinConfidence)
	}
	if policy.DateWindowDays != 3 {
		t.Fatalf("DateWindowDays = %v", policy.DateWindowDays)
	}
	if policy.AmountTolerancePercent != 0 {
		t.Fatalf("AmountTolerancePercent = %v", policy.AmountTolerancePercent)
	}
	if err := policy.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestSessionPolicyEnvOverrides(t *testing.T) {
	t.Setenv("MATCHING_MIN_CONFIDENCE", "0.9")
	t.Setenv("MATCHING_DATE_WINDOW_DAYS", "7")
	t.Setenv("MATCHING_AMOUNT_TOLERANCE_PERCENT", "1.5")

	policy := SessionPolicy()
	if policy.MinConfidence != 0.9 {
		t.Fatalf("MinConfidence = %v", policy.MinConfidence)
	}
	if policy.DateWindowDays != 7 {
		t.Fatalf("DateWindowDays = %v", policy.DateWindowDays)
	}
	if policy.AmountTolerancePercent != 1.5 {
		t.Fatalf("AmountTolerancePercent = %v", policy.AmountTolerancePercent)
	}
	if err := policy.Validate(); err != nil {
		t.Fatalf("overridden policy invalid: %v", err)
	}
}

type stubJudge struct {
	similarity float64
	err        error
	calls      int
}

func (j *stubJudge) Similarity(_ context.Context, _ llm.SimilarityRequest) (llm.SimilarityResponse, error) {
	j.calls++
	if j.err != nil {
		return llm.SimilarityResponse{}, j.err
	}
	return llm.SimilarityResponse{Similarity: j.similarity}, nil
}

func TestAiTextScorerUsesJudge(t *testing.T) {
	judge := &stubJudge{similarity: 0.93}
	scorer := aiTextScorer{ctx: context.Background(), judge: judge}

	got := scorer.Score("ACME SUPPLIES", "ACME SUPPLY CO")
	if got != 0.93 {
		t.Fatalf("Score = %v", got)
	}
	if judge.calls != 1 {
		t.Fatalf("judge called %d times", judge.calls)
	}
}

func TestAiTextScorerFallsBackOnJudgeError(t *testing.T) {
	judge := &stubJudge{err: errors.New("model unavailable")}
	scorer := aiTextScorer{ctx: context.Background(), judge: judge}

	if got := scorer.Score("STRIPE PAYOUT", "STRIPE PAYOUT"); got != 1 {
		t.Fatalf("identical strings scored %v after fallback", got)
	}
	if got := scorer.Score("", "anything"); got != 0 {
		t.Fatalf("empty string scored %v after fallback", got)
	}
}
