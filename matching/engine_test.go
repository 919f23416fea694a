package matching_test

import (
	"math"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/matching"
	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2026, 3, 10+d, 0, 0, 0, 0, time.UTC)
}

func txn(id int, d int, amount string, description string) matching.Transaction {
	return matching.Transaction{
		ID:          id,
		Date:        day(d),
		Amount:      decimal.RequireFromString(amount),
		Description: description,
	}
}

func newDefaultEngine(t *testing.T) *matching.Engine {
	t.Helper()
	engine, err := matching.NewEngine(matching.DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestLevenshteinScorer(t *testing.T) {
	var s matching.LevenshteinScorer

	if got := s.Score("ACME SUPPLIES", "acme supplies"); got != 1 {
		t.Fatalf("case-insensitive identical score = %v, want 1", got)
	}
	if got := s.Score("", ""); got != 0 {
		t.Fatalf("empty score = %v, want 0", got)
	}
	if got := s.Score("AAAA", "ZZZZ"); got != 0 {
		t.Fatalf("disjoint score = %v, want 0", got)
	}
	got := s.Score("ACME SUPPLIES", "ACME SUPPLY CO")
	if got <= 0.5 || got >= 1 {
		t.Fatalf("similar vendor score = %v, want in (0.5, 1)", got)
	}
}

// Two transactions with the same amount, one day apart, with vendor-style
// description variants must clear the default proposal threshold.
func TestPropose_SimilarVendorNamesWithinOneDay(t *testing.T) {
	engine := newDefaultEngine(t)

	lines := []matching.Transaction{txn(1, 0, "250.00", "ACME SUPPLIES")}
	entries := []matching.Transaction{txn(7, 1, "250.00", "ACME SUPPLY CO")}

	proposals := engine.Propose(lines, entries)
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	p := proposals[0]
	if p.LineId != 1 || p.EntryId != 7 {
		t.Fatalf("unexpected pair: line=%d entry=%d", p.LineId, p.EntryId)
	}
	if p.Confidence < 0.8 {
		t.Fatalf("confidence = %v, want >= 0.8", p.Confidence)
	}
	approx(t, "amount score", p.AmountScore, 1)
	approx(t, "date score", p.DateScore, 0.75)
	if p.TextScore <= 0.5 {
		t.Fatalf("text score = %v, want > 0.5", p.TextScore)
	}
}

func TestPropose_IdenticalPairScoresFull(t *testing.T) {
	engine := newDefaultEngine(t)

	proposals := engine.Propose(
		[]matching.Transaction{txn(1, 0, "99.95", "MONTHLY RENT")},
		[]matching.Transaction{txn(2, 0, "99.95", "MONTHLY RENT")},
	)
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	approx(t, "confidence", proposals[0].Confidence, 1)
}

func TestPropose_RejectsOutsideDateWindow(t *testing.T) {
	engine := newDefaultEngine(t)

	proposals := engine.Propose(
		[]matching.Transaction{txn(1, 0, "42.00", "COFFEE")},
		[]matching.Transaction{txn(2, 4, "42.00", "COFFEE")},
	)
	if len(proposals) != 0 {
		t.Fatalf("expected no proposals beyond the date window, got %d", len(proposals))
	}
}

func TestPropose_AmountMismatchStaysBelowThreshold(t *testing.T) {
	engine := newDefaultEngine(t)

	// identical date and description cannot rescue a wrong amount under the
	// default weights (0.3 + 0.1 < 0.8)
	proposals := engine.Propose(
		[]matching.Transaction{txn(1, 0, "100.00", "UTILITIES")},
		[]matching.Transaction{txn(2, 0, "90.00", "UTILITIES")},
	)
	if len(proposals) != 0 {
		t.Fatalf("expected no proposals for mismatched amounts, got %d", len(proposals))
	}
}

func TestPropose_AmountToleranceLinearDecay(t *testing.T) {
	engine, err := matching.NewEngine(matching.RelaxedPolicy(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// 100 vs 100.5 is 0.4975% apart, inside the 1% band
	proposals := engine.Propose(
		[]matching.Transaction{txn(1, 0, "100.00", "INSURANCE PREMIUM")},
		[]matching.Transaction{txn(2, 0, "100.50", "INSURANCE PREMIUM")},
	)
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	p := proposals[0]
	if p.AmountScore <= 0 || p.AmountScore >= 1 {
		t.Fatalf("amount score = %v, want inside (0, 1)", p.AmountScore)
	}
	// decay is linear: 1 - diffPercent/tolerance
	approx(t, "amount score", p.AmountScore, 1-(0.5/100.5*100))
}

func TestPropose_GreedyOneToOne(t *testing.T) {
	engine := newDefaultEngine(t)

	lines := []matching.Transaction{
		txn(1, 0, "500.00", "PAYROLL"),
		txn(2, 1, "500.00", "PAYROLL"),
	}
	entries := []matching.Transaction{txn(9, 0, "500.00", "PAYROLL")}

	proposals := engine.Propose(lines, entries)
	if len(proposals) != 1 {
		t.Fatalf("expected a single one-to-one assignment, got %d", len(proposals))
	}
	// the same-day pair scores higher and must win the entry
	if proposals[0].LineId != 1 {
		t.Fatalf("entry assigned to line %d, want line 1", proposals[0].LineId)
	}
}

func TestPropose_DeterministicTieBreak(t *testing.T) {
	engine := newDefaultEngine(t)

	lines := []matching.Transaction{
		txn(1, 0, "75.00", "SUBSCRIPTION"),
		txn(2, 0, "75.00", "SUBSCRIPTION"),
	}
	entries := []matching.Transaction{
		txn(11, 0, "75.00", "SUBSCRIPTION"),
		txn(10, 0, "75.00", "SUBSCRIPTION"),
	}

	for run := 0; run < 50; run++ {
		proposals := engine.Propose(lines, entries)
		if len(proposals) != 2 {
			t.Fatalf("run=%d expected 2 proposals, got %d", run, len(proposals))
		}
		// equal confidence ties resolve by line id, then entry id
		if proposals[0].LineId != 1 || proposals[0].EntryId != 10 {
			t.Fatalf("run=%d first proposal is line=%d entry=%d, want line=1 entry=10",
				run, proposals[0].LineId, proposals[0].EntryId)
		}
		if proposals[1].LineId != 2 || proposals[1].EntryId != 11 {
			t.Fatalf("run=%d second proposal is line=%d entry=%d, want line=2 entry=11",
				run, proposals[1].LineId, proposals[1].EntryId)
		}
	}
}

func TestPropose_StrictPolicyRequiresSameDay(t *testing.T) {
	engine, err := matching.NewEngine(matching.StrictPolicy(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	proposals := engine.Propose(
		[]matching.Transaction{txn(1, 0, "10.00", "PARKING")},
		[]matching.Transaction{txn(2, 1, "10.00", "PARKING")},
	)
	if len(proposals) != 0 {
		t.Fatalf("strict policy accepted a one-day-apart pair")
	}

	proposals = engine.Propose(
		[]matching.Transaction{txn(1, 0, "10.00", "PARKING")},
		[]matching.Transaction{txn(2, 0, "10.00", "PARKING")},
	)
	if len(proposals) != 1 {
		t.Fatalf("strict policy rejected a same-day exact pair")
	}
}

type fixedScorer struct{ score float64 }

func (s fixedScorer) Score(a, b string) float64 { return s.score }

// The text signal is a tie-breaker: even a scorer that claims every pair is
// a perfect textual match cannot push a wrong-amount pair over the default
// threshold.
func TestPropose_TextSignalCannotOverrideAmount(t *testing.T) {
	engine, err := matching.NewEngine(matching.DefaultPolicy(), fixedScorer{score: 1})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	proposals := engine.Propose(
		[]matching.Transaction{txn(1, 0, "100.00", "anything")},
		[]matching.Transaction{txn(2, 0, "55.00", "whatever")},
	)
	if len(proposals) != 0 {
		t.Fatalf("text-only evidence produced a proposal")
	}
}
