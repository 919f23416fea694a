// Package matching scores statement lines against ledger entries and
// proposes one-to-one matches. It is pure: no database, no clock, no
// network. Callers feed it candidates and persist the proposals.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// Transaction is the engine's view of either side of the matching problem.
type Transaction struct {
	ID          int
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Proposal is one scored pair above the policy threshold. The per-signal
// breakdown is retained so a reviewer can see why the pair was proposed.
type Proposal struct {
	LineId      int
	EntryId     int
	Confidence  float64
	AmountScore float64
	DateScore   float64
	TextScore   float64
}

// TextScorer scores description similarity in [0, 1]. The default uses edit
// distance; an AI-backed scorer can be substituted as a tie-breaker signal.
type TextScorer interface {
	Score(a, b string) float64
}

// LevenshteinScorer is the default TextScorer: normalized edit distance over
// uppercased descriptions.
type LevenshteinScorer struct{}

func (LevenshteinScorer) Score(a, b string) float64 {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// Engine proposes matches under a policy. Zero value is not usable; use
// NewEngine.
type Engine struct {
	policy Policy
	text   TextScorer
}

func NewEngine(policy Policy, text TextScorer) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if text == nil {
		text = LevenshteinScorer{}
	}
	return &Engine{policy: policy, text: text}, nil
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Propose scores every line against every entry, keeps pairs at or above the
// confidence threshold, and greedily assigns them one-to-one in descending
// confidence order. Output is deterministic for a given input: ties are
// broken by smaller date distance, then line id, then entry id.
func (e *Engine) Propose(lines []Transaction, entries []Transaction) []Proposal {
	type candidate struct {
		Proposal
		dateDistance int
	}

	candidates := make([]candidate, 0)
	for _, line := range lines {
		for _, entry := range entries {
			days := daysApart(line.Date, entry.Date)
			if days > e.policy.DateWindowDays {
				continue
			}

			amountScore := e.amountScore(line.Amount, entry.Amount)
			dateScore := e.dateScore(days)
			textScore := e.text.Score(line.Description, entry.Description)

			confidence := e.policy.Weights.Amount*amountScore +
				e.policy.Weights.Date*dateScore +
				e.policy.Weights.Text*textScore
			if confidence < e.policy.MinConfidence {
				continue
			}

			candidates = append(candidates, candidate{
				Proposal: Proposal{
					LineId:      line.ID,
					EntryId:     entry.ID,
					Confidence:  confidence,
					AmountScore: amountScore,
					DateScore:   dateScore,
					TextScore:   textScore,
				},
				dateDistance: days,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.dateDistance != b.dateDistance {
			return a.dateDistance < b.dateDistance
		}
		if a.LineId != b.LineId {
			return a.LineId < b.LineId
		}
		return a.EntryId < b.EntryId
	})

	usedLines := make(map[int]bool, len(lines))
	usedEntries := make(map[int]bool, len(entries))
	proposals := make([]Proposal, 0, len(candidates))
	for _, c := range candidates {
		if usedLines[c.LineId] || usedEntries[c.EntryId] {
			continue
		}
		usedLines[c.LineId] = true
		usedEntries[c.EntryId] = true
		proposals = append(proposals, c.Proposal)
	}
	return proposals
}

func (e *Engine) amountScore(a, b decimal.Decimal) float64 {
	if a.Equal(b) {
		return 1
	}
	if e.policy.AmountTolerancePercent <= 0 {
		return 0
	}

	larger := a.Abs()
	if b.Abs().GreaterThan(larger) {
		larger = b.Abs()
	}
	if larger.IsZero() {
		return 0
	}
	diffPercent, _ := a.Sub(b).Abs().Div(larger).Mul(decimal.NewFromInt(100)).Float64()
	if diffPercent > e.policy.AmountTolerancePercent {
		return 0
	}
	// linear decay within the tolerance band
	return 1 - diffPercent/e.policy.AmountTolerancePercent
}

func (e *Engine) dateScore(days int) float64 {
	if e.policy.DateWindowDays == 0 {
		if days == 0 {
			return 1
		}
		return 0
	}
	score := 1 - float64(days)/float64(e.policy.DateWindowDays+1)
	if score < 0 {
		return 0
	}
	return score
}

func daysApart(a, b time.Time) int {
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := aDay.Sub(bDay)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
