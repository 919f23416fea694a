package matching

import (
	"errors"
	"fmt"
	"math"
)

// Weights controls how much each signal contributes to the combined
// confidence. The three weights must sum to 1.
type Weights struct {
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Text   float64 `json:"text"`
}

// Policy is the tunable knobs of the matching engine. Amount carries the
// highest weight by default: two transactions with identical amounts are far
// more likely to be the same than two with similar descriptions.
type Policy struct {
	// DateWindowDays is the maximum calendar distance between a statement
	// line and a ledger entry for the pair to be considered at all.
	DateWindowDays int `json:"date_window_days"`
	// AmountTolerancePercent allows near-amounts. Zero means amounts must be
	// exactly equal to score.
	AmountTolerancePercent float64 `json:"amount_tolerance_percent"`
	// MinConfidence is the proposal threshold.
	MinConfidence float64 `json:"min_confidence"`
	Weights       Weights `json:"weights"`
}

func DefaultPolicy() Policy {
	return Policy{
		DateWindowDays:         3,
		AmountTolerancePercent: 0,
		MinConfidence:          0.8,
		Weights:                Weights{Amount: 0.6, Date: 0.3, Text: 0.1},
	}
}

// StrictPolicy requires exact amounts and same-day dates.
func StrictPolicy() Policy {
	return Policy{
		DateWindowDays:         0,
		AmountTolerancePercent: 0,
		MinConfidence:          0.9,
		Weights:                Weights{Amount: 0.7, Date: 0.2, Text: 0.1},
	}
}

// RelaxedPolicy widens the window and tolerates small amount drift, for
// accounts with slow-clearing transactions.
func RelaxedPolicy() Policy {
	return Policy{
		DateWindowDays:         7,
		AmountTolerancePercent: 1,
		MinConfidence:          0.7,
		Weights:                Weights{Amount: 0.5, Date: 0.3, Text: 0.2},
	}
}

func (p Policy) Validate() error {
	if p.DateWindowDays < 0 {
		return errors.New("date window must not be negative")
	}
	if p.AmountTolerancePercent < 0 {
		return errors.New("amount tolerance must not be negative")
	}
	if p.MinConfidence <= 0 || p.MinConfidence > 1 {
		return errors.New("min confidence must be in (0, 1]")
	}
	for name, w := range map[string]float64{
		"amount": p.Weights.Amount,
		"date":   p.Weights.Date,
		"text":   p.Weights.Text,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s weight must be in [0, 1]", name)
		}
	}
	sum := p.Weights.Amount + p.Weights.Date + p.Weights.Text
	if math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("weights must sum to 1, got %.4f", sum)
	}
	return nil
}
