// Package llm provides an optional AI judge for description similarity. It
// is a tie-breaker signal only: the matching engine never relies on it as
// the sole evidence for a pair.
package llm

import (
	"context"
	"errors"
)

// ErrorNoAPIKey is returned when the judge is constructed without
// credentials. Callers fall back to edit-distance scoring.
var ErrorNoAPIKey = errors.New("llm: api key not configured")

// SimilarityRequest carries the two descriptions plus the context the judge
// may use to reason about them.
type SimilarityRequest struct {
	StatementDescription string
	LedgerDescription    string
	DateDifferenceDays   int
	Amount               string
}

type SimilarityResponse struct {
	Similarity float64 `json:"similarity"`
	Reasoning  string  `json:"reasoning"`
}

// Judge scores whether two transaction descriptions refer to the same
// real-world transaction, in [0, 1].
type Judge interface {
	Similarity(ctx context.Context, req SimilarityRequest) (SimilarityResponse, error)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
