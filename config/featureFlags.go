package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load()
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// AiJudgeEnabled gates the text-similarity tie-breaker that calls out to the
// language model. When off the engine falls back to edit-distance scoring.
func AiJudgeEnabled() bool {
	return boolFromEnv("AI_JUDGE_ENABLED", false)
}

// MatchingMinConfidence overrides the default proposal threshold.
func MatchingMinConfidence() float64 {
	return floatFromEnv("MATCHING_MIN_CONFIDENCE", 0.8)
}

// MatchingDateWindowDays overrides the default date proximity window.
func MatchingDateWindowDays() int {
	return intFromEnv("MATCHING_DATE_WINDOW_DAYS", 3)
}

// MatchingAmountTolerancePercent overrides near-amount tolerance. Zero means
// exact amounts only.
func MatchingAmountTolerancePercent() float64 {
	return floatFromEnv("MATCHING_AMOUNT_TOLERANCE_PERCENT", 0)
}

// ReconciliationChecksEnabled gates the background consistency sweeps.
func ReconciliationChecksEnabled() bool {
	return boolFromEnv("RECONCILIATION_CHECKS_ENABLED", true)
}
