package hygiene

import (
	"github.com/steveyegge/elab/internal/types"
)

// Score bounds for severity x likelihood
const (
	MinScore = 1
	MaxScore = 25
)

// CalculateGapScore returns severity x likelihood clamped to [1, 25]
func CalculateGapScore(severity, likelihood int) int {
	score := severity * likelihood
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// CategorizeGap maps a score onto a category using the configured thresholds.
// For fixed thresholds the result never becomes less strict as score grows.
func CategorizeGap(score int, cfg Config) types.GapCategory {
	switch {
	case score >= cfg.BlockingThreshold:
		return types.CategoryMVPBlocking
	case score >= cfg.ImportantThreshold:
		return types.CategoryMVPImportant
	case score >= cfg.FutureThreshold:
		return types.CategoryFuture
	default:
		return types.CategoryDeferred
	}
}
