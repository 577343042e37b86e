// Package scoring implements the two-stage profitability scoring engine.
//
// Every component score is a tiered step function rather than a continuous
// curve: provider inputs are noisy estimates, and discrete bands are more
// robust to jitter. Tiers live in ordered (threshold, points) tables
// evaluated by a single lookup, so the thirteen components across both
// stages stay uniformly testable.
package scoring

// Tier awards Points when a value meets Threshold.
type Tier struct {
	Threshold float64
	Points    int
}

// scoreAtLeast returns the points of the first tier whose threshold the
// value meets or exceeds. Tiers must be ordered by descending threshold.
// Used for higher-is-better inputs (return on cost, velocity).
func scoreAtLeast(tiers []Tier, value float64) int {
	for _, t := range tiers {
		if value >= t.Threshold {
			return t.Points
		}
	}
	return 0
}

// scoreAtMost returns the points of the first tier whose threshold the
// value does not exceed. Tiers must be ordered by ascending threshold.
// Used for lower-is-better inputs (sales rank, rank percentile).
func scoreAtMost(tiers []Tier, value float64) int {
	for _, t := range tiers {
		if value <= t.Threshold {
			return t.Points
		}
	}
	return 0
}

// clampScore bounds a total score to the 0-100 scale.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// maxScore is the upper bound of both stage scores.
const maxScore = 100
