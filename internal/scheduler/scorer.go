package scheduler

import (
	"fmt"
	"math"
)

// referenceTimeMs anchors the speed bonus: finishing instantly earns the
// full 0.2, finishing at the reference earns nothing.
const referenceTimeMs = 60000

// scoreResults applies consensus scoring to settled results. Without
// consensus every result passes through with score and confidence 1.
func scoreResults(results []AgentResult, requireConsensus bool) []ScoredResult {
	scored := make([]ScoredResult, len(results))

	if !requireConsensus {
		for i, r := range results {
			scored[i] = ScoredResult{
				AgentResult: r,
				Score:       1,
				Confidence:  1,
				Reasoning:   "consensus scoring disabled",
			}
		}
		return scored
	}

	mean, successCount := meanSuccessfulTime(results)

	for i, r := range results {
		s := ScoredResult{AgentResult: r}
		s.Score = scoreOne(r)
		s.Confidence = confidenceOne(r, mean, successCount)
		s.Reasoning = reasoningFor(s)
		scored[i] = s
	}
	return scored
}

// scoreOne is the deterministic per-result score:
// 0.5 for success, 0.2 for non-empty output, up to 0.2 for speed against
// the reference time, 0.1 for artifacts, clamped to [0,1]. Failed agents
// score 0.
func scoreOne(r AgentResult) float64 {
	if !r.Success {
		return 0
	}

	score := 0.5
	if r.Output != "" {
		score += 0.2
	}
	score += math.Min(0.2, float64(referenceTimeMs-r.ExecutionTimeMs)/referenceTimeMs*0.2)
	if len(r.Artifacts) > 0 {
		score += 0.1
	}

	return math.Max(0, math.Min(1, score))
}

// confidenceOne measures how close a successful agent's execution time sits
// to the successful mean. A single successful agent is fully confident.
func confidenceOne(r AgentResult, mean float64, successCount int) float64 {
	if !r.Success {
		return 0
	}
	if successCount <= 1 {
		return 1
	}
	if mean == 0 {
		return 1
	}
	deviation := math.Abs(float64(r.ExecutionTimeMs)-mean) / mean
	return math.Max(0, 1-deviation)
}

func meanSuccessfulTime(results []AgentResult) (float64, int) {
	var sum int64
	count := 0
	for _, r := range results {
		if r.Success {
			sum += r.ExecutionTimeMs
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return float64(sum) / float64(count), count
}

// reasoningFor assembles the templated reasoning sentence from score,
// confidence, and time buckets.
func reasoningFor(s ScoredResult) string {
	if !s.Success {
		return fmt.Sprintf("failed after %dms: %s", s.ExecutionTimeMs, s.Error)
	}

	quality := "weak"
	switch {
	case s.Score >= 0.8:
		quality = "strong"
	case s.Score >= 0.5:
		quality = "adequate"
	}

	speed := "slowly"
	switch {
	case s.ExecutionTimeMs < 5000:
		speed = "quickly"
	case s.ExecutionTimeMs < 30000:
		speed = "at moderate pace"
	}

	agreement := "low"
	switch {
	case s.Confidence >= 0.8:
		agreement = "high"
	case s.Confidence >= 0.5:
		agreement = "moderate"
	}

	return fmt.Sprintf("%s result (score %.2f): completed %s in %dms with %s agreement across agents",
		quality, s.Score, speed, s.ExecutionTimeMs, agreement)
}
