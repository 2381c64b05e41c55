package exam

import (
	"math"
	"strings"
)

// ScoreResult is the full outcome of grading one answer set.
type ScoreResult struct {
	TotalScore float64
	MaxScore   float64
	Percent    float64
	Level      string
	Tip        string
}

// ScoreAnswer grades a single free-text answer against one question: the
// full weight when any keyword appears in the normalized text, zero
// otherwise.
func ScoreAnswer(q Question, answer string) float64 {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return 0
	}
	for _, kw := range q.Keywords {
		if strings.Contains(a, strings.ToLower(kw)) {
			return q.Weight
		}
	}
	return 0
}

// Score grades a complete answer set. Pure: no I/O, no clock, identical
// inputs always produce identical results. The caller is responsible for
// checking len(answers) == len(bank) first.
func Score(bank []Question, answers []string) ScoreResult {
	var total, max float64
	for i, q := range bank {
		max += q.Weight
		if i < len(answers) {
			total += ScoreAnswer(q, answers[i])
		}
	}
	var percent float64
	if max > 0 {
		percent = math.Round(100 * total / max)
	}
	lvl := LevelFromPercent(percent)
	return ScoreResult{
		TotalScore: total,
		MaxScore:   max,
		Percent:    percent,
		Level:      lvl.Level,
		Tip:        lvl.Tip,
	}
}
