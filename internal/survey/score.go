package survey

import (
	"math"

	"github.com/dukerupert/tandem/internal/model"
)

const (
	// LastBaselineQuestion is the highest question id counted towards baseline health.
	LastBaselineQuestion = 18

	firstGoalQuestion = 14
	lastGoalQuestion  = 29

	baselineCap     = 90
	neutralScore    = 50
	scaleMultiplier = 20
)

// Answers maps a question id to its normalized response value.
type Answers map[int]int

// Score computes the survey summary for a complete answer set. It reads no
// clock and keeps no state, so equal inputs produce equal summaries.
func Score(questions []model.SurveyQuestion, answers Answers) model.SurveySummary {
	return model.SurveySummary{
		BaselineHealth: baselineHealth(questions, answers),
		CategoryScores: categoryScores(questions, answers),
		Goals:          goals(questions, answers),
	}
}

// Skip returns the neutral summary written when a user skips the survey.
func Skip() model.SurveySummary {
	scores := make(map[model.Category]float64, len(model.Categories))
	for _, c := range model.Categories {
		scores[c] = neutralScore
	}
	return model.SurveySummary{
		BaselineHealth: neutralScore,
		CategoryScores: scores,
		Goals:          map[model.Category]model.Goal{},
		Skipped:        true,
	}
}

func baselineHealth(questions []model.SurveyQuestion, answers Answers) int {
	var yes, total int
	for _, q := range questions {
		if q.ID > LastBaselineQuestion {
			continue
		}
		total++
		if q.ResponseType == model.ResponseYesNo && answers[q.ID] == 1 {
			yes++
		}
	}
	if total == 0 {
		return neutralScore
	}
	pct := float64(yes) / float64(total) * 100
	return int(math.Round(math.Min(baselineCap, pct)))
}

type bucket struct {
	total float64
	count int
}

func categoryScores(questions []model.SurveyQuestion, answers Answers) map[model.Category]float64 {
	buckets := make(map[model.Category]*bucket, len(model.Categories))
	for _, c := range model.Categories {
		buckets[c] = &bucket{}
	}

	for _, q := range questions {
		value, ok := answers[q.ID]
		if !ok {
			continue
		}
		b, ok := buckets[q.Category]
		if !ok {
			continue
		}
		b.total += stretch(q.ResponseType, value)
		b.count++
	}

	scores := make(map[model.Category]float64, len(buckets))
	for c, b := range buckets {
		if b.count == 0 {
			scores[c] = neutralScore
			continue
		}
		scores[c] = round2(b.total / float64(b.count) * scaleMultiplier)
	}
	return scores
}

// stretch maps a yes/no answer onto the 1-5 scale used by scale questions.
func stretch(rt model.ResponseType, value int) float64 {
	if rt == model.ResponseYesNo {
		if value == 1 {
			return 5
		}
		return 1
	}
	return float64(value)
}

func goals(questions []model.SurveyQuestion, answers Answers) map[model.Category]model.Goal {
	out := make(map[model.Category]model.Goal)
	for _, q := range questions {
		if q.ID < firstGoalQuestion || q.ID > lastGoalQuestion {
			continue
		}
		value, ok := answers[q.ID]
		if !ok {
			continue
		}
		g := out[q.Category]
		if q.ID%2 == 0 {
			rating := value
			g.SelfRating = &rating
		} else {
			wants := value == 1
			g.WantsImprovement = &wants
		}
		out[q.Category] = g
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
