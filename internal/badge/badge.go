package badge

import (
	"time"

	"github.com/dukerupert/tandem/internal/model"
)

const (
	SlugSurveyTaken       = "survey_taken"
	SlugFirstStep         = "first_step"
	SlugTenActions        = "ten_actions"
	SlugFiftyActions      = "fifty_actions"
	SlugWeekStreak        = "week_streak"
	SlugChallengeFinisher = "challenge_finisher"
	SlugHolidaySpirit     = "holiday_spirit"
)

// Stats is everything the rules look at.
type Stats struct {
	Completions         int
	SeasonalCompletions int
	Streak              int
	SurveyCompleted     bool
	ChallengesFinished  int
}

type rule struct {
	slug string
	ok   func(Stats) bool
}

var rules = []rule{
	{SlugSurveyTaken, func(s Stats) bool { return s.SurveyCompleted }},
	{SlugFirstStep, func(s Stats) bool { return s.Completions >= 1 }},
	{SlugTenActions, func(s Stats) bool { return s.Completions >= 10 }},
	{SlugFiftyActions, func(s Stats) bool { return s.Completions >= 50 }},
	{SlugWeekStreak, func(s Stats) bool { return s.Streak >= 7 }},
	{SlugChallengeFinisher, func(s Stats) bool { return s.ChallengesFinished >= 1 }},
	{SlugHolidaySpirit, func(s Stats) bool { return s.SeasonalCompletions >= 1 }},
}

// Evaluate returns the slug of every badge whose rule is satisfied, in rule order.
func Evaluate(s Stats) []string {
	out := []string{}
	for _, r := range rules {
		if r.ok(s) {
			out = append(out, r.slug)
		}
	}
	return out
}

// Streak counts consecutive completion days ending today, or yesterday when
// nothing has been done yet today. days may be in any order and contain
// duplicates.
func Streak(days []time.Time, today time.Time) int {
	done := make(map[string]bool, len(days))
	for _, d := range days {
		done[d.Format(model.DateLayout)] = true
	}

	cur := startOfDay(today)
	if !done[cur.Format(model.DateLayout)] {
		cur = cur.AddDate(0, 0, -1)
	}
	n := 0
	for done[cur.Format(model.DateLayout)] {
		n++
		cur = cur.AddDate(0, 0, -1)
	}
	return n
}

// NewlyEarned filters satisfied slugs down to those not yet held.
func NewlyEarned(satisfied []string, held map[string]bool) []string {
	var out []string
	for _, slug := range satisfied {
		if !held[slug] {
			out = append(out, slug)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
