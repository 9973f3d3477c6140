package badge

import (
	"reflect"
	"testing"
	"time"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name  string
		stats Stats
		want  []string
	}{
		{"nothing", Stats{}, []string{}},
		{"survey only", Stats{SurveyCompleted: true}, []string{SlugSurveyTaken}},
		{"first completion", Stats{Completions: 1}, []string{SlugFirstStep}},
		{"ten", Stats{Completions: 10}, []string{SlugFirstStep, SlugTenActions}},
		{"fifty with streak", Stats{Completions: 50, Streak: 7}, []string{SlugFirstStep, SlugTenActions, SlugFiftyActions, SlugWeekStreak}},
		{"six day streak", Stats{Completions: 6, Streak: 6}, []string{SlugFirstStep}},
		{"challenge and holiday", Stats{Completions: 2, ChallengesFinished: 1, SeasonalCompletions: 1}, []string{SlugFirstStep, SlugChallengeFinisher, SlugHolidaySpirit}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Evaluate(c.stats)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("Evaluate = %v, want %v", got, c.want)
			}
		})
	}
}

func TestStreak(t *testing.T) {
	today := time.Date(2025, time.June, 11, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		days []time.Time
		want int
	}{
		{"empty", nil, 0},
		{"today only", []time.Time{day(time.June, 11)}, 1},
		{"yesterday keeps streak alive", []time.Time{day(time.June, 10), day(time.June, 9)}, 2},
		{"gap breaks streak", []time.Time{day(time.June, 11), day(time.June, 10), day(time.June, 8)}, 2},
		{"stale", []time.Time{day(time.June, 8)}, 0},
		{"duplicates and order", []time.Time{day(time.June, 9), day(time.June, 11), day(time.June, 10), day(time.June, 11)}, 3},
		{"across month", []time.Time{day(time.June, 1), day(time.May, 31), day(time.May, 30)}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Streak(c.days, today); got != c.want {
				t.Errorf("Streak = %d, want %d", got, c.want)
			}
		})
	}

	june2 := time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)
	if got := Streak([]time.Time{day(time.June, 1), day(time.May, 31), day(time.May, 30)}, june2); got != 3 {
		t.Errorf("streak across month = %d, want 3", got)
	}
}

func TestNewlyEarned(t *testing.T) {
	got := NewlyEarned([]string{SlugFirstStep, SlugTenActions}, map[string]bool{SlugFirstStep: true})
	if !reflect.DeepEqual(got, []string{SlugTenActions}) {
		t.Errorf("NewlyEarned = %v", got)
	}
}
