package action

import (
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/tandem/internal/holiday"
	"github.com/dukerupert/tandem/internal/model"
)

// Source names the pool a pick was drawn from.
type Source string

const (
	SourceSeasonal Source = "seasonal"
	SourceHoliday  Source = "holiday"
	SourceRegular  Source = "regular"
)

// RecentDays is how far back a completion keeps an action out of rotation.
const RecentDays = 7

type Input struct {
	UserID  int64
	Today   time.Time
	Actions []model.Action
	// Summary may be nil when the user has not taken the survey.
	Summary *model.SurveySummary
	Window  holiday.Window
	// History holds the user's recent completions.
	History []model.ActionCompletion
	Premium bool
}

type Choice struct {
	Action model.Action `json:"action"`
	Source Source       `json:"source"`
}

type Pick struct {
	Daily       *Choice `json:"daily"`
	Weekly      *Choice `json:"weekly"`
	HolidayName string  `json:"holiday_name,omitempty"`
	Date        string  `json:"date"`
}

// Select chooses today's daily action and this week's weekly action. It is
// deterministic for a given input.
func Select(in Input) Pick {
	today := startOfDay(in.Today)
	monday := weekStart(today)

	pick := Pick{Date: today.Format(model.DateLayout)}
	if in.Window.IsHolidayWeek {
		pick.HolidayName = in.Window.HolidayName
	}

	ranks := RankCategories(in.Summary)

	daily := eligible(in.Actions, model.CadenceDaily, in.Premium)
	dailyRecent := completedBetween(in.History, today.AddDate(0, 0, -RecentDays), today)
	pick.Daily = choose(daily, today, in.Window, ranks, dailyRecent, dayNumber(today)+in.UserID)

	weekly := eligible(in.Actions, model.CadenceWeekly, in.Premium)
	weeklyRecent := completedBetween(in.History, monday.AddDate(0, 0, -RecentDays), monday)
	pick.Weekly = choose(weekly, today, in.Window, ranks, weeklyRecent, dayNumber(monday)/7+in.UserID)

	return pick
}

func choose(actions []model.Action, today time.Time, w holiday.Window, ranks map[model.Category]int, recent map[int64]bool, seed int64) *Choice {
	for _, p := range pools(actions, today, w) {
		if len(p.actions) == 0 {
			continue
		}
		candidates := focus(p.actions, ranks, recent)
		a := candidates[mod(seed, len(candidates))]
		return &Choice{Action: a, Source: p.source}
	}
	return nil
}

type pool struct {
	source  Source
	actions []model.Action
}

// pools returns the candidate pools in precedence order: actions with an
// explicit date range covering today, then keyword matches for the current
// holiday, then the regular catalogue.
func pools(actions []model.Action, today time.Time, w holiday.Window) []pool {
	var seasonal, holidayPool, regular []model.Action

	var keywords map[string]bool
	if w.IsHolidayWeek {
		keywords = make(map[string]bool)
		for _, k := range holiday.KeywordsFor(w.HolidayName) {
			keywords[k] = true
		}
	}

	for _, a := range actions {
		switch {
		case a.HasSeasonDates():
			if a.InSeason(today) {
				seasonal = append(seasonal, a)
			}
		case keywords != nil && matchesAny(a.Keywords, keywords):
			holidayPool = append(holidayPool, a)
		case !a.Seasonal:
			regular = append(regular, a)
		}
	}
	return []pool{
		{SourceSeasonal, seasonal},
		{SourceHoliday, holidayPool},
		{SourceRegular, regular},
	}
}

func matchesAny(keywords []string, want map[string]bool) bool {
	for _, k := range keywords {
		if want[strings.ToLower(strings.TrimSpace(k))] {
			return true
		}
	}
	return false
}

// focus narrows a pool to the best-ranked category that still has an action
// not completed recently. If everything was done recently the whole pool is
// used, ordered by rank.
func focus(actions []model.Action, ranks map[model.Category]int, recent map[int64]bool) []model.Action {
	sorted := make([]model.Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rankOf(ranks, sorted[i].Category), rankOf(ranks, sorted[j].Category)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].ID < sorted[j].ID
	})

	var fresh []model.Action
	for _, a := range sorted {
		if !recent[a.ID] {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		return sorted
	}

	best := rankOf(ranks, fresh[0].Category)
	var out []model.Action
	for _, a := range fresh {
		if rankOf(ranks, a.Category) == best {
			out = append(out, a)
		}
	}
	return out
}

func rankOf(ranks map[model.Category]int, c model.Category) int {
	if r, ok := ranks[c]; ok {
		return r
	}
	return len(ranks)
}

// RankCategories orders categories for focus: those the user wants to
// improve first, then by ascending score, then canonical order. The result
// maps each category to its position.
func RankCategories(sum *model.SurveySummary) map[model.Category]int {
	cats := make([]model.Category, len(model.Categories))
	copy(cats, model.Categories)

	if sum != nil {
		canonical := make(map[model.Category]int, len(cats))
		for i, c := range model.Categories {
			canonical[c] = i
		}
		wants := func(c model.Category) bool {
			g, ok := sum.Goals[c]
			return ok && g.WantsImprovement != nil && *g.WantsImprovement
		}
		score := func(c model.Category) float64 {
			if s, ok := sum.CategoryScores[c]; ok {
				return s
			}
			return 50
		}
		sort.SliceStable(cats, func(i, j int) bool {
			a, b := cats[i], cats[j]
			if wa, wb := wants(a), wants(b); wa != wb {
				return wa
			}
			if sa, sb := score(a), score(b); sa != sb {
				return sa < sb
			}
			return canonical[a] < canonical[b]
		})
	}

	out := make(map[model.Category]int, len(cats))
	for i, c := range cats {
		out[c] = i
	}
	return out
}

func eligible(actions []model.Action, cadence model.Cadence, premium bool) []model.Action {
	var out []model.Action
	for _, a := range actions {
		if !a.Active || a.Cadence != cadence {
			continue
		}
		if a.Premium && !premium {
			continue
		}
		out = append(out, a)
	}
	return out
}

// completedBetween returns the action ids completed in [from, to).
func completedBetween(history []model.ActionCompletion, from, to time.Time) map[int64]bool {
	out := make(map[int64]bool)
	for _, c := range history {
		day := startOfDay(c.CompletedAt.In(from.Location()))
		if !day.Before(from) && day.Before(to) {
			out[c.ActionID] = true
		}
	}
	return out
}

func dayNumber(day time.Time) int64 {
	civil := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return civil.Unix() / 86400
}

func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func mod(n int64, m int) int {
	r := int(n % int64(m))
	if r < 0 {
		r += m
	}
	return r
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
