package holiday

import (
	"encoding/json"
	"strings"
	"time"
)

// Window is the resolver's answer for a day. Pointer fields are nil when
// no holiday window covers the day.
type Window struct {
	IsHolidayWeek  bool       `json:"is_holiday_week"`
	HolidayName    string     `json:"holiday_name"`
	HolidayDate    *time.Time `json:"holiday_date"`
	ServeWeekStart *time.Time `json:"serve_week_start"`
}

// MarshalJSON writes a null holiday_name when no holiday matched.
func (w Window) MarshalJSON() ([]byte, error) {
	type window Window
	var name *string
	if w.HolidayName != "" {
		name = &w.HolidayName
	}
	return json.Marshal(struct {
		window
		HolidayName *string `json:"holiday_name"`
	}{window(w), name})
}

const windowDays = 7

// Resolve reports whether today falls in the serving window of one of the
// built-in holidays.
func Resolve(country Country, today time.Time) Window {
	return ResolveIn(Defaults, country, today)
}

// ResolveIn is Resolve over an explicit table. The current and the next
// year are checked so late-December days can match a January holiday.
// The first match in year-then-table order wins.
func ResolveIn(defs []Definition, country Country, today time.Time) Window {
	today = startOfDay(today)

	for _, year := range []int{today.Year(), today.Year() + 1} {
		for _, def := range defs {
			if !def.appliesTo(country) {
				continue
			}
			date, err := def.Date(year, today.Location())
			if err != nil {
				continue
			}
			start := ServeWeekStart(date)
			end := start.AddDate(0, 0, windowDays-1)
			if today.Before(start) || today.After(end) {
				continue
			}
			return Window{
				IsHolidayWeek:  true,
				HolidayName:    def.Name,
				HolidayDate:    &date,
				ServeWeekStart: &start,
			}
		}
	}
	return Window{}
}

func (d Definition) appliesTo(country Country) bool {
	if d.Country == "" {
		return true
	}
	return country != "" && d.Country == country
}

// ServeWeekStart returns the Monday that opens a holiday's serving window.
// Weeks run Sunday through Saturday, so the Monday of a Sunday's week is
// the following day. Friday and Saturday holidays are served from the
// Monday of their own week; every other day gets an extra week of lead time.
func ServeWeekStart(holiday time.Time) time.Time {
	holiday = startOfDay(holiday)
	wd := int(holiday.Weekday())
	monday := holiday.AddDate(0, 0, 1-wd)
	if holiday.Weekday() == time.Friday || holiday.Weekday() == time.Saturday {
		return monday
	}
	return monday.AddDate(0, 0, -windowDays)
}

// Conflict describes two holidays whose serving windows overlap.
type Conflict struct {
	First  string
	Second string
	Year   int
}

// Overlaps lists pairs of holidays visible to country whose windows overlap
// in the given year, or whose window in year overlaps one of year+1 (a
// late-December holiday against New Year's Day). Pairs falling entirely in
// year+1 are left to the next year's call. Resolution stays first-match;
// this exists so callers can surface a table that breaks the
// one-window-per-week assumption.
func Overlaps(defs []Definition, country Country, year int) []Conflict {
	type span struct {
		name       string
		year       int
		start, end time.Time
	}
	var spans []span
	for _, y := range []int{year, year + 1} {
		for _, def := range defs {
			if !def.appliesTo(country) {
				continue
			}
			date, err := def.Date(y, time.UTC)
			if err != nil {
				continue
			}
			start := ServeWeekStart(date)
			spans = append(spans, span{def.Name, y, start, start.AddDate(0, 0, windowDays-1)})
		}
	}

	var out []Conflict
	for i := 0; i < len(spans); i++ {
		if spans[i].year != year {
			break
		}
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if !a.end.Before(b.start) && !b.end.Before(a.start) {
				out = append(out, Conflict{First: a.name, Second: b.name, Year: year})
			}
		}
	}
	return out
}

type keywordRule struct {
	match    string
	keywords []string
}

var keywordRules = []keywordRule{
	{"new year", []string{"new year", "new-year", "resolution"}},
	{"valentine", []string{"valentine", "valentines", "love"}},
	{"easter", []string{"easter", "spring"}},
	{"mother", []string{"mother", "mom", "mothers-day"}},
	{"father", []string{"father", "dad", "fathers-day"}},
	{"canada day", []string{"canada day", "canada", "summer"}},
	{"independence", []string{"independence", "fourth of july", "july 4th", "summer"}},
	{"thanksgiving", []string{"thanksgiving", "turkey"}},
	{"halloween", []string{"halloween", "spooky", "costume"}},
	{"christmas", []string{"christmas", "xmas", "holiday", "gift"}},
}

// KeywordsFor returns the lowercase content keywords for a holiday name.
// Matching is by case-insensitive substring; thanksgiving names are further
// qualified by country.
func KeywordsFor(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return []string{}
	}

	out := []string{}
	for _, r := range keywordRules {
		if strings.Contains(lower, r.match) {
			out = append(out, r.keywords...)
		}
	}

	if strings.Contains(lower, "thanksgiving") {
		switch {
		case strings.Contains(lower, "canadian"):
			out = append(out, "canadian")
		case hasWord(lower, "us"):
			out = append(out, "american")
		}
	}
	return out
}

func hasWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if f == word {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
