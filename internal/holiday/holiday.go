package holiday

import (
	"fmt"
	"time"
)

type Country string

const (
	CountryUS Country = "US"
	CountryCA Country = "CA"
)

// ParseCountry maps free-form input onto a supported country. Anything else
// is the unknown country, which only matches universal holidays.
func ParseCountry(s string) Country {
	switch Country(s) {
	case CountryUS, "us":
		return CountryUS
	case CountryCA, "ca":
		return CountryCA
	}
	return ""
}

// DateFunc computes a holiday's civil date for a year. loc is the location
// the returned midnight is expressed in.
type DateFunc func(year int, loc *time.Location) (time.Time, error)

// Definition describes one supported holiday. An empty Country means the
// holiday applies everywhere.
type Definition struct {
	Name    string
	Country Country
	Date    DateFunc
}

// Defaults is the built-in holiday table. Order matters: the resolver
// returns the first matching window.
var Defaults = []Definition{
	{Name: "New Year's Day", Date: Fixed(time.January, 1)},
	{Name: "Valentine's Day", Date: Fixed(time.February, 14)},
	{Name: "Easter", Date: EasterSunday},
	{Name: "Mother's Day", Date: NthWeekday(time.May, time.Sunday, 2)},
	{Name: "Father's Day", Date: NthWeekday(time.June, time.Sunday, 3)},
	{Name: "Canada Day", Country: CountryCA, Date: Fixed(time.July, 1)},
	{Name: "Independence Day", Country: CountryUS, Date: Fixed(time.July, 4)},
	{Name: "Canadian Thanksgiving", Country: CountryCA, Date: NthWeekday(time.October, time.Monday, 2)},
	{Name: "Halloween", Date: Fixed(time.October, 31)},
	{Name: "US Thanksgiving", Country: CountryUS, Date: NthWeekday(time.November, time.Thursday, 4)},
	{Name: "Christmas", Date: Fixed(time.December, 25)},
}

const (
	minYear = 1583 // first full Gregorian year
	maxYear = 9999
)

func checkYear(year int) error {
	if year < minYear || year > maxYear {
		return fmt.Errorf("year %d outside supported range %d-%d", year, minYear, maxYear)
	}
	return nil
}

// Fixed returns a DateFunc for a holiday on the same month and day every year.
func Fixed(month time.Month, day int) DateFunc {
	return func(year int, loc *time.Location) (time.Time, error) {
		if err := checkYear(year); err != nil {
			return time.Time{}, err
		}
		d := time.Date(year, month, day, 0, 0, 0, 0, loc)
		if d.Month() != month {
			return time.Time{}, fmt.Errorf("%s %d does not exist in %d", month, day, year)
		}
		return d, nil
	}
}

// NthWeekday returns a DateFunc for the nth weekday of a month, e.g. the
// fourth Thursday of November.
func NthWeekday(month time.Month, weekday time.Weekday, n int) DateFunc {
	return func(year int, loc *time.Location) (time.Time, error) {
		if err := checkYear(year); err != nil {
			return time.Time{}, err
		}
		if n < 1 || n > 5 {
			return time.Time{}, fmt.Errorf("invalid occurrence %d", n)
		}
		first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		offset := (int(weekday) - int(first.Weekday()) + 7) % 7
		d := first.AddDate(0, 0, offset+(n-1)*7)
		if d.Month() != month {
			return time.Time{}, fmt.Errorf("no %d %s in %s %d", n, weekday, month, year)
		}
		return d, nil
	}
}

// EasterSunday computes Western Easter with the anonymous Gregorian algorithm.
func EasterSunday(year int, loc *time.Location) (time.Time, error) {
	if err := checkYear(year); err != nil {
		return time.Time{}, err
	}
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), nil
}
