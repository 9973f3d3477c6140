package model

import "time"

type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// DateLayout is the storage format for calendar dates.
const DateLayout = "2006-01-02"

type Action struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Cadence     Cadence    `json:"cadence"`
	Keywords    []string   `json:"keywords"`
	Seasonal    bool       `json:"seasonal"`
	SeasonStart *time.Time `json:"seasonal_start_date"`
	SeasonEnd   *time.Time `json:"seasonal_end_date"`
	Premium     bool       `json:"premium"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasSeasonDates reports whether the action carries an explicit date range.
func (a *Action) HasSeasonDates() bool {
	return a.SeasonStart != nil && a.SeasonEnd != nil
}

// InSeason reports whether day falls inside the action's explicit date range.
func (a *Action) InSeason(day time.Time) bool {
	if !a.HasSeasonDates() {
		return false
	}
	d := day.Format(DateLayout)
	return a.SeasonStart.Format(DateLayout) <= d && d <= a.SeasonEnd.Format(DateLayout)
}

type ActionCompletion struct {
	ID          int64     `json:"id"`
	ActionID    int64     `json:"action_id"`
	UserID      int64     `json:"user_id"`
	ActionTitle string    `json:"action_title,omitempty"`
	Category    Category  `json:"category,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
