package model

import "time"

type Challenge struct {
	ID          int64          `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    Category       `json:"category"`
	Premium     bool           `json:"premium"`
	Days        []ChallengeDay `json:"days,omitempty"`
}

type ChallengeDay struct {
	DayNumber   int    `json:"day_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Enrollment struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ChallengeID int64     `json:"challenge_id"`
	StartedOn   time.Time `json:"started_on"`
	CreatedAt   time.Time `json:"created_at"`
}
