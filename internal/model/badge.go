package model

import "time"

type Badge struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type EarnedBadge struct {
	Badge
	EarnedAt time.Time `json:"earned_at"`
}
