package model

import "time"

type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Country         string    `json:"country"`
	ReminderHour    int       `json:"reminder_hour"`
	PartnerID       *int64    `json:"partner_id"`
	SurveyCompleted bool      `json:"survey_completed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Audience returns the user and, when linked, their partner.
func (u *User) Audience() []int64 {
	if u.PartnerID == nil {
		return []int64{u.ID}
	}
	return []int64{u.ID, *u.PartnerID}
}
