package model

import "time"

type Category string

const (
	CategoryCommunication      Category = "communication"
	CategoryIntimacy           Category = "intimacy"
	CategoryPartnership        Category = "partnership"
	CategoryRomance            Category = "romance"
	CategoryGratitude          Category = "gratitude"
	CategoryConflictResolution Category = "conflict_resolution"
	CategoryReconnection       Category = "reconnection"
	CategoryQualityTime        Category = "quality_time"
	CategoryConsistency        Category = "consistency"
)

// Categories is the canonical category order.
var Categories = []Category{
	CategoryCommunication,
	CategoryIntimacy,
	CategoryPartnership,
	CategoryRomance,
	CategoryGratitude,
	CategoryConflictResolution,
	CategoryReconnection,
	CategoryQualityTime,
	CategoryConsistency,
}

// GoalCategories are the categories that carry a self-rating and an
// improvement preference.
var GoalCategories = Categories[:8]

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type ResponseType string

const (
	ResponseScale ResponseType = "scale"
	ResponseYesNo ResponseType = "yes_no"
)

type SurveyQuestion struct {
	ID           int          `json:"id"`
	Category     Category     `json:"category"`
	ResponseType ResponseType `json:"response_type"`
	Prompt       string       `json:"prompt"`
	OrderIndex   int          `json:"order_index"`
}

// Goal holds the goal-setting answers for one category. Nil means the
// question was not asked.
type Goal struct {
	SelfRating       *int  `json:"self_rating"`
	WantsImprovement *bool `json:"wants_improvement"`
}

type SurveySummary struct {
	UserID         int64                `json:"user_id"`
	BaselineHealth int                  `json:"baseline_health"`
	CategoryScores map[Category]float64 `json:"category_scores"`
	Goals          map[Category]Goal    `json:"goals"`
	Skipped        bool                 `json:"skipped"`
	UpdatedAt      time.Time            `json:"updated_at"`
}
