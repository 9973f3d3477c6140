package challenge

import (
	"errors"
	"time"
)

// Length is the number of days in every challenge.
const Length = 7

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusLapsed    Status = "lapsed"
)

var (
	ErrDayOutOfRange    = errors.New("challenge day out of range")
	ErrDayNotReached    = errors.New("challenge day not reached yet")
	ErrAlreadyCompleted = errors.New("challenge day already completed")
	ErrChallengeOver    = errors.New("challenge is over")
)

type DayState struct {
	Day       int  `json:"day"`
	Completed bool `json:"completed"`
	Unlocked  bool `json:"unlocked"`
}

type Progress struct {
	CurrentDay int        `json:"current_day"`
	Completed  int        `json:"completed"`
	Status     Status     `json:"status"`
	Days       []DayState `json:"days"`
}

// Compute derives a participant's progress. Day 1 is the start day; a day
// unlocks on its calendar date and stays completable until the challenge
// window closes.
func Compute(startedOn, today time.Time, completedDays []int) Progress {
	elapsed := daysBetween(startedOn, today)

	current := elapsed + 1
	if current < 1 {
		current = 1
	}
	if current > Length {
		current = Length
	}

	done := make(map[int]bool, len(completedDays))
	for _, d := range completedDays {
		if d >= 1 && d <= Length {
			done[d] = true
		}
	}

	p := Progress{CurrentDay: current, Completed: len(done), Days: make([]DayState, Length)}
	for i := range p.Days {
		d := i + 1
		p.Days[i] = DayState{Day: d, Completed: done[d], Unlocked: elapsed >= 0 && d <= current}
	}

	switch {
	case p.Completed == Length:
		p.Status = StatusCompleted
	case elapsed >= Length:
		p.Status = StatusLapsed
	default:
		p.Status = StatusActive
	}
	return p
}

// CanComplete reports whether day may be marked done given p.
func CanComplete(day int, p Progress) error {
	if day < 1 || day > Length {
		return ErrDayOutOfRange
	}
	if p.Days[day-1].Completed {
		return ErrAlreadyCompleted
	}
	if p.Status == StatusLapsed {
		return ErrChallengeOver
	}
	if !p.Days[day-1].Unlocked {
		return ErrDayNotReached
	}
	return nil
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
