package badge

import (
	"fmt"
	"time"

	"github.com/dukerupert/tandem/internal/challenge"
	"github.com/dukerupert/tandem/internal/store"
)

// Awarder gathers a user's stats and grants any badge they newly qualify for.
type Awarder struct {
	users      *store.UserStore
	actions    *store.ActionStore
	challenges *store.ChallengeStore
	badges     *store.BadgeStore
	now        func() time.Time
}

func NewAwarder(users *store.UserStore, actions *store.ActionStore, challenges *store.ChallengeStore, badges *store.BadgeStore) *Awarder {
	return &Awarder{
		users:      users,
		actions:    actions,
		challenges: challenges,
		badges:     badges,
		now:        time.Now,
	}
}

// Stats loads the inputs Evaluate needs for userID.
func (a *Awarder) Stats(userID int64) (Stats, error) {
	u, err := a.users.GetByID(userID)
	if err != nil {
		return Stats{}, err
	}
	if u == nil {
		return Stats{}, fmt.Errorf("user %d not found", userID)
	}
	cs, err := a.actions.CompletionStats(userID)
	if err != nil {
		return Stats{}, err
	}
	finished, err := a.challenges.CountFinished(userID, challenge.Length)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Completions:         cs.Total,
		SeasonalCompletions: cs.Seasonal,
		Streak:              Streak(cs.Days, a.now().UTC()),
		SurveyCompleted:     u.SurveyCompleted,
		ChallengesFinished:  finished,
	}, nil
}

// Check awards every newly satisfied badge and returns their slugs.
func (a *Awarder) Check(userID int64) ([]string, error) {
	stats, err := a.Stats(userID)
	if err != nil {
		return nil, fmt.Errorf("badge stats: %w", err)
	}
	held, err := a.badges.EarnedSlugs(userID)
	if err != nil {
		return nil, err
	}

	var awarded []string
	for _, slug := range NewlyEarned(Evaluate(stats), held) {
		ok, err := a.badges.Award(userID, slug)
		if err != nil {
			return awarded, err
		}
		if ok {
			awarded = append(awarded, slug)
		}
	}
	return awarded, nil
}
