package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/tandem/internal/cache"
	"github.com/dukerupert/tandem/internal/holiday"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

// Service loads everything Select needs for a user and caches the result
// until the end of the day.
type Service struct {
	actions *store.ActionStore
	surveys *store.SurveyStore
	subs    *store.SubscriptionStore
	cache   cache.Cache
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(actions *store.ActionStore, surveys *store.SurveyStore, subs *store.SubscriptionStore, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		actions: actions,
		surveys: surveys,
		subs:    subs,
		cache:   c,
		logger:  logger.With("component", "action"),
		now:     time.Now,
	}
}

func cacheKey(userID int64, day time.Time) string {
	return fmt.Sprintf("pick:%d:%s", userID, day.Format(model.DateLayout))
}

// Today returns the user's picks for the current UTC day.
func (s *Service) Today(ctx context.Context, u *model.User) (*Pick, error) {
	now := s.now().UTC()
	key := cacheKey(u.ID, now)

	var cached Pick
	ok, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("read pick cache", "user_id", u.ID, "error", err)
	}
	if ok {
		return &cached, nil
	}

	in, err := s.input(u, now)
	if err != nil {
		return nil, err
	}
	pick := Select(in)

	if err := s.cache.Set(ctx, key, pick, cache.UntilEndOfDay(now)); err != nil {
		s.logger.Warn("write pick cache", "user_id", u.ID, "error", err)
	}
	return &pick, nil
}

func (s *Service) input(u *model.User, now time.Time) (Input, error) {
	actions, err := s.actions.ListActive()
	if err != nil {
		return Input{}, fmt.Errorf("list actions: %w", err)
	}
	summary, err := s.surveys.GetSummary(u.ID)
	if err != nil {
		return Input{}, fmt.Errorf("get survey summary: %w", err)
	}
	premium, err := s.subs.IsPremium(u.ID)
	if err != nil {
		return Input{}, fmt.Errorf("check premium: %w", err)
	}
	// The weekly window reaches back a week before Monday.
	history, err := s.actions.ListCompletionsSince(u.ID, startOfDay(now).AddDate(0, 0, -2*RecentDays))
	if err != nil {
		return Input{}, fmt.Errorf("list recent completions: %w", err)
	}

	return Input{
		UserID:  u.ID,
		Today:   now,
		Actions: actions,
		Summary: summary,
		Window:  holiday.Resolve(holiday.ParseCountry(u.Country), now),
		History: history,
		Premium: premium,
	}, nil
}

// Invalidate drops the cached picks for the given users.
func (s *Service) Invalidate(ctx context.Context, userIDs ...int64) {
	today := s.now().UTC()
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKey(id, today)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("invalidate pick cache", "error", err)
	}
}
