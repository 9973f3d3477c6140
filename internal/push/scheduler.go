package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/challenge"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

// Picker returns a user's actions for today.
type Picker interface {
	Today(ctx context.Context, u *model.User) (*action.Pick, error)
}

// Scheduler sends reminders at each user's reminder hour (UTC).
type Scheduler struct {
	mu         sync.RWMutex
	sender     Sender
	push       *store.PushStore
	users      *store.UserStore
	challenges *store.ChallengeStore
	picker     Picker
	logger     *slog.Logger
	interval   time.Duration
	now        func() time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewScheduler creates a notification scheduler.
func NewScheduler(sender Sender, pushStore *store.PushStore, userStore *store.UserStore, challengeStore *store.ChallengeStore, picker Picker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:     sender,
		push:       pushStore,
		users:      userStore,
		challenges: challengeStore,
		picker:     picker,
		logger:     logger.With("component", "push"),
		interval:   60 * time.Second,
		now:        time.Now,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	users, err := s.users.ListByReminderHour(now.Hour())
	if err != nil {
		s.logger.Error("list users for reminders", "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	enrollments, err := s.challenges.ListStartedSince(now.AddDate(0, 0, -(challenge.Length - 1)))
	if err != nil {
		s.logger.Error("list active enrollments", "error", err)
	}
	byUser := make(map[int64][]model.Enrollment)
	for _, e := range enrollments {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	for i := range users {
		u := &users[i]
		s.sendDailyAction(ctx, u, now)
		for _, e := range byUser[u.ID] {
			s.sendChallengeDay(e, now)
		}
	}
}

func (s *Scheduler) sendDailyAction(ctx context.Context, u *model.User, now time.Time) {
	refID := now.Format(model.DateLayout)
	sent, err := s.push.WasSent(u.ID, model.NotifTypeDailyAction, refID)
	if err != nil {
		s.logger.Error("check sent", "user_id", u.ID, "error", err)
		return
	}
	if sent {
		return
	}

	pick, err := s.picker.Today(ctx, u)
	if err != nil {
		s.logger.Error("pick daily action", "user_id", u.ID, "error", err)
		return
	}
	if pick.Daily == nil {
		return
	}

	title := "Today's action"
	if pick.HolidayName != "" {
		title = fmt.Sprintf("Today's action for %s", pick.HolidayName)
	}
	payload := Payload{
		Title: title,
		Body:  pick.Daily.Action.Title,
		URL:   "/today",
		Tag:   "daily-action",
	}
	if s.Notify(u.ID, payload) > 0 {
		s.push.RecordSent(u.ID, model.NotifTypeDailyAction, refID)
	}
}

func (s *Scheduler) sendChallengeDay(e model.Enrollment, now time.Time) {
	days, err := s.challenges.CompletedDays(e.ID)
	if err != nil {
		s.logger.Error("list completed days", "enrollment_id", e.ID, "error", err)
		return
	}
	p := challenge.Compute(e.StartedOn, now, days)
	if p.Status != challenge.StatusActive || p.Days[p.CurrentDay-1].Completed || !p.Days[p.CurrentDay-1].Unlocked {
		return
	}

	refID := fmt.Sprintf("enrollment-%d-day-%d", e.ID, p.CurrentDay)
	sent, err := s.push.WasSent(e.UserID, model.NotifTypeChallengeDay, refID)
	if err != nil || sent {
		return
	}

	c, err := s.challenges.GetByID(e.ChallengeID)
	if err != nil || c == nil {
		s.logger.Error("get challenge", "challenge_id", e.ChallengeID, "error", err)
		return
	}
	body := fmt.Sprintf("%s day of %s", humanize.Ordinal(p.CurrentDay), c.Title)
	if p.CurrentDay <= len(c.Days) {
		body = fmt.Sprintf("%s: %s", body, c.Days[p.CurrentDay-1].Title)
	}

	payload := Payload{
		Title: "Challenge reminder",
		Body:  body,
		URL:   fmt.Sprintf("/challenges/%d", c.ID),
		Tag:   fmt.Sprintf("challenge-%d", c.ID),
	}
	if s.Notify(e.UserID, payload) > 0 {
		s.push.RecordSent(e.UserID, model.NotifTypeChallengeDay, refID)
	}
}

// Notify sends payload to every subscription of the user, dropping expired
// ones. It returns the number of successful deliveries.
func (s *Scheduler) Notify(userID int64, payload Payload) int {
	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list subscriptions", "user_id", userID, "error", err)
		return 0
	}

	delivered := 0
	for i := range subs {
		sub := &subs[i]
		if err := s.sender.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Warn("send push", "user_id", userID, "tag", payload.Tag, "error", err)
			}
			continue
		}
		delivered++
	}
	return delivered
}
