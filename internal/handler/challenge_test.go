package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/tandem/internal/challenge"
	"github.com/dukerupert/tandem/internal/model"
)

func newChallengeHandler(env *testEnv, now *time.Time) *ChallengeHandler {
	h := NewChallengeHandler(env.challenges, env.users, env.subs, env.awarder, env.hub, env.logger)
	h.now = func() time.Time { return *now }
	return h
}

func challengeDay(h *ChallengeHandler, userID int64, challengeID int64, day string) *http.Request {
	id := fmt.Sprint(challengeID)
	return newRequest("POST", "/api/challenges/"+id+"/days/"+day+"/complete", "", userID, "id", id, "day", day)
}

func TestChallengeJoinAndComplete(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	h := newChallengeHandler(env, &now)

	rec := serve(h.Join, newRequest("POST", "/api/challenges/1/join", "", u.ID, "id", "1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d: %s", rec.Code, rec.Body.String())
	}
	var joined progressResponse
	decodeBody(t, rec, &joined)
	if joined.Progress.CurrentDay != 1 || joined.Progress.Status != challenge.StatusActive {
		t.Errorf("progress after join = %+v", joined.Progress)
	}
	if len(joined.Challenge.Days) != challenge.Length {
		t.Errorf("challenge days = %d", len(joined.Challenge.Days))
	}

	rec = serve(h.CompleteDay, challengeDay(h, u.ID, 1, "1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("complete day 1 = %d: %s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		name string
		day  string
		want int
	}{
		{"again", "1", http.StatusConflict},
		{"future day", "2", http.StatusConflict},
		{"out of range", "8", http.StatusBadRequest},
		{"zero", "0", http.StatusBadRequest},
		{"not a number", "x", http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := serve(h.CompleteDay, challengeDay(h, u.ID, 1, c.day))
		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, rec.Code, c.want)
		}
	}
}

func TestChallengeFinishAwardsBadge(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	h := newChallengeHandler(env, &now)

	serve(h.Join, newRequest("POST", "/api/challenges/2/join", "", u.ID, "id", "2"))

	var last struct {
		Progress  progressResponse `json:"progress"`
		NewBadges []string         `json:"new_badges"`
	}
	for day := 1; day <= challenge.Length; day++ {
		rec := serve(h.CompleteDay, challengeDay(h, u.ID, 2, fmt.Sprint(day)))
		if rec.Code != http.StatusOK {
			t.Fatalf("day %d: status = %d: %s", day, rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &last)
		now = now.AddDate(0, 0, 1)
	}

	if last.Progress.Progress.Status != challenge.StatusCompleted {
		t.Errorf("status = %q, want completed", last.Progress.Progress.Status)
	}
	found := false
	for _, b := range last.NewBadges {
		if b == "challenge_finisher" {
			found = true
		}
	}
	if !found {
		t.Errorf("new badges = %v, want challenge_finisher", last.NewBadges)
	}
}

func TestChallengeProgressNotEnrolled(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	now := time.Now()
	h := newChallengeHandler(env, &now)

	rec := serve(h.Progress, newRequest("GET", "/api/challenges/1/progress", "", u.ID, "id", "1"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec = serve(h.CompleteDay, challengeDay(h, u.ID, 1, "1"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("complete without enrollment: status = %d, want 404", rec.Code)
	}
	rec = serve(h.Join, newRequest("POST", "/api/challenges/99/join", "", u.ID, "id", "99"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown challenge: status = %d, want 404", rec.Code)
	}
}

func TestChallengePremiumGate(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	now := time.Now()
	h := newChallengeHandler(env, &now)

	rec := serve(h.Join, newRequest("POST", "/api/challenges/3/join", "", u.ID, "id", "3"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	env.subs.Activate(u.ID, "cus_1", "sub_1", model.SubscriptionTrialing)
	rec = serve(h.Join, newRequest("POST", "/api/challenges/3/join", "", u.ID, "id", "3"))
	if rec.Code != http.StatusCreated {
		t.Errorf("trialing: status = %d, want 201", rec.Code)
	}
}

func TestChallengeLapsed(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	now := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	h := newChallengeHandler(env, &now)

	serve(h.Join, newRequest("POST", "/api/challenges/1/join", "", u.ID, "id", "1"))
	now = now.AddDate(0, 0, 10)

	rec := serve(h.CompleteDay, challengeDay(h, u.ID, 1, "3"))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	rec = serve(h.Progress, newRequest("GET", "/api/challenges/1/progress", "", u.ID, "id", "1"))
	var p progressResponse
	decodeBody(t, rec, &p)
	if p.Progress.Status != challenge.StatusLapsed {
		t.Errorf("status = %q, want lapsed", p.Progress.Status)
	}
}
