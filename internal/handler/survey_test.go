package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func newSurveyHandler(env *testEnv, adminEmail string) *SurveyHandler {
	return NewSurveyHandler(env.surveys, env.users, env.picks, env.awarder, env.hub, env.mailer, adminEmail, env.logger)
}

// fullResponses answers every seeded question: yes to yes/no questions and 4
// to the scale questions.
func fullResponses() string {
	scale := map[int]bool{14: true, 16: true, 18: true, 20: true, 22: true, 24: true, 26: true, 28: true}
	parts := make([]string, 0, 29)
	for id := 1; id <= 29; id++ {
		v := 1
		if scale[id] {
			v = 4
		}
		parts = append(parts, fmt.Sprintf(`"%d":%d`, id, v))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func TestSurveySubmitComplete(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	h := newSurveyHandler(env, "admin@example.com")

	body := fmt.Sprintf(`{"userId":"%d","responses":%s}`, u.ID, fullResponses())
	rec := serve(h.Submit, newRequest("POST", "/api/survey", body, u.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Summary struct {
			BaselineHealth int  `json:"baseline_health"`
			Skipped        bool `json:"skipped"`
		} `json:"summary"`
		NewBadges []string `json:"new_badges"`
	}
	decodeBody(t, rec, &resp)
	if resp.Summary.Skipped {
		t.Error("expected a scored summary")
	}
	if resp.Summary.BaselineHealth <= 50 {
		t.Errorf("baseline = %d, want above neutral for all-yes answers", resp.Summary.BaselineHealth)
	}
	if len(resp.NewBadges) != 1 || resp.NewBadges[0] != "survey_taken" {
		t.Errorf("new badges = %v, want [survey_taken]", resp.NewBadges)
	}

	got, _ := env.users.GetByID(u.ID)
	if !got.SurveyCompleted {
		t.Error("expected survey_completed to be set")
	}
	if len(env.mailer.summaries) != 1 || env.mailer.summaries[0] != "alice@example.com" {
		t.Errorf("admin summaries = %v", env.mailer.summaries)
	}
}

func TestSurveySubmitSkip(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	h := newSurveyHandler(env, "")

	rec := serve(h.Submit, newRequest("POST", "/api/survey", `{"skip":true}`, u.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	sum, _ := env.surveys.GetSummary(u.ID)
	if sum == nil || !sum.Skipped {
		t.Errorf("summary = %+v, want skipped", sum)
	}
	if len(env.mailer.summaries) != 0 {
		t.Error("no admin email expected without an admin address")
	}
}

func TestSurveySubmitErrors(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	h := newSurveyHandler(env, "")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"responses":`, http.StatusBadRequest},
		{"other user", fmt.Sprintf(`{"userId":%d,"skip":true}`, u.ID+1), http.StatusForbidden},
		{"non numeric user id", `{"userId":"abc","skip":true}`, http.StatusBadRequest},
		{"missing responses", `{}`, http.StatusBadRequest},
		{"incomplete", `{"responses":{"1":1,"2":0}}`, http.StatusBadRequest},
		{"out of range", strings.Replace(fmt.Sprintf(`{"responses":%s}`, fullResponses()), `"14":4`, `"14":9`, 1), http.StatusBadRequest},
		{"bad yes/no", strings.Replace(fmt.Sprintf(`{"responses":%s}`, fullResponses()), `"1":1`, `"1":3`, 1), http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := serve(h.Submit, newRequest("POST", "/api/survey", c.body, u.ID))
		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d (%s)", c.name, rec.Code, c.want, rec.Body.String())
		}
	}

	if sum, _ := env.surveys.GetSummary(u.ID); sum != nil {
		t.Error("rejected submissions must not store a summary")
	}
}

func TestSurveySubmitUnknownUser(t *testing.T) {
	env := setupEnv(t)
	h := newSurveyHandler(env, "")

	rec := serve(h.Submit, newRequest("POST", "/api/survey", `{"skip":true}`, 999))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSurveySubmitNoQuestions(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	if _, err := env.db.Exec(`DELETE FROM survey_questions`); err != nil {
		t.Fatalf("clear questions: %v", err)
	}
	h := newSurveyHandler(env, "")

	rec := serve(h.Submit, newRequest("POST", "/api/survey", `{"skip":true}`, u.ID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("submit status = %d, want 404", rec.Code)
	}
	rec = serve(h.Questions, newRequest("GET", "/api/survey/questions", "", u.ID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("questions status = %d, want 404", rec.Code)
	}
}

func TestSurveyAdminEmailFailureIsLoggedOnly(t *testing.T) {
	env := setupEnv(t)
	env.mailer.summErr = errMailDown
	u := env.createUser(t, "alice@example.com", "Alice")
	h := newSurveyHandler(env, "admin@example.com")

	rec := serve(h.Submit, newRequest("POST", "/api/survey", `{"skip":true}`, u.ID))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSurveySummary(t *testing.T) {
	env := setupEnv(t)
	u := env.createUser(t, "alice@example.com", "Alice")
	h := newSurveyHandler(env, "")

	rec := serve(h.Summary, newRequest("GET", "/api/survey/summary", "", u.ID))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before survey = %d, want 404", rec.Code)
	}

	serve(h.Submit, newRequest("POST", "/api/survey", `{"skip":true}`, u.ID))
	rec = serve(h.Summary, newRequest("GET", "/api/survey/summary", "", u.ID))
	if rec.Code != http.StatusOK {
		t.Errorf("status after survey = %d, want 200", rec.Code)
	}
}
