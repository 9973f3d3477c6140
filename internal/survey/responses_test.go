package survey

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dukerupert/tandem/internal/model"
)

func TestParseResponsesList(t *testing.T) {
	raw := json.RawMessage(`[
		{"questionId": 1, "answer": true},
		{"questionId": 2, "answer": false},
		{"questionId": "3", "answer": 4},
		{"questionId": 4},
		{"questionId": 5, "answer": null}
	]`)

	got, err := ParseResponses(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := Answers{1: 1, 2: 0, 3: 4, 4: 0, 5: 0}
	if len(got) != len(want) {
		t.Fatalf("got %d answers, want %d", len(got), len(want))
	}
	for id, v := range want {
		if got[id] != v {
			t.Errorf("answer[%d] = %d, want %d", id, got[id], v)
		}
	}
}

func TestParseResponsesKeyed(t *testing.T) {
	raw := json.RawMessage(`{"1": true, "2": 0, " 3 ": 5, "4": null}`)

	got, err := ParseResponses(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := Answers{1: 1, 2: 0, 3: 5, 4: 0}
	for id, v := range want {
		if got[id] != v {
			t.Errorf("answer[%d] = %d, want %d", id, got[id], v)
		}
	}
}

func TestParseResponsesNonNumericAnswersAreZero(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"list", `[{"questionId": 1, "answer": "yes"}, {"questionId": 2, "answer": {}}, {"questionId": 3, "answer": [1]}]`},
		{"keyed", `{"1": "yes", "2": {"value": 1}, "3": [1]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseResponses(json.RawMessage(c.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			want := Answers{1: 0, 2: 0, 3: 0}
			if len(got) != len(want) {
				t.Fatalf("got %d answers, want %d", len(got), len(want))
			}
			for id, v := range want {
				if got[id] != v {
					t.Errorf("answer[%d] = %d, want %d", id, got[id], v)
				}
			}
		})
	}
}

func TestStringAnswerOnScaleQuestionFailsValidation(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 1, Category: model.CategoryCommunication, ResponseType: model.ResponseYesNo},
		{ID: 2, Category: model.CategoryCommunication, ResponseType: model.ResponseScale},
	}
	answers, err := ParseResponses(json.RawMessage(`{"1": "yes", "2": "often"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := Validate(qs, answers); !errors.Is(err, ErrAnswerOutOfRange) {
		t.Errorf("err = %v, want ErrAnswerOutOfRange", err)
	}
	if err := Validate(qs[:1], Answers{1: answers[1]}); err != nil {
		t.Errorf("string yes/no answer should validate as 0: %v", err)
	}
}

func TestParseResponsesErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"null", `null`},
		{"scalar", `42`},
		{"bad key", `{"one": 1}`},
		{"fractional answer", `[{"questionId": 1, "answer": 2.5}]`},
		{"missing id", `[{"answer": 1}]`},
		{"bad id", `[{"questionId": "q1", "answer": 1}]`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseResponses(json.RawMessage(c.raw))
			if !errors.Is(err, ErrInvalidResponses) {
				t.Errorf("err = %v, want ErrInvalidResponses", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 1, Category: model.CategoryCommunication, ResponseType: model.ResponseYesNo},
		{ID: 2, Category: model.CategoryCommunication, ResponseType: model.ResponseScale},
	}

	cases := []struct {
		name    string
		answers Answers
		want    error
	}{
		{"complete", Answers{1: 1, 2: 5}, nil},
		{"missing answer", Answers{1: 1}, ErrIncomplete},
		{"extra answer", Answers{1: 1, 2: 3, 3: 1}, ErrIncomplete},
		{"unknown question", Answers{1: 1, 7: 3}, ErrUnknownQuestion},
		{"yes/no out of range", Answers{1: 2, 2: 3}, ErrAnswerOutOfRange},
		{"scale too high", Answers{1: 0, 2: 7}, ErrAnswerOutOfRange},
		{"scale absent", Answers{1: 0, 2: 0}, ErrAnswerOutOfRange},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Validate(qs, c.answers)
			if c.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, c.want) {
				t.Errorf("err = %v, want %v", err, c.want)
			}
		})
	}
}
