package survey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dukerupert/tandem/internal/model"
)

var (
	ErrInvalidResponses = errors.New("invalid responses")
	ErrIncomplete       = errors.New("survey incomplete")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrAnswerOutOfRange = errors.New("answer out of range")
)

type responsePair struct {
	QuestionID json.RawMessage `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

// ParseResponses accepts either a list of {questionId, answer} pairs or an
// object keyed by question id, and returns the canonical answer map.
// Booleans become 1/0. Any other non-numeric answer, including a missing
// one, becomes 0 and is left for Validate to judge.
func ParseResponses(raw json.RawMessage) (Answers, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: responses are required", ErrInvalidResponses)
	}

	switch raw[0] {
	case '[':
		var pairs []responsePair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponses, err)
		}
		answers := make(Answers, len(pairs))
		for i, p := range pairs {
			id, err := parseQuestionID(p.QuestionID)
			if err != nil {
				return nil, fmt.Errorf("%w: response %d: %v", ErrInvalidResponses, i, err)
			}
			v, err := parseAnswer(p.Answer)
			if err != nil {
				return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidResponses, id, err)
			}
			answers[id] = v
		}
		return answers, nil

	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponses, err)
		}
		answers := make(Answers, len(keyed))
		for key, a := range keyed {
			id, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return nil, fmt.Errorf("%w: question key %q", ErrInvalidResponses, key)
			}
			v, err := parseAnswer(a)
			if err != nil {
				return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidResponses, id, err)
			}
			answers[id] = v
		}
		return answers, nil
	}

	return nil, fmt.Errorf("%w: expected a list or an object", ErrInvalidResponses)
}

func parseQuestionID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing questionId")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return wholeNumber(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("questionId %q is not a number", s)
		}
		return id, nil
	}
	return 0, fmt.Errorf("questionId %s is not a number", raw)
}

func parseAnswer(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return wholeNumber(n)
	}
	return 0, nil
}

func wholeNumber(n float64) (int, error) {
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%v is not a whole number", n)
	}
	return int(n), nil
}

// Validate checks that answers cover every question exactly once and that
// each value lies in its question's domain.
func Validate(questions []model.SurveyQuestion, answers Answers) error {
	if len(answers) != len(questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", ErrIncomplete, len(answers), len(questions))
	}

	byID := make(map[int]model.SurveyQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	for id, v := range answers {
		q, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
		}
		switch q.ResponseType {
		case model.ResponseYesNo:
			if v != 0 && v != 1 {
				return fmt.Errorf("%w: question %d expects 0 or 1, got %d", ErrAnswerOutOfRange, id, v)
			}
		case model.ResponseScale:
			if v < 1 || v > 5 {
				return fmt.Errorf("%w: question %d expects 1-5, got %d", ErrAnswerOutOfRange, id, v)
			}
		}
	}
	return nil
}
