package survey

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dukerupert/tandem/internal/model"
)

func yesNoQuestions(n int, cat model.Category) []model.SurveyQuestion {
	qs := make([]model.SurveyQuestion, n)
	for i := range qs {
		qs[i] = model.SurveyQuestion{ID: i + 1, Category: cat, ResponseType: model.ResponseYesNo, OrderIndex: i}
	}
	return qs
}

// seedLikeQuestions mirrors the shipped question set: 1-13 yes/no, then
// alternating scale (even) and yes/no (odd) goal questions for 14-29.
func seedLikeQuestions() []model.SurveyQuestion {
	baseline := []model.Category{
		model.CategoryCommunication, model.CategoryCommunication,
		model.CategoryIntimacy, model.CategoryPartnership,
		model.CategoryRomance, model.CategoryRomance,
		model.CategoryGratitude, model.CategoryConflictResolution,
		model.CategoryConflictResolution, model.CategoryReconnection,
		model.CategoryQualityTime, model.CategoryConsistency,
		model.CategoryConsistency,
	}
	var qs []model.SurveyQuestion
	for i, c := range baseline {
		qs = append(qs, model.SurveyQuestion{ID: i + 1, Category: c, ResponseType: model.ResponseYesNo})
	}
	id := 14
	for _, c := range model.GoalCategories {
		qs = append(qs, model.SurveyQuestion{ID: id, Category: c, ResponseType: model.ResponseScale})
		qs = append(qs, model.SurveyQuestion{ID: id + 1, Category: c, ResponseType: model.ResponseYesNo})
		id += 2
	}
	return qs
}

func TestBaselineHealthScenario(t *testing.T) {
	qs := yesNoQuestions(18, model.CategoryCommunication)
	answers := Answers{}
	for i := 1; i <= 18; i++ {
		if i <= 14 {
			answers[i] = 1
		} else {
			answers[i] = 0
		}
	}

	got := Score(qs, answers)
	if got.BaselineHealth != 78 {
		t.Errorf("baseline = %d, want 78", got.BaselineHealth)
	}
}

func TestBaselineHealthCappedAt90(t *testing.T) {
	qs := yesNoQuestions(18, model.CategoryRomance)
	answers := Answers{}
	for _, q := range qs {
		answers[q.ID] = 1
	}

	got := Score(qs, answers)
	if got.BaselineHealth != 90 {
		t.Errorf("baseline = %d, want 90", got.BaselineHealth)
	}
}

func TestBaselineHealthAllNo(t *testing.T) {
	qs := yesNoQuestions(18, model.CategoryRomance)
	answers := Answers{}
	for _, q := range qs {
		answers[q.ID] = 0
	}

	if got := Score(qs, answers).BaselineHealth; got != 0 {
		t.Errorf("baseline = %d, want 0", got)
	}
}

func TestBaselineHealthDefaultWithoutBaselineQuestions(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 19, Category: model.CategoryIntimacy, ResponseType: model.ResponseYesNo},
		{ID: 20, Category: model.CategoryRomance, ResponseType: model.ResponseScale},
	}
	got := Score(qs, Answers{19: 1, 20: 5})
	if got.BaselineHealth != 50 {
		t.Errorf("baseline = %d, want 50", got.BaselineHealth)
	}
}

func TestBaselineCountsScaleQuestionsInDenominator(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 1, Category: model.CategoryCommunication, ResponseType: model.ResponseYesNo},
		{ID: 14, Category: model.CategoryCommunication, ResponseType: model.ResponseScale},
	}
	// A scale answer of 1 is not a "yes"; 1 yes out of 2 baseline questions.
	got := Score(qs, Answers{1: 1, 14: 1})
	if got.BaselineHealth != 50 {
		t.Errorf("baseline = %d, want 50", got.BaselineHealth)
	}
}

func TestCategoryScoreScaleAverage(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 20, Category: model.CategoryRomance, ResponseType: model.ResponseScale},
		{ID: 22, Category: model.CategoryRomance, ResponseType: model.ResponseScale},
	}
	got := Score(qs, Answers{20: 5, 22: 3})
	if got.CategoryScores[model.CategoryRomance] != 80 {
		t.Errorf("romance = %v, want 80", got.CategoryScores[model.CategoryRomance])
	}
}

func TestCategoryScoreYesNoStretch(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 1, Category: model.CategoryGratitude, ResponseType: model.ResponseYesNo},
		{ID: 2, Category: model.CategoryGratitude, ResponseType: model.ResponseYesNo},
		{ID: 3, Category: model.CategoryIntimacy, ResponseType: model.ResponseYesNo},
	}
	got := Score(qs, Answers{1: 1, 2: 1, 3: 0})

	if got.CategoryScores[model.CategoryGratitude] != 100 {
		t.Errorf("gratitude = %v, want 100", got.CategoryScores[model.CategoryGratitude])
	}
	if got.CategoryScores[model.CategoryIntimacy] != 20 {
		t.Errorf("intimacy = %v, want 20", got.CategoryScores[model.CategoryIntimacy])
	}
}

func TestCategoryScoreNeutralWithoutAnswers(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 1, Category: model.CategoryGratitude, ResponseType: model.ResponseYesNo},
	}
	got := Score(qs, Answers{1: 1})

	if len(got.CategoryScores) != len(model.Categories) {
		t.Fatalf("got %d category scores, want %d", len(got.CategoryScores), len(model.Categories))
	}
	for _, c := range model.Categories {
		if c == model.CategoryGratitude {
			continue
		}
		if got.CategoryScores[c] != 50 {
			t.Errorf("%s = %v, want 50", c, got.CategoryScores[c])
		}
	}
}

func TestCategoryScoreRoundsToTwoDecimals(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 20, Category: model.CategoryReconnection, ResponseType: model.ResponseScale},
		{ID: 22, Category: model.CategoryReconnection, ResponseType: model.ResponseScale},
		{ID: 24, Category: model.CategoryReconnection, ResponseType: model.ResponseScale},
	}
	// (4+4+5)/3*20 = 86.666...
	got := Score(qs, Answers{20: 4, 22: 4, 24: 5})
	if got.CategoryScores[model.CategoryReconnection] != 86.67 {
		t.Errorf("reconnection = %v, want 86.67", got.CategoryScores[model.CategoryReconnection])
	}
}

func TestCategoryScoreRange(t *testing.T) {
	qs := seedLikeQuestions()
	for _, fill := range []int{0, 1} {
		answers := Answers{}
		for _, q := range qs {
			if q.ResponseType == model.ResponseScale {
				answers[q.ID] = 1 + fill*4
			} else {
				answers[q.ID] = fill
			}
		}
		got := Score(qs, answers)
		for c, s := range got.CategoryScores {
			if s < 20 || s > 100 {
				t.Errorf("fill %d: %s = %v outside [20, 100]", fill, c, s)
			}
		}
	}
}

func TestGoalsExtraction(t *testing.T) {
	qs := seedLikeQuestions()
	answers := Answers{}
	for _, q := range qs {
		if q.ResponseType == model.ResponseScale {
			answers[q.ID] = 3
		} else {
			answers[q.ID] = 1
		}
	}
	answers[14] = 2 // communication self-rating
	answers[15] = 0 // communication: no improvement wanted

	got := Score(qs, answers)

	comm := got.Goals[model.CategoryCommunication]
	if comm.SelfRating == nil || *comm.SelfRating != 2 {
		t.Errorf("communication self rating = %v, want 2", comm.SelfRating)
	}
	if comm.WantsImprovement == nil || *comm.WantsImprovement {
		t.Errorf("communication wants improvement = %v, want false", comm.WantsImprovement)
	}

	qt := got.Goals[model.CategoryQualityTime]
	if qt.SelfRating == nil || *qt.SelfRating != 3 {
		t.Errorf("quality_time self rating = %v, want 3", qt.SelfRating)
	}
	if qt.WantsImprovement == nil || !*qt.WantsImprovement {
		t.Errorf("quality_time wants improvement = %v, want true", qt.WantsImprovement)
	}

	if _, ok := got.Goals[model.CategoryConsistency]; ok {
		t.Error("consistency should carry no goal")
	}
}

func TestGoalsNullWhenNotAsked(t *testing.T) {
	qs := []model.SurveyQuestion{
		{ID: 14, Category: model.CategoryCommunication, ResponseType: model.ResponseScale},
		{ID: 17, Category: model.CategoryIntimacy, ResponseType: model.ResponseYesNo},
	}
	got := Score(qs, Answers{14: 4, 17: 1})

	comm := got.Goals[model.CategoryCommunication]
	if comm.WantsImprovement != nil {
		t.Errorf("communication wants improvement = %v, want nil", *comm.WantsImprovement)
	}
	intimacy := got.Goals[model.CategoryIntimacy]
	if intimacy.SelfRating != nil {
		t.Errorf("intimacy self rating = %v, want nil", *intimacy.SelfRating)
	}
	if intimacy.WantsImprovement == nil || !*intimacy.WantsImprovement {
		t.Error("intimacy wants improvement should be true")
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	qs := seedLikeQuestions()
	answers := Answers{}
	for i, q := range qs {
		if q.ResponseType == model.ResponseScale {
			answers[q.ID] = 1 + i%5
		} else {
			answers[q.ID] = i % 2
		}
	}

	a, err := json.Marshal(Score(qs, answers))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(Score(qs, answers))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("outputs differ:\n%s\n%s", a, b)
	}
}

func TestSkip(t *testing.T) {
	got := Skip()
	if got.BaselineHealth != 50 {
		t.Errorf("baseline = %d, want 50", got.BaselineHealth)
	}
	if !got.Skipped {
		t.Error("expected Skipped")
	}
	for _, c := range model.Categories {
		if got.CategoryScores[c] != 50 {
			t.Errorf("%s = %v, want 50", c, got.CategoryScores[c])
		}
		if g, ok := got.Goals[c]; ok && (g.SelfRating != nil || g.WantsImprovement != nil) {
			t.Errorf("%s goal should be empty", c)
		}
	}
}
