package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/tandem/internal/model"
)

type SurveyStore struct {
	db *sql.DB
}

func NewSurveyStore(db *sql.DB) *SurveyStore {
	return &SurveyStore{db: db}
}

// ListQuestions returns every survey question in presentation order.
func (s *SurveyStore) ListQuestions() ([]model.SurveyQuestion, error) {
	rows, err := s.db.Query(
		`SELECT id, category, response_type, prompt, order_index
		 FROM survey_questions ORDER BY order_index, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list survey questions: %w", err)
	}
	defer rows.Close()

	var qs []model.SurveyQuestion
	for rows.Next() {
		var q model.SurveyQuestion
		if err := rows.Scan(&q.ID, &q.Category, &q.ResponseType, &q.Prompt, &q.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan survey question: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// summaryColumns lists the per-category columns in model.Categories order:
// every category has a score, goal categories add the two goal columns.
func summaryColumns() []string {
	var cols []string
	for _, c := range model.Categories {
		cols = append(cols, string(c)+"_score")
	}
	for _, c := range model.GoalCategories {
		cols = append(cols, string(c)+"_self_rating", string(c)+"_wants_improvement")
	}
	return cols
}

// UpsertSummary writes the summary for userID, replacing any previous one.
func (s *SurveyStore) UpsertSummary(userID int64, sum model.SurveySummary) error {
	cols := append([]string{"user_id", "baseline_health", "skipped"}, summaryColumns()...)
	cols = append(cols, "updated_at")

	args := []any{userID, sum.BaselineHealth, boolInt(sum.Skipped)}
	for _, c := range model.Categories {
		args = append(args, sum.CategoryScores[c])
	}
	for _, c := range model.GoalCategories {
		g := sum.Goals[c]
		var rating, wants sql.NullInt64
		if g.SelfRating != nil {
			rating = sql.NullInt64{Int64: int64(*g.SelfRating), Valid: true}
		}
		if g.WantsImprovement != nil {
			wants = sql.NullInt64{Int64: int64(boolInt(*g.WantsImprovement)), Valid: true}
		}
		args = append(args, rating, wants)
	}
	args = append(args, time.Now().UTC())

	var updates []string
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}

	query := `INSERT INTO survey_summaries (` + strings.Join(cols, ", ") + `)
		VALUES (` + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + `)
		ON CONFLICT(user_id) DO UPDATE SET ` + strings.Join(updates, ", ")

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("upsert survey summary: %w", err)
	}
	return nil
}

// GetSummary returns the stored summary for userID, or nil if the user has
// neither taken nor skipped the survey.
func (s *SurveyStore) GetSummary(userID int64) (*model.SurveySummary, error) {
	query := `SELECT baseline_health, skipped, ` + strings.Join(summaryColumns(), ", ") + `, updated_at
		FROM survey_summaries WHERE user_id = ?`

	var skipped int
	sum := model.SurveySummary{
		UserID:         userID,
		CategoryScores: make(map[model.Category]float64, len(model.Categories)),
		Goals:          make(map[model.Category]model.Goal),
	}
	scores := make([]float64, len(model.Categories))
	ratings := make([]sql.NullInt64, len(model.GoalCategories))
	wants := make([]sql.NullInt64, len(model.GoalCategories))

	dest := []any{&sum.BaselineHealth, &skipped}
	for i := range scores {
		dest = append(dest, &scores[i])
	}
	for i := range model.GoalCategories {
		dest = append(dest, &ratings[i], &wants[i])
	}
	dest = append(dest, &sum.UpdatedAt)

	err := s.db.QueryRow(query, userID).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get survey summary: %w", err)
	}

	sum.Skipped = skipped != 0
	for i, c := range model.Categories {
		sum.CategoryScores[c] = scores[i]
	}
	for i, c := range model.GoalCategories {
		if !ratings[i].Valid && !wants[i].Valid {
			continue
		}
		var g model.Goal
		if ratings[i].Valid {
			v := int(ratings[i].Int64)
			g.SelfRating = &v
		}
		if wants[i].Valid {
			v := wants[i].Int64 != 0
			g.WantsImprovement = &v
		}
		sum.Goals[c] = g
	}
	return &sum, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
