package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/tandem/internal/model"
)

type ActionStore struct {
	db *sql.DB
}

func NewActionStore(db *sql.DB) *ActionStore {
	return &ActionStore{db: db}
}

const actionCols = `id, title, description, category, cadence, keywords, seasonal,
	seasonal_start_date, seasonal_end_date, premium, active, created_at`

func scanAction(scanner interface{ Scan(...any) error }) (*model.Action, error) {
	var a model.Action
	var keywords string
	var seasonal, premium, active int
	var start, end sql.NullString

	err := scanner.Scan(
		&a.ID, &a.Title, &a.Description, &a.Category, &a.Cadence, &keywords, &seasonal,
		&start, &end, &premium, &active, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Keywords = splitKeywords(keywords)
	a.Seasonal = seasonal != 0
	a.Premium = premium != 0
	a.Active = active != 0
	if a.SeasonStart, err = parseDate(start); err != nil {
		return nil, fmt.Errorf("action %d start date: %w", a.ID, err)
	}
	if a.SeasonEnd, err = parseDate(end); err != nil {
		return nil, fmt.Errorf("action %d end date: %w", a.ID, err)
	}
	return &a, nil
}

func splitKeywords(s string) []string {
	out := []string{}
	for _, k := range strings.Split(s, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func parseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(model.DateLayout, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(model.DateLayout)
}

// ListActive returns every active action in id order.
func (s *ActionStore) ListActive() ([]model.Action, error) {
	rows, err := s.db.Query(`SELECT ` + actionCols + ` FROM actions WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

func (s *ActionStore) GetByID(id int64) (*model.Action, error) {
	row := s.db.QueryRow(`SELECT `+actionCols+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	return a, nil
}

func (s *ActionStore) Create(a model.Action) (*model.Action, error) {
	result, err := s.db.Exec(
		`INSERT INTO actions (title, description, category, cadence, keywords, seasonal,
			seasonal_start_date, seasonal_end_date, premium, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Description, a.Category, a.Cadence, strings.Join(a.Keywords, ","),
		boolInt(a.Seasonal), dateArg(a.SeasonStart), dateArg(a.SeasonEnd),
		boolInt(a.Premium), boolInt(a.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActionStore) CreateCompletion(actionID, userID int64, at time.Time) (*model.ActionCompletion, error) {
	result, err := s.db.Exec(
		`INSERT INTO action_completions (action_id, user_id, completed_at) VALUES (?, ?, ?)`,
		actionID, userID, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert action completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCompletion(id)
}

const completionCols = `c.id, c.action_id, c.user_id, a.title, a.category, c.completed_at`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.ActionCompletion, error) {
	var c model.ActionCompletion
	if err := scanner.Scan(&c.ID, &c.ActionID, &c.UserID, &c.ActionTitle, &c.Category, &c.CompletedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ActionStore) GetCompletion(id int64) (*model.ActionCompletion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM action_completions c
		 JOIN actions a ON a.id = c.action_id WHERE c.id = ?`, id,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action completion: %w", err)
	}
	return c, nil
}

func (s *ActionStore) DeleteCompletion(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM action_completions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete action completion: %w", err)
	}
	return nil
}

// ListCompletions returns the user's completions, newest first.
func (s *ActionStore) ListCompletions(userID int64, limit int) ([]model.ActionCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM action_completions c
		 JOIN actions a ON a.id = c.action_id
		 WHERE c.user_id = ? ORDER BY c.completed_at DESC, c.id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list action completions: %w", err)
	}
	defer rows.Close()

	var out []model.ActionCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListCompletionsSince returns the user's completions at or after since,
// newest first.
func (s *ActionStore) ListCompletionsSince(userID int64, since time.Time) ([]model.ActionCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM action_completions c
		 JOIN actions a ON a.id = c.action_id
		 WHERE c.user_id = ? AND c.completed_at >= ? ORDER BY c.completed_at DESC, c.id DESC`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent completions: %w", err)
	}
	defer rows.Close()

	var out []model.ActionCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CompletionStats summarizes a user's completion history.
type CompletionStats struct {
	Total    int
	Seasonal int
	// Days holds each distinct completion day, most recent first.
	Days []time.Time
}

func (s *ActionStore) CompletionStats(userID int64) (*CompletionStats, error) {
	var stats CompletionStats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(a.seasonal), 0) FROM action_completions c
		 JOIN actions a ON a.id = c.action_id WHERE c.user_id = ?`, userID,
	).Scan(&stats.Total, &stats.Seasonal)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT completed_at FROM action_completions WHERE user_id = ? ORDER BY completed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completion days: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan completion day: %w", err)
		}
		key := at.UTC().Format(model.DateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		day, _ := time.Parse(model.DateLayout, key)
		stats.Days = append(stats.Days, day)
	}
	return &stats, rows.Err()
}
