package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tandem/internal/model"
)

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

const challengeCols = `id, slug, title, description, category, premium`

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	var premium int
	if err := scanner.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.Category, &premium); err != nil {
		return nil, err
	}
	c.Premium = premium != 0
	return &c, nil
}

func (s *ChallengeStore) List() ([]model.Challenge, error) {
	rows, err := s.db.Query(`SELECT ` + challengeCols + ` FROM challenges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetByID returns the challenge with its days, or nil.
func (s *ChallengeStore) GetByID(id int64) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT day_number, title, description FROM challenge_days
		 WHERE challenge_id = ? ORDER BY day_number`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenge days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.ChallengeDay
		if err := rows.Scan(&d.DayNumber, &d.Title, &d.Description); err != nil {
			return nil, fmt.Errorf("scan challenge day: %w", err)
		}
		c.Days = append(c.Days, d)
	}
	return c, rows.Err()
}

const enrollmentCols = `id, user_id, challenge_id, started_on, created_at`

func scanEnrollment(scanner interface{ Scan(...any) error }) (*model.Enrollment, error) {
	var e model.Enrollment
	var startedOn string
	if err := scanner.Scan(&e.ID, &e.UserID, &e.ChallengeID, &startedOn, &e.CreatedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(model.DateLayout, startedOn)
	if err != nil {
		return nil, fmt.Errorf("parse started_on: %w", err)
	}
	e.StartedOn = t
	return &e, nil
}

// Enroll starts the challenge for userID on the given day. Re-joining
// restarts the challenge and clears earlier day completions.
func (s *ChallengeStore) Enroll(userID, challengeID int64, startedOn time.Time) (*model.Enrollment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM challenge_day_completions WHERE enrollment_id IN
		 (SELECT id FROM challenge_enrollments WHERE user_id = ? AND challenge_id = ?)`,
		userID, challengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("clear day completions: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO challenge_enrollments (user_id, challenge_id, started_on) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, challenge_id) DO UPDATE SET started_on = excluded.started_on`,
		userID, challengeID, startedOn.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return s.GetEnrollment(userID, challengeID)
}

func (s *ChallengeStore) GetEnrollment(userID, challengeID int64) (*model.Enrollment, error) {
	row := s.db.QueryRow(
		`SELECT `+enrollmentCols+` FROM challenge_enrollments WHERE user_id = ? AND challenge_id = ?`,
		userID, challengeID,
	)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

// ListStartedSince returns enrollments whose start day is on or after since.
func (s *ChallengeStore) ListStartedSince(since time.Time) ([]model.Enrollment, error) {
	rows, err := s.db.Query(
		`SELECT `+enrollmentCols+` FROM challenge_enrollments WHERE started_on >= ? ORDER BY id`,
		since.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent enrollments: %w", err)
	}
	defer rows.Close()

	var out []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *ChallengeStore) CompleteDay(enrollmentID int64, day int) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO challenge_day_completions (enrollment_id, day_number) VALUES (?, ?)`,
		enrollmentID, day,
	)
	if err != nil {
		return fmt.Errorf("complete challenge day: %w", err)
	}
	return nil
}

// CompletedDays returns the completed day numbers in ascending order.
func (s *ChallengeStore) CompletedDays(enrollmentID int64) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT day_number FROM challenge_day_completions WHERE enrollment_id = ? ORDER BY day_number`,
		enrollmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed days: %w", err)
	}
	defer rows.Close()

	days := []int{}
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// CountFinished returns how many challenges the user completed on every day.
func (s *ChallengeStore) CountFinished(userID int64, days int) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM (
			SELECT e.id FROM challenge_enrollments e
			JOIN challenge_day_completions d ON d.enrollment_id = e.id
			WHERE e.user_id = ?
			GROUP BY e.id HAVING COUNT(*) >= ?
		)`,
		userID, days,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count finished challenges: %w", err)
	}
	return n, nil
}
