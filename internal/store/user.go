package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tandem/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var partnerID sql.NullInt64
	var surveyCompleted int
	err := scanner.Scan(
		&u.ID, &u.Email, &u.Name, &u.Country, &u.ReminderHour,
		&partnerID, &surveyCompleted, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if partnerID.Valid {
		u.PartnerID = &partnerID.Int64
	}
	u.SurveyCompleted = surveyCompleted != 0
	return &u, nil
}

const userCols = `id, email, name, country, reminder_hour, partner_id, survey_completed, created_at, updated_at`

func (s *UserStore) Create(email, name, country string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, name, country) VALUES (?, ?, ?)`,
		email, name, country,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateProfile(id int64, name, country string, reminderHour int) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, country = ?, reminder_hour = ? WHERE id = ?`,
		name, country, reminderHour, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) MarkSurveyCompleted(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET survey_completed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark survey completed: %w", err)
	}
	return nil
}

// LinkPartners points each user at the other.
func (s *UserStore) LinkPartners(a, b int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE users SET partner_id = ? WHERE id = ?`, b, a); err != nil {
		return fmt.Errorf("link partner: %w", err)
	}
	if _, err := tx.Exec(`UPDATE users SET partner_id = ? WHERE id = ?`, a, b); err != nil {
		return fmt.Errorf("link partner: %w", err)
	}
	return tx.Commit()
}

// Unlink clears the partnership on both sides.
func (s *UserStore) Unlink(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET partner_id = NULL WHERE id = ? OR partner_id = ?`,
		id, id,
	)
	if err != nil {
		return fmt.Errorf("unlink partner: %w", err)
	}
	return nil
}

// ListByReminderHour returns users whose daily reminder is due at hour.
func (s *UserStore) ListByReminderHour(hour int) ([]model.User, error) {
	rows, err := s.db.Query(`SELECT `+userCols+` FROM users WHERE reminder_hour = ? ORDER BY id`, hour)
	if err != nil {
		return nil, fmt.Errorf("list users by reminder hour: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
