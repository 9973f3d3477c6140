package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tandem/internal/model"
)

type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) List() ([]model.Badge, error) {
	rows, err := s.db.Query(`SELECT id, slug, name, description FROM badges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// Award grants the badge with slug to userID. It reports false when the user
// already holds the badge or the slug is unknown.
func (s *BadgeStore) Award(userID int64, slug string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO user_badges (user_id, badge_id)
		 SELECT ?, id FROM badges WHERE slug = ?`,
		userID, slug,
	)
	if err != nil {
		return false, fmt.Errorf("award badge %s: %w", slug, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *BadgeStore) ListEarned(userID int64) ([]model.EarnedBadge, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.slug, b.name, b.description, ub.earned_at
		 FROM user_badges ub JOIN badges b ON b.id = ub.badge_id
		 WHERE ub.user_id = ? ORDER BY ub.earned_at, b.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list earned badges: %w", err)
	}
	defer rows.Close()

	var out []model.EarnedBadge
	for rows.Next() {
		var eb model.EarnedBadge
		if err := rows.Scan(&eb.ID, &eb.Slug, &eb.Name, &eb.Description, &eb.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan earned badge: %w", err)
		}
		out = append(out, eb)
	}
	return out, rows.Err()
}

// EarnedSlugs returns the set of badge slugs the user holds.
func (s *BadgeStore) EarnedSlugs(userID int64) (map[string]bool, error) {
	earned, err := s.ListEarned(userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(earned))
	for _, eb := range earned {
		out[eb.Slug] = true
	}
	return out, nil
}
