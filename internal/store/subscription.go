package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tandem/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var stripeSubID sql.NullString
	var periodEnd sql.NullTime
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.StripeCustomerID, &stripeSubID, &sub.Status,
		&periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeSubID.Valid {
		sub.StripeSubscriptionID = &stripeSubID.String
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

const subscriptionCols = `id, user_id, stripe_customer_id, stripe_subscription_id, status, current_period_end, created_at, updated_at`

func (s *SubscriptionStore) get(where string, arg any) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE `+where+` = ?`, arg)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by %s: %w", where, err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByUserID(userID int64) (*model.Subscription, error) {
	return s.get("user_id", userID)
}

func (s *SubscriptionStore) GetByCustomerID(customerID string) (*model.Subscription, error) {
	return s.get("stripe_customer_id", customerID)
}

func (s *SubscriptionStore) GetByStripeID(stripeSubID string) (*model.Subscription, error) {
	return s.get("stripe_subscription_id", stripeSubID)
}

// SetCustomer records the Stripe customer for userID, creating the row if needed.
func (s *SubscriptionStore) SetCustomer(userID int64, customerID string) error {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (user_id, stripe_customer_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET stripe_customer_id = excluded.stripe_customer_id, updated_at = ?`,
		userID, customerID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return nil
}

// Activate links a Stripe subscription to userID.
func (s *SubscriptionStore) Activate(userID int64, customerID, stripeSubID, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET stripe_customer_id = excluded.stripe_customer_id,
		 stripe_subscription_id = excluded.stripe_subscription_id, status = excluded.status, updated_at = ?`,
		userID, customerID, stripeSubID, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) UpdateStatus(id int64, status string, periodEnd *time.Time) error {
	var end sql.NullTime
	if periodEnd != nil {
		end = sql.NullTime{Time: periodEnd.UTC(), Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE subscriptions SET status = ?, current_period_end = COALESCE(?, current_period_end), updated_at = ?
		 WHERE id = ?`,
		status, end, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

// IsPremium reports whether userID holds an active or trialing subscription.
func (s *SubscriptionStore) IsPremium(userID int64) (bool, error) {
	sub, err := s.GetByUserID(userID)
	if err != nil {
		return false, err
	}
	return sub.IsPremium(), nil
}
