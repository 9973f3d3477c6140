package store

import (
	"testing"
	"time"

	"github.com/dukerupert/tandem/internal/model"
)

func setupSubscriptionTestDB(t *testing.T) (*SubscriptionStore, int64) {
	t.Helper()
	db := openTestDB(t)
	u, err := NewUserStore(db).Create("alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewSubscriptionStore(db), u.ID
}

func TestSubscriptionLifecycle(t *testing.T) {
	ss, uid := setupSubscriptionTestDB(t)

	if premium, err := ss.IsPremium(uid); err != nil || premium {
		t.Fatalf("premium = %v, err = %v; want false before checkout", premium, err)
	}

	if err := ss.SetCustomer(uid, "cus_123"); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	sub, err := ss.GetByCustomerID("cus_123")
	if err != nil || sub == nil {
		t.Fatalf("get by customer: %v, %v", sub, err)
	}
	if sub.Status != model.SubscriptionNone {
		t.Errorf("status = %q, want none", sub.Status)
	}

	if err := ss.Activate(uid, "cus_123", "sub_456", model.SubscriptionActive); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if premium, _ := ss.IsPremium(uid); !premium {
		t.Error("expected premium after activation")
	}

	sub, _ = ss.GetByStripeID("sub_456")
	end := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := ss.UpdateStatus(sub.ID, model.SubscriptionCanceled, &end); err != nil {
		t.Fatalf("update status: %v", err)
	}
	sub, _ = ss.GetByUserID(uid)
	if sub.Status != model.SubscriptionCanceled {
		t.Errorf("status = %q, want canceled", sub.Status)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(end) {
		t.Errorf("period end = %v, want %v", sub.CurrentPeriodEnd, end)
	}
	if premium, _ := ss.IsPremium(uid); premium {
		t.Error("canceled subscription should not be premium")
	}
}
