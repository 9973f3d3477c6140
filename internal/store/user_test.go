package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/tandem/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(openTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "Alice", "CA")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Country != "CA" {
		t.Errorf("country = %q, want CA", u.Country)
	}
	if u.ReminderHour != 9 {
		t.Errorf("reminder_hour = %d, want 9", u.ReminderHour)
	}
	if u.PartnerID != nil || u.SurveyCompleted {
		t.Errorf("new user should have no partner and no survey: %+v", u)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("alice@example.com", "Alice2", ""); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserGetNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}

	u, err = us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent email")
	}
}

func TestUserUpdateProfile(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("alice@example.com", "Alice", "")
	updated, err := us.UpdateProfile(created.ID, "Alice B", "US", 20)
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Alice B" || updated.Country != "US" || updated.ReminderHour != 20 {
		t.Errorf("profile = %+v", updated)
	}
}

func TestUserMarkSurveyCompleted(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("alice@example.com", "Alice", "")
	if err := us.MarkSurveyCompleted(created.ID); err != nil {
		t.Fatalf("mark survey completed: %v", err)
	}
	u, _ := us.GetByID(created.ID)
	if !u.SurveyCompleted {
		t.Error("expected survey_completed")
	}
}

func TestUserPartners(t *testing.T) {
	us := setupUserTestDB(t)

	a, _ := us.Create("alice@example.com", "Alice", "")
	b, _ := us.Create("bob@example.com", "Bob", "")

	if err := us.LinkPartners(a.ID, b.ID); err != nil {
		t.Fatalf("link partners: %v", err)
	}
	a, _ = us.GetByID(a.ID)
	b, _ = us.GetByID(b.ID)
	if a.PartnerID == nil || *a.PartnerID != b.ID {
		t.Errorf("alice partner = %v, want %d", a.PartnerID, b.ID)
	}
	if b.PartnerID == nil || *b.PartnerID != a.ID {
		t.Errorf("bob partner = %v, want %d", b.PartnerID, a.ID)
	}
	if got := a.Audience(); len(got) != 2 {
		t.Errorf("audience = %v, want both users", got)
	}

	if err := us.Unlink(b.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	a, _ = us.GetByID(a.ID)
	b, _ = us.GetByID(b.ID)
	if a.PartnerID != nil || b.PartnerID != nil {
		t.Errorf("expected both partners cleared, got %v and %v", a.PartnerID, b.PartnerID)
	}
}

func TestUserListByReminderHour(t *testing.T) {
	us := setupUserTestDB(t)

	a, _ := us.Create("alice@example.com", "Alice", "")
	b, _ := us.Create("bob@example.com", "Bob", "")
	us.UpdateProfile(b.ID, "Bob", "", 18)

	users, err := us.ListByReminderHour(9)
	if err != nil {
		t.Fatalf("list by reminder hour: %v", err)
	}
	if len(users) != 1 || users[0].ID != a.ID {
		t.Errorf("users = %+v, want only alice", users)
	}
}

func TestUserDelete(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("alice@example.com", "Alice", "")
	if err := us.Delete(created.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	u, err := us.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if u != nil {
		t.Error("expected nil after delete")
	}
}
