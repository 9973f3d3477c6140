package store

import "testing"

func setupBadgeTestDB(t *testing.T) (*BadgeStore, int64) {
	t.Helper()
	db := openTestDB(t)
	u, err := NewUserStore(db).Create("alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewBadgeStore(db), u.ID
}

func TestBadgeListSeeded(t *testing.T) {
	bs, _ := setupBadgeTestDB(t)

	badges, err := bs.List()
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	slugs := map[string]bool{}
	for _, b := range badges {
		slugs[b.Slug] = true
	}
	for _, want := range []string{"first_step", "ten_actions", "fifty_actions", "week_streak", "survey_taken", "challenge_finisher", "holiday_spirit"} {
		if !slugs[want] {
			t.Errorf("missing badge %q", want)
		}
	}
}

func TestBadgeAwardIdempotent(t *testing.T) {
	bs, uid := setupBadgeTestDB(t)

	awarded, err := bs.Award(uid, "first_step")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !awarded {
		t.Error("first award should report true")
	}

	awarded, err = bs.Award(uid, "first_step")
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if awarded {
		t.Error("second award should report false")
	}

	earned, err := bs.ListEarned(uid)
	if err != nil {
		t.Fatalf("list earned: %v", err)
	}
	if len(earned) != 1 || earned[0].Slug != "first_step" {
		t.Errorf("earned = %+v", earned)
	}
}

func TestBadgeAwardUnknownSlug(t *testing.T) {
	bs, uid := setupBadgeTestDB(t)

	awarded, err := bs.Award(uid, "no_such_badge")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if awarded {
		t.Error("unknown slug should not be awarded")
	}

	slugs, err := bs.EarnedSlugs(uid)
	if err != nil {
		t.Fatalf("earned slugs: %v", err)
	}
	if len(slugs) != 0 {
		t.Errorf("slugs = %v, want none", slugs)
	}
}
