package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecolearn-engine/internal/domain"
)

func TestUpdateUserVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.CreateUser(ctx, domain.User{ID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	user, _ := store.GetUser(ctx, "u1")
	user.XP = 50
	if err := store.UpdateUser(ctx, user, user.Version); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Stale writer still holds the old version.
	user.XP = 999
	if err := store.UpdateUser(ctx, user, 0); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}

	fresh, _ := store.GetUser(ctx, "u1")
	if fresh.XP != 50 || fresh.Version != 1 {
		t.Fatalf("stale write must not land, got %+v", fresh)
	}
}

func TestCreateUserRejectsExistingID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.CreateUser(ctx, domain.User{ID: "u1", Name: "Alice", XP: 70, TotalQuizzesCompleted: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := store.CreateUser(ctx, domain.User{ID: "u1", Name: "Impostor"})
	if !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("expected existing-id rejection, got %v", err)
	}

	user, _ := store.GetUser(ctx, "u1")
	if user.XP != 70 || user.TotalQuizzesCompleted != 1 || user.Name != "Alice" {
		t.Fatalf("duplicate create must not replace the record, got %+v", user)
	}
}

func TestInsertCompletionOneTimeGuard(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	completion := domain.ChallengeCompletion{
		ID: "c1", UserID: "u1", ChallengeID: "plastic-free-day",
		XPAwarded: 60, OneTime: true, CompletedAt: time.Now(),
	}
	if err := store.InsertCompletion(ctx, completion); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	completion.ID = "c2"
	if err := store.InsertCompletion(ctx, completion); !errors.Is(err, domain.ErrChallengeAlreadyCompleted) {
		t.Fatalf("second one-time insert must fail, got %v", err)
	}

	// Recurring completions are unconstrained.
	recurring := domain.ChallengeCompletion{ID: "c3", UserID: "u1", ChallengeID: "bike-to-school", CompletedAt: time.Now()}
	for _, id := range []string{"c3", "c4"} {
		recurring.ID = id
		if err := store.InsertCompletion(ctx, recurring); err != nil {
			t.Fatalf("recurring insert %s: %v", id, err)
		}
	}
}

func TestAddBadgeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.CreateUser(ctx, domain.User{ID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.AddBadge(ctx, "u1", "eco-starter"); err != nil {
			t.Fatalf("add badge: %v", err)
		}
	}
	user, _ := store.GetUser(ctx, "u1")
	if len(user.Badges) != 1 {
		t.Fatalf("expected one badge, got %v", user.Badges)
	}
}

func TestAwardWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	award := domain.BadgeAward{UserID: "u1", BadgeID: "quiz-master", EarnedAt: time.Now()}
	inserted, err := store.Award(ctx, award)
	if err != nil || !inserted {
		t.Fatalf("first award should insert, got (%v, %v)", inserted, err)
	}
	inserted, err = store.Award(ctx, award)
	if err != nil || inserted {
		t.Fatalf("second award must be a losing no-op, got (%v, %v)", inserted, err)
	}

	earned, _ := store.EarnedBadgeIDs(ctx, "u1")
	if _, ok := earned["quiz-master"]; !ok || len(earned) != 1 {
		t.Fatalf("unexpected earned set: %v", earned)
	}
}

func TestRecordAttemptRollingAverage(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutQuiz(domain.Quiz{ID: "quiz-1"})

	for _, pct := range []float64{100, 50, 75} {
		if err := store.RecordAttempt(ctx, "quiz-1", pct); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	quiz, err := store.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.TotalAttempts != 3 || quiz.AverageScore != 75 {
		t.Fatalf("expected 3 attempts avg 75, got %d/%v", quiz.TotalAttempts, quiz.AverageScore)
	}
}

func TestXPEarnedSinceSplitsSources(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	_ = store.InsertAttempt(ctx, domain.Attempt{ID: "a1", UserID: "u1", EarnedXP: 70, CreatedAt: now})
	_ = store.InsertAttempt(ctx, domain.Attempt{ID: "a2", UserID: "u1", EarnedXP: 30, CreatedAt: now.Add(-48 * time.Hour)})
	_ = store.InsertCompletion(ctx, domain.ChallengeCompletion{ID: "c1", UserID: "u1", XPAwarded: 60, CompletedAt: now})

	since := now.Add(-24 * time.Hour)
	fromAttempts, _ := store.XPEarnedSince(ctx, since)
	if fromAttempts["u1"] != 70 {
		t.Fatalf("attempt window xp = %d, want 70", fromAttempts["u1"])
	}
	fromCompletions, _ := store.Completions().XPEarnedSince(ctx, since)
	if fromCompletions["u1"] != 60 {
		t.Fatalf("completion window xp = %d, want 60", fromCompletions["u1"])
	}
}

func TestTopByXPOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = store.CreateUser(ctx, domain.User{ID: "late", XP: 100, CreatedAt: base.Add(time.Hour)})
	_ = store.CreateUser(ctx, domain.User{ID: "early", XP: 100, CreatedAt: base})
	_ = store.CreateUser(ctx, domain.User{ID: "top", XP: 300, CreatedAt: base})

	users, err := store.TopByXP(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(users) != 2 || users[0].ID != "top" || users[1].ID != "early" {
		t.Fatalf("expected [top early], got %+v", users)
	}
}
