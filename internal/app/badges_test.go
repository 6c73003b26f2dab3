package app_test

import (
	"context"
	"testing"
	"time"

	"ecolearn-engine/internal/app"
	"ecolearn-engine/internal/domain"
	"ecolearn-engine/internal/infra/memory"
	"go.uber.org/zap"
)

func newBadgeFixture(t *testing.T, user domain.User, badges ...domain.Badge) (*memory.Store, *app.BadgeEvaluator) {
	t.Helper()
	store := memory.NewStore()
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, b := range badges {
		store.PutBadge(b)
	}
	evaluator := app.NewBadgeEvaluator(store, store, store, store, zap.NewNop())
	evaluator.WithClock(func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return store, evaluator
}

func TestCheckEligibilityAwardsOnce(t *testing.T) {
	ctx := context.Background()
	_, evaluator := newBadgeFixture(t,
		domain.User{ID: "u1", XP: 600, Level: 3},
		domain.Badge{ID: "eco-champion", Name: "Eco Champion", Criteria: domain.Criteria{
			Kind: domain.CriteriaXPThreshold, XPRequired: 500,
		}},
	)

	earned, err := evaluator.CheckEligibility(ctx, "u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(earned) != 1 || earned[0].ID != "eco-champion" {
		t.Fatalf("expected eco-champion, got %+v", earned)
	}

	again, err := evaluator.CheckEligibility(ctx, "u1")
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second check must award nothing, got %+v", again)
	}
}

func TestCheckEligibilityAppendsToUserBadgeSet(t *testing.T) {
	ctx := context.Background()
	store, evaluator := newBadgeFixture(t,
		domain.User{ID: "u1", Level: 3},
		domain.Badge{ID: "energy-saver", Criteria: domain.Criteria{
			Kind: domain.CriteriaLevelThreshold, LevelRequired: 3,
		}},
	)

	if _, err := evaluator.CheckEligibility(ctx, "u1"); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	user, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.HasBadge("energy-saver") {
		t.Fatalf("badge not appended to user set: %+v", user.Badges)
	}
}

func TestCheckEligibilityUnknownKindFailsClosed(t *testing.T) {
	ctx := context.Background()
	_, evaluator := newBadgeFixture(t,
		domain.User{ID: "u1", XP: 99999, Level: 50},
		domain.Badge{ID: "social-star", Criteria: domain.Criteria{Kind: "social_engagement"}},
	)

	earned, err := evaluator.CheckEligibility(ctx, "u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(earned) != 0 {
		t.Fatalf("unknown criteria kind must never award, got %+v", earned)
	}
}

func TestCheckEligibilityPerfectScore(t *testing.T) {
	ctx := context.Background()
	store, evaluator := newBadgeFixture(t,
		domain.User{ID: "u1"},
		domain.Badge{ID: "quiz-master", Criteria: domain.Criteria{Kind: domain.CriteriaPerfectScore}},
	)

	earned, err := evaluator.CheckEligibility(ctx, "u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(earned) != 0 {
		t.Fatalf("no perfect attempt yet, got %+v", earned)
	}

	// 99.99 must not count; the predicate is exact.
	if err := store.InsertAttempt(ctx, domain.Attempt{ID: "a1", UserID: "u1", ScorePercentage: 99.99}); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	earned, _ = evaluator.CheckEligibility(ctx, "u1")
	if len(earned) != 0 {
		t.Fatalf("99.99%% is not a perfect score, got %+v", earned)
	}

	if err := store.InsertAttempt(ctx, domain.Attempt{ID: "a2", UserID: "u1", ScorePercentage: 100.0}); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	earned, _ = evaluator.CheckEligibility(ctx, "u1")
	if len(earned) != 1 || earned[0].ID != "quiz-master" {
		t.Fatalf("expected quiz-master after a 100%% attempt, got %+v", earned)
	}
}

func TestCheckEligibilityTimeBased(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) // 37 days before the fixed clock
	_, evaluator := newBadgeFixture(t,
		domain.User{ID: "u1", CreatedAt: created},
		domain.Badge{ID: "early-adopter", Criteria: domain.Criteria{
			Kind: domain.CriteriaTimeBased, AccountAgeDays: 30,
		}},
	)

	earned, err := evaluator.CheckEligibility(ctx, "u1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(earned) != 1 || earned[0].ID != "early-adopter" {
		t.Fatalf("expected early-adopter for a 37-day-old account, got %+v", earned)
	}
}
