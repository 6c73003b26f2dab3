package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecolearn-engine/internal/app"
	"ecolearn-engine/internal/domain"
	"ecolearn-engine/internal/infra/memory"
	"go.uber.org/zap"
)

type engineFixture struct {
	engine *app.Engine
	store  *memory.Store
	now    time.Time
	mu     sync.Mutex
}

func (f *engineFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *engineFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store: memory.NewStore(),
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.engine = newEngineOver(f.store, f.store, f.clock)

	f.store.PutQuiz(fiveQuestionQuiz())
	f.store.PutChallenge(domain.Challenge{
		ID: "plastic-free-day", Title: "Plastic-Free Day",
		Difficulty: "medium", Type: domain.ChallengeOneTime,
		XPReward: 50, PointsReward: 25,
	})
	f.store.PutChallenge(domain.Challenge{
		ID: "bike-to-school", Title: "Bike to School",
		Difficulty: "easy", Type: domain.ChallengeRecurring,
		XPReward: 30, PointsReward: 15,
	})
	f.store.PutBadge(domain.Badge{ID: "eco-starter", Name: "Eco Starter", Criteria: domain.Criteria{
		Kind: domain.CriteriaQuizCompletion, QuizzesRequired: 1,
	}})
	f.store.PutBadge(domain.Badge{ID: "quiz-master", Name: "Quiz Master", Criteria: domain.Criteria{
		Kind: domain.CriteriaPerfectScore,
	}})

	if err := f.store.CreateUser(context.Background(), domain.User{
		ID: "u1", Name: "Alice", Level: 1, CreatedAt: f.now.Add(-40 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return f
}

// newEngineOver wires an engine where users may be a decorated repository.
func newEngineOver(users app.UserRepository, store *memory.Store, clock func() time.Time) *app.Engine {
	logger := zap.NewNop()
	badges := app.NewBadgeEvaluator(users, store, store, store, logger)
	leaderboard := app.NewAggregator(users, store, store.Completions(), nil, logger)
	engine := app.NewEngine(users, store, store, store, store, store, badges, leaderboard, logger)
	return engine.WithClock(clock)
}

func TestGradeAndRecordQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	outcome, err := f.engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if outcome.BaseXP != 50 || outcome.BonusXP != 20 || outcome.NewXP != 70 {
		t.Fatalf("expected 50+20=70 xp, got %+v", outcome)
	}
	if outcome.NewLevel != 1 || outcome.LeveledUp {
		t.Fatalf("70 xp stays level 1, got %+v", outcome)
	}
	badgeIDs := make(map[string]bool)
	for _, b := range outcome.NewBadges {
		badgeIDs[b.ID] = true
	}
	if !badgeIDs["eco-starter"] || !badgeIDs["quiz-master"] {
		t.Fatalf("expected eco-starter and quiz-master, got %+v", outcome.NewBadges)
	}

	f.advance(24 * time.Hour)
	outcome, err = f.engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers())
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if outcome.NewXP != 140 || outcome.NewLevel != 2 || !outcome.LeveledUp {
		t.Fatalf("expected 140 xp and level 2, got %+v", outcome)
	}
	if len(outcome.NewBadges) != 0 {
		t.Fatalf("badges are earned once, got %+v", outcome.NewBadges)
	}

	user, err := f.store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.TotalQuizzesCompleted != 2 || user.CurrentStreakDays != 2 {
		t.Fatalf("expected 2 quizzes and a 2-day streak, got %+v", user)
	}

	attempts, err := f.engine.ListAttempts(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 || attempts[0].CreatedAt.Before(attempts[1].CreatedAt) {
		t.Fatalf("expected 2 attempts newest first, got %+v", attempts)
	}
}

func TestGradeAndRecordQuizValidation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	if _, err := f.engine.GradeAndRecordQuiz(ctx, "", "quiz-1", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.engine.GradeAndRecordQuiz(ctx, "ghost", "quiz-1", nil); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := f.engine.GradeAndRecordQuiz(ctx, "u1", "ghost", nil); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestCompleteChallengeOneTime(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	outcome, err := f.engine.CompleteChallenge(ctx, "u1", "plastic-free-day", "photo.jpg")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if outcome.XPAwarded != 60 || outcome.PointsAwarded != 30 || outcome.Multiplier != 1.2 {
		t.Fatalf("medium 50/25 should pay 60/30, got %+v", outcome)
	}

	_, err = f.engine.CompleteChallenge(ctx, "u1", "plastic-free-day", "")
	if !errors.Is(err, domain.ErrChallengeAlreadyCompleted) {
		t.Fatalf("one-time repeat must fail, got %v", err)
	}

	// Recurring challenges pay every time.
	for i := 0; i < 2; i++ {
		if _, err := f.engine.CompleteChallenge(ctx, "u1", "bike-to-school", ""); err != nil {
			t.Fatalf("recurring completion %d failed: %v", i, err)
		}
	}

	user, _ := f.store.GetUser(ctx, "u1")
	if user.TotalChallengesCompleted != 3 {
		t.Fatalf("expected 3 completions, got %d", user.TotalChallengesCompleted)
	}
}

// conflictingUsers forces version conflicts on the first n update attempts.
type conflictingUsers struct {
	*memory.Store
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingUsers) UpdateUser(ctx context.Context, user domain.User, expectedVersion int64) error {
	c.mu.Lock()
	remaining := c.conflicts
	if remaining > 0 {
		c.conflicts--
	}
	c.mu.Unlock()
	if remaining > 0 {
		return domain.ErrConflict
	}
	return c.Store.UpdateUser(ctx, user, expectedVersion)
}

func TestProgressionRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := &conflictingUsers{Store: store, conflicts: 2}
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	engine := newEngineOver(users, store, func() time.Time { return now })

	store.PutQuiz(fiveQuestionQuiz())
	if err := store.CreateUser(ctx, domain.User{ID: "u1", Level: 1, CreatedAt: now}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	outcome, err := engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers())
	if err != nil {
		t.Fatalf("expected retry to recover from conflicts: %v", err)
	}
	if outcome.NewXP != 70 {
		t.Fatalf("expected 70 xp after retries, got %+v", outcome)
	}
}

func TestGetProfileRefreshesLapsedStreak(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	// Build a 2-day streak, then let it lapse.
	if _, err := f.engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	f.advance(24 * time.Hour)
	if _, err := f.engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	f.advance(3 * 24 * time.Hour)
	profile, err := f.engine.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if profile.User.CurrentStreakDays != 1 || profile.User.LongestStreakDays != 2 {
		t.Fatalf("lapsed streak should read as reset with longest kept, got %+v", profile.User)
	}
	if profile.LevelProgress.CurrentLevel != profile.User.Level {
		t.Fatalf("progress level mismatch: %+v", profile.LevelProgress)
	}
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	user, err := f.engine.RegisterUser(ctx, "", "Bob", "bob@example.org")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == "" || user.Level != 1 {
		t.Fatalf("expected generated id and level 1, got %+v", user)
	}

	if _, err := f.engine.RegisterUser(ctx, "", "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty name, got %v", err)
	}
}

func TestRegisterUserExistingIDKeepsProgression(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	if _, err := f.engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := f.engine.RegisterUser(ctx, "u1", "Impostor", ""); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("expected existing-id rejection, got %v", err)
	}

	user, err := f.store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.XP != 70 || user.TotalQuizzesCompleted != 1 {
		t.Fatalf("progression must survive a duplicate registration, got xp=%d quizzes=%d", user.XP, user.TotalQuizzesCompleted)
	}
	if user.Name != "Alice" {
		t.Fatalf("existing record must keep its identity, got %q", user.Name)
	}
}

func TestSubscribeLeaderboardReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	updates, cancel, err := f.engine.SubscribeLeaderboard(ctx)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	<-updates // initial snapshot

	if _, err := f.engine.GradeAndRecordQuiz(ctx, "u1", "quiz-1", perfectAnswers()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	select {
	case lb := <-updates:
		if len(lb.Entries) == 0 || lb.Entries[0].UserID != "u1" || lb.Entries[0].XP != 70 {
			t.Fatalf("expected u1 leading with 70 xp, got %+v", lb.Entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no leaderboard update received")
	}
}
