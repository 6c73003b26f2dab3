package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecolearn-engine/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserRepository is the persistence collaborator for the User aggregate.
// UpdateUser must apply optimistic concurrency: it fails with
// domain.ErrConflict when the stored version no longer matches
// expectedVersion, and bumps the version on success.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, user domain.User) error
	UpdateUser(ctx context.Context, user domain.User, expectedVersion int64) error
	AddBadge(ctx context.Context, userID, badgeID string) error
	TopByXP(ctx context.Context, limit int) ([]domain.User, error)
	GetUsers(ctx context.Context, ids []string) ([]domain.User, error)
	CountWithXPAbove(ctx context.Context, xp int) (int, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizStatsRecorder folds one submission into the quiz's aggregate
// statistics. Implementations must be atomic (single-statement merge).
type QuizStatsRecorder interface {
	RecordAttempt(ctx context.Context, quizID string, scorePercentage float64) error
}

// AttemptRepository persists immutable grading records.
type AttemptRepository interface {
	RewardHistory
	PerfectScoreChecker
	InsertAttempt(ctx context.Context, attempt domain.Attempt) error
	ListAttempts(ctx context.Context, userID string, limit int) ([]domain.Attempt, error)
}

// ChallengeRepository resolves challenge definitions and their counters.
type ChallengeRepository interface {
	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)
	IncrementCompletions(ctx context.Context, id string) error
}

// CompletionRepository persists challenge completion records.
type CompletionRepository interface {
	RewardHistory
	InsertCompletion(ctx context.Context, completion domain.ChallengeCompletion) error
	HasCompleted(ctx context.Context, userID, challengeID string) (bool, error)
}

// Retry policy for conflicting or transiently failing persistence calls.
const (
	maxConflictRetries = 3
	retryBaseDelay     = 25 * time.Millisecond
)

// QuizOutcome is everything a caller learns from one graded submission.
type QuizOutcome struct {
	AttemptID       string                  `json:"attemptId"`
	Score           int                     `json:"score"`
	TotalQuestions  int                     `json:"totalQuestions"`
	ScorePercentage float64                 `json:"scorePercentage"`
	BaseXP          int                     `json:"baseXp"`
	BonusXP         int                     `json:"bonusXp"`
	EarnedXP        int                     `json:"earnedXp"`
	NewXP           int                     `json:"newXp"`
	NewLevel        int                     `json:"newLevel"`
	LeveledUp       bool                    `json:"leveledUp"`
	LevelUpRewards  []LevelUpReward         `json:"levelUpRewards,omitempty"`
	QuestionResults []domain.QuestionResult `json:"questionResults"`
	NewBadges       []domain.Badge          `json:"newBadges,omitempty"`
}

// ChallengeOutcome reports a completed challenge and its credited rewards.
type ChallengeOutcome struct {
	ChallengeID    string          `json:"challengeId"`
	Title          string          `json:"title"`
	XPAwarded      int             `json:"xpAwarded"`
	PointsAwarded  int             `json:"pointsAwarded"`
	Multiplier     float64         `json:"multiplier"`
	NewXP          int             `json:"newXp"`
	NewLevel       int             `json:"newLevel"`
	LeveledUp      bool            `json:"leveledUp"`
	LevelUpRewards []LevelUpReward `json:"levelUpRewards,omitempty"`
	NewBadges      []domain.Badge  `json:"newBadges,omitempty"`
}

// Profile is the read-side view of a user with derived progress.
type Profile struct {
	User          domain.User   `json:"user"`
	LevelProgress LevelProgress `json:"levelProgress"`
}

// Engine sequences grade -> persist attempt -> update progression ->
// refresh leaderboard -> evaluate badges for the two event types. It holds
// no cross-request mutable state beyond the live-update subscriber set.
type Engine struct {
	users       UserRepository
	quizzes     QuizRepository
	quizStats   QuizStatsRecorder
	attempts    AttemptRepository
	challenges  ChallengeRepository
	completions CompletionRepository
	badges      *BadgeEvaluator
	leaderboard *Aggregator
	log         *zap.Logger
	now         func() time.Time
	newID       func() string

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewEngine(
	users UserRepository,
	quizzes QuizRepository,
	quizStats QuizStatsRecorder,
	attempts AttemptRepository,
	challenges ChallengeRepository,
	completions CompletionRepository,
	badges *BadgeEvaluator,
	leaderboard *Aggregator,
	log *zap.Logger,
) *Engine {
	return &Engine{
		users:       users,
		quizzes:     quizzes,
		quizStats:   quizStats,
		attempts:    attempts,
		challenges:  challenges,
		completions: completions,
		badges:      badges,
		leaderboard: leaderboard,
		log:         log,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// WithClock overrides the engine's clock; test-only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	if e.badges != nil {
		e.badges.WithClock(now)
	}
	if e.leaderboard != nil {
		e.leaderboard.WithClock(now)
	}
	return e
}

// RegisterUser creates a fresh progression record. The caller may supply an
// id (external identity) or leave it blank for a generated one.
func (e *Engine) RegisterUser(ctx context.Context, id, name, email string) (domain.User, error) {
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if id == "" {
		id = e.newID()
	}
	user := domain.User{
		ID:        id,
		Name:      name,
		Email:     email,
		Level:     1,
		Badges:    []string{},
		CreatedAt: e.now(),
	}
	if err := e.withRetry(ctx, func() error {
		return e.users.CreateUser(ctx, user)
	}); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GradeAndRecordQuiz grades a submission, records the immutable attempt, and
// applies progression under optimistic-concurrency retry. The attempt stands
// even if a later step fails; badge evaluation and leaderboard refresh are
// best-effort relative to the XP commit.
func (e *Engine) GradeAndRecordQuiz(ctx context.Context, userID, quizID string, answers map[string]int) (QuizOutcome, error) {
	if userID == "" || quizID == "" {
		return QuizOutcome{}, fmt.Errorf("%w: user id and quiz id are required", domain.ErrInvalidInput)
	}

	if _, err := e.users.GetUser(ctx, userID); err != nil {
		return QuizOutcome{}, err
	}
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizOutcome{}, err
	}

	result := GradeQuiz(quiz, answers)
	baseXP, bonusXP := QuizXP(result)

	attempt := domain.Attempt{
		ID:              e.newID(),
		UserID:          userID,
		QuizID:          quizID,
		QuizTitle:       quiz.Title,
		Answers:         answers,
		Score:           result.CorrectAnswers,
		TotalQuestions:  result.TotalQuestions,
		ScorePercentage: result.ScorePercentage,
		BaseXP:          baseXP,
		BonusXP:         bonusXP,
		EarnedXP:        baseXP + bonusXP,
		QuestionResults: result.QuestionResults,
		CreatedAt:       e.now(),
	}
	if err := e.withRetry(ctx, func() error {
		return e.attempts.InsertAttempt(ctx, attempt)
	}); err != nil {
		return QuizOutcome{}, fmt.Errorf("record attempt: %w", err)
	}

	// Aggregate quiz stats are advisory; a failed merge never fails the event.
	if err := e.quizStats.RecordAttempt(ctx, quizID, result.ScorePercentage); err != nil {
		e.log.Warn("quiz stats update failed", zap.String("quizId", quizID), zap.Error(err))
	}

	delta, err := e.applyProgression(ctx, userID, func(user domain.User) UserDelta {
		return ApplyQuizResult(user, result, baseXP, bonusXP, e.now())
	})
	if err != nil {
		// The attempt is committed history; surface the error so the caller
		// can retry just the progression step.
		return QuizOutcome{}, fmt.Errorf("apply quiz progression: %w", err)
	}

	outcome := QuizOutcome{
		AttemptID:       attempt.ID,
		Score:           result.CorrectAnswers,
		TotalQuestions:  result.TotalQuestions,
		ScorePercentage: result.ScorePercentage,
		BaseXP:          baseXP,
		BonusXP:         bonusXP,
		EarnedXP:        baseXP + bonusXP,
		NewXP:           delta.User.XP,
		NewLevel:        delta.User.Level,
		LeveledUp:       delta.LeveledUp,
		LevelUpRewards:  delta.LevelUpRewards,
		QuestionResults: result.QuestionResults,
	}
	outcome.NewBadges = e.afterProgression(ctx, userID)
	return outcome, nil
}

// CompleteChallenge validates the one-time invariant before any reward
// computation, records the completion, and applies progression.
func (e *Engine) CompleteChallenge(ctx context.Context, userID, challengeID, proof string) (ChallengeOutcome, error) {
	if userID == "" || challengeID == "" {
		return ChallengeOutcome{}, fmt.Errorf("%w: user id and challenge id are required", domain.ErrInvalidInput)
	}

	if _, err := e.users.GetUser(ctx, userID); err != nil {
		return ChallengeOutcome{}, err
	}
	challenge, err := e.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return ChallengeOutcome{}, err
	}

	if challenge.Type != domain.ChallengeRecurring {
		done, err := e.completions.HasCompleted(ctx, userID, challengeID)
		if err != nil {
			return ChallengeOutcome{}, fmt.Errorf("check prior completion: %w", err)
		}
		if done {
			return ChallengeOutcome{}, domain.ErrChallengeAlreadyCompleted
		}
	}

	xp, points, multiplier := ChallengeReward(challenge)
	completion := domain.ChallengeCompletion{
		ID:            e.newID(),
		UserID:        userID,
		ChallengeID:   challengeID,
		Title:         challenge.Title,
		Category:      challenge.Category,
		XPAwarded:     xp,
		PointsAwarded: points,
		Proof:         proof,
		OneTime:       challenge.Type != domain.ChallengeRecurring,
		CompletedAt:   e.now(),
	}
	if err := e.withRetry(ctx, func() error {
		return e.completions.InsertCompletion(ctx, completion)
	}); err != nil {
		return ChallengeOutcome{}, fmt.Errorf("record completion: %w", err)
	}

	if err := e.challenges.IncrementCompletions(ctx, challengeID); err != nil {
		e.log.Warn("challenge counter update failed", zap.String("challengeId", challengeID), zap.Error(err))
	}

	delta, err := e.applyProgression(ctx, userID, func(user domain.User) UserDelta {
		return ApplyChallengeResult(user, xp, points, e.now())
	})
	if err != nil {
		return ChallengeOutcome{}, fmt.Errorf("apply challenge progression: %w", err)
	}

	outcome := ChallengeOutcome{
		ChallengeID:    challengeID,
		Title:          challenge.Title,
		XPAwarded:      xp,
		PointsAwarded:  points,
		Multiplier:     multiplier,
		NewXP:          delta.User.XP,
		NewLevel:       delta.User.Level,
		LeveledUp:      delta.LeveledUp,
		LevelUpRewards: delta.LevelUpRewards,
	}
	outcome.NewBadges = e.afterProgression(ctx, userID)
	return outcome, nil
}

// CheckBadges evaluates all badge criteria for the user right now.
func (e *Engine) CheckBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	return e.badges.CheckEligibility(ctx, userID)
}

// GetLeaderboard answers ranking queries, including the requesting user's
// rank when they fall outside the returned page.
func (e *Engine) GetLeaderboard(ctx context.Context, scope domain.Scope, period domain.Period, limit int, requestingUserID string) (domain.Leaderboard, error) {
	return e.leaderboard.GetRanking(ctx, scope, period, limit, requestingUserID)
}

// GetProfile returns the user with derived level progress, opportunistically
// refreshing a stale streak the same way reward events do.
func (e *Engine) GetProfile(ctx context.Context, userID string) (Profile, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	streak := UpdateStreak(user.LastActiveDate, user.CurrentStreakDays, user.LongestStreakDays, e.now())
	if streak.Changed && user.LastActiveDate != nil && streak.CurrentStreakDays < user.CurrentStreakDays {
		// Streak lapsed since the last reward event; persist the reset so the
		// profile and badge checks see consistent state. Best-effort.
		user.CurrentStreakDays = streak.CurrentStreakDays
		user.LongestStreakDays = streak.LongestStreakDays
		if err := e.users.UpdateUser(ctx, user, user.Version); err != nil {
			e.log.Warn("streak refresh failed", zap.String("userId", userID), zap.Error(err))
		}
	}

	return Profile{User: user, LevelProgress: ProgressForXP(user.XP)}, nil
}

// ListAttempts returns the user's attempt history, newest first.
func (e *Engine) ListAttempts(ctx context.Context, userID string, limit int) ([]domain.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.attempts.ListAttempts(ctx, userID, limit)
}

// applyProgression runs the read-compute-write cycle for a user delta under
// optimistic concurrency: on version conflict the whole delta is recomputed
// from a fresh read, up to maxConflictRetries times.
func (e *Engine) applyProgression(ctx context.Context, userID string, compute func(domain.User) UserDelta) (UserDelta, error) {
	var delta UserDelta
	for attempt := 0; ; attempt++ {
		user, err := e.users.GetUser(ctx, userID)
		if err != nil {
			return UserDelta{}, err
		}

		delta = compute(user)
		err = e.users.UpdateUser(ctx, delta.User, user.Version)
		if err == nil {
			return delta, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= maxConflictRetries {
			return UserDelta{}, err
		}
		if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
			return UserDelta{}, err
		}
	}
}

// afterProgression runs the eventually-consistent tail of an event: badge
// evaluation and the live leaderboard broadcast. Failures are warnings.
func (e *Engine) afterProgression(ctx context.Context, userID string) []domain.Badge {
	newBadges, err := e.badges.CheckEligibility(ctx, userID)
	if err != nil {
		e.log.Warn("badge evaluation failed", zap.String("userId", userID), zap.Error(err))
	}
	e.broadcastLeaderboard(ctx)
	return newBadges
}

// withRetry retries transient dependency failures with backoff; anything
// else surfaces immediately.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
		if attempt < maxConflictRetries {
			if serr := sleepCtx(ctx, backoffDelay(attempt)); serr != nil {
				return serr
			}
		}
	}
	return err
}

func backoffDelay(attempt int) time.Duration {
	return retryBaseDelay << uint(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SubscribeLeaderboard returns a channel receiving fresh global top pages
// after each committed progression update. The caller must invoke cancel.
func (e *Engine) SubscribeLeaderboard(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := e.leaderboard.GetRanking(ctx, domain.ScopeGlobal, domain.PeriodAll, broadcastPageSize, "")
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	ch <- initial

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel, nil
}

const broadcastPageSize = 10

func (e *Engine) broadcastLeaderboard(ctx context.Context) {
	e.mu.Lock()
	n := len(e.subscribers)
	e.mu.Unlock()
	if n == 0 {
		return
	}

	lb, err := e.leaderboard.GetRanking(ctx, domain.ScopeGlobal, domain.PeriodAll, broadcastPageSize, "")
	if err != nil {
		e.log.Warn("leaderboard broadcast refresh failed", zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale update so a slow client never blocks the event path.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
