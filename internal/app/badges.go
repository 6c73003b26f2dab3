package app

import (
	"context"
	"fmt"
	"time"

	"ecolearn-engine/internal/domain"
	"go.uber.org/zap"
)

// BadgeRepository lists the immutable badge definition set.
type BadgeRepository interface {
	ListBadges(ctx context.Context) ([]domain.Badge, error)
}

// BadgeAwardRepository persists write-once (user, badge) awards.
// Award must be conflict-free: it returns false without error when the pair
// already exists, so concurrent evaluations cannot double-award.
type BadgeAwardRepository interface {
	Award(ctx context.Context, award domain.BadgeAward) (bool, error)
	EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error)
}

// PerfectScoreChecker answers whether a user ever hit exactly 100% on a quiz.
type PerfectScoreChecker interface {
	HasPerfectScore(ctx context.Context, userID string) (bool, error)
}

// BadgeEvaluator checks criteria predicates against current user state and
// awards newly-eligible badges. Idempotent: re-running after an award is a
// no-op for that badge.
type BadgeEvaluator struct {
	users    UserRepository
	badges   BadgeRepository
	awards   BadgeAwardRepository
	attempts PerfectScoreChecker
	log      *zap.Logger
	now      func() time.Time
}

func NewBadgeEvaluator(users UserRepository, badges BadgeRepository, awards BadgeAwardRepository, attempts PerfectScoreChecker, log *zap.Logger) *BadgeEvaluator {
	return &BadgeEvaluator{
		users:    users,
		badges:   badges,
		awards:   awards,
		attempts: attempts,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the evaluator's clock; test-only.
func (e *BadgeEvaluator) WithClock(now func() time.Time) *BadgeEvaluator {
	e.now = now
	return e
}

// CheckEligibility evaluates every not-yet-earned badge for the user and
// awards those whose criteria hold, returning the newly-earned set.
func (e *BadgeEvaluator) CheckEligibility(ctx context.Context, userID string) ([]domain.Badge, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	earned, err := e.awards.EarnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load earned badges: %w", err)
	}

	all, err := e.badges.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}

	var newlyEarned []domain.Badge
	for _, badge := range all {
		if _, ok := earned[badge.ID]; ok {
			continue
		}
		eligible, err := e.eligible(ctx, user, badge)
		if err != nil {
			e.log.Warn("badge criteria check failed",
				zap.String("userId", userID),
				zap.String("badgeId", badge.ID),
				zap.Error(err))
			continue
		}
		if !eligible {
			continue
		}
		awarded, err := e.awardBadge(ctx, userID, badge.ID)
		if err != nil {
			return newlyEarned, err
		}
		if awarded {
			newlyEarned = append(newlyEarned, badge)
		}
	}
	return newlyEarned, nil
}

// eligible dispatches on the criteria kind. Unknown kinds are never awarded.
func (e *BadgeEvaluator) eligible(ctx context.Context, user domain.User, badge domain.Badge) (bool, error) {
	c := badge.Criteria
	switch c.Kind {
	case domain.CriteriaXPThreshold:
		return user.XP >= c.XPRequired, nil
	case domain.CriteriaLevelThreshold:
		return user.Level >= c.LevelRequired, nil
	case domain.CriteriaQuizCompletion:
		return user.TotalQuizzesCompleted >= c.QuizzesRequired, nil
	case domain.CriteriaPerfectScore:
		return e.attempts.HasPerfectScore(ctx, user.ID)
	case domain.CriteriaChallengeCompletion:
		return user.TotalChallengesCompleted >= c.ChallengesRequired, nil
	case domain.CriteriaStreak:
		return user.CurrentStreakDays >= c.StreakDaysRequired, nil
	case domain.CriteriaTimeBased:
		age := int(e.now().Sub(user.CreatedAt).Hours() / 24)
		return age >= c.AccountAgeDays, nil
	}
	return false, nil
}

// awardBadge is the only mutator. The awards table insert is the uniqueness
// guard; the user badge-set append runs only after a winning insert and is
// itself idempotent.
func (e *BadgeEvaluator) awardBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	inserted, err := e.awards.Award(ctx, domain.BadgeAward{
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: e.now(),
	})
	if err != nil {
		return false, fmt.Errorf("award badge %s: %w", badgeID, err)
	}
	if !inserted {
		// Lost the race to a concurrent evaluation; not an error.
		return false, nil
	}
	if err := e.users.AddBadge(ctx, userID, badgeID); err != nil {
		return false, fmt.Errorf("append badge %s to user: %w", badgeID, err)
	}
	e.log.Info("badge awarded", zap.String("userId", userID), zap.String("badgeId", badgeID))
	return true, nil
}
