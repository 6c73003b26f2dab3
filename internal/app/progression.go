package app

import (
	"fmt"
	"math"
	"time"

	"ecolearn-engine/internal/domain"
)

const (
	levelMilestoneInterval = 5
	levelMilestoneBonusXP  = 50
	veteranBadgeLevel      = 10
	// VeteranBadgeID is the fixed badge granted on crossing level 10.
	VeteranBadgeID = "eco-veteran"
)

// LevelFromXP derives the progression level: floor(sqrt(xp/100)) + 1, with a
// floor of level 1 for non-positive XP. Monotonic non-decreasing in xp.
func LevelFromXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}

// XPForLevel is the inverse threshold: the minimum XP at which the level is
// reached. LevelFromXP(XPForLevel(l)) == l for every l >= 1.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return (level - 1) * (level - 1) * 100
}

// LevelProgress is the profile view of where a user sits inside their level.
type LevelProgress struct {
	CurrentLevel       int     `json:"currentLevel"`
	CurrentXP          int     `json:"currentXp"`
	XPForCurrentLevel  int     `json:"xpForCurrentLevel"`
	XPForNextLevel     int     `json:"xpForNextLevel"`
	XPInLevel          int     `json:"xpInLevel"`
	XPNeededForNext    int     `json:"xpNeededForNext"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

// ProgressForXP computes the level progress view for an XP total.
func ProgressForXP(xp int) LevelProgress {
	level := LevelFromXP(xp)
	floor := XPForLevel(level)
	ceil := XPForLevel(level + 1)
	pct := float64(xp-floor) / float64(ceil-floor) * 100
	if pct > 100 {
		pct = 100
	}
	return LevelProgress{
		CurrentLevel:       level,
		CurrentXP:          xp,
		XPForCurrentLevel:  floor,
		XPForNextLevel:     ceil,
		XPInLevel:          xp - floor,
		XPNeededForNext:    ceil - xp,
		ProgressPercentage: pct,
	}
}

// LevelUpReward is one reward event produced by crossing a level threshold.
type LevelUpReward struct {
	Type    string `json:"type"` // "bonus_xp" or "badge"
	Amount  int    `json:"amount,omitempty"`
	BadgeID string `json:"badgeId,omitempty"`
	Reason  string `json:"reason"`
}

// LevelUpRewards resolves the reward events for every level crossed in
// (oldLevel, newLevel]. Multi-level jumps visit every intermediate level.
func LevelUpRewards(oldLevel, newLevel int) []LevelUpReward {
	var rewards []LevelUpReward
	for level := oldLevel + 1; level <= newLevel; level++ {
		if level%levelMilestoneInterval == 0 {
			rewards = append(rewards, LevelUpReward{
				Type:   "bonus_xp",
				Amount: levelMilestoneBonusXP,
				Reason: levelReason(level, "milestone bonus"),
			})
		}
		if level == veteranBadgeLevel {
			rewards = append(rewards, LevelUpReward{
				Type:    "badge",
				BadgeID: VeteranBadgeID,
				Reason:  levelReason(level, "reached"),
			})
		}
	}
	return rewards
}

func levelReason(level int, suffix string) string {
	return fmt.Sprintf("level %d %s", level, suffix)
}

// StreakUpdate is the outcome of applying a day of activity to a streak.
type StreakUpdate struct {
	CurrentStreakDays int
	LongestStreakDays int
	Changed           bool
}

// UpdateStreak applies "today" to a streak as a pure function of the last
// active date. Same-day repeats are no-ops, a one-day gap extends the streak,
// anything longer resets it to 1. Safe to call both on profile reads and on
// reward events without double-incrementing within a day.
func UpdateStreak(lastActive *time.Time, current, longest int, today time.Time) StreakUpdate {
	if lastActive == nil {
		return StreakUpdate{
			CurrentStreakDays: 1,
			LongestStreakDays: maxInt(longest, 1),
			Changed:           true,
		}
	}

	gap := daysBetween(*lastActive, today)
	switch {
	case gap == 0:
		return StreakUpdate{CurrentStreakDays: current, LongestStreakDays: longest, Changed: false}
	case gap == 1:
		next := current + 1
		return StreakUpdate{
			CurrentStreakDays: next,
			LongestStreakDays: maxInt(longest, next),
			Changed:           true,
		}
	default:
		return StreakUpdate{CurrentStreakDays: 1, LongestStreakDays: longest, Changed: true}
	}
}

// daysBetween counts whole calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// UserDelta is the full state change one reward event produces for a user.
// The embedded User is the post-update copy; callers persist it with the
// version the computation was based on.
type UserDelta struct {
	User           domain.User
	XPGained       int
	PointsGained   int
	OldLevel       int
	NewLevel       int
	LeveledUp      bool
	LevelUpRewards []LevelUpReward
	Streak         StreakUpdate
}

// ApplyQuizResult folds a graded quiz into a copy of the user record:
// XP, recomputed level, points from correct answers, quiz counter, streak,
// and level-up rewards. Pure; persistence is the caller's concern.
func ApplyQuizResult(user domain.User, result GradingResult, baseXP, bonusXP int, now time.Time) UserDelta {
	gained := baseXP + bonusXP
	return applyReward(user, gained, result.CorrectAnswers, now, func(u *domain.User) {
		u.TotalQuizzesCompleted++
	})
}

// ApplyChallengeResult folds a challenge completion into a copy of the user
// record. Points come straight from the computed reward, not from a score.
func ApplyChallengeResult(user domain.User, xpAwarded, pointsAwarded int, now time.Time) UserDelta {
	return applyReward(user, xpAwarded, pointsAwarded, now, func(u *domain.User) {
		u.TotalChallengesCompleted++
	})
}

func applyReward(user domain.User, xpGained, pointsGained int, now time.Time, bump func(*domain.User)) UserDelta {
	oldLevel := LevelFromXP(user.XP)

	user.XP += xpGained
	user.Level = LevelFromXP(user.XP)
	user.Points += pointsGained
	bump(&user)

	streak := UpdateStreak(user.LastActiveDate, user.CurrentStreakDays, user.LongestStreakDays, now)
	user.CurrentStreakDays = streak.CurrentStreakDays
	user.LongestStreakDays = streak.LongestStreakDays
	active := now
	user.LastActiveDate = &active

	delta := UserDelta{
		User:         user,
		XPGained:     xpGained,
		PointsGained: pointsGained,
		OldLevel:     oldLevel,
		NewLevel:     user.Level,
		LeveledUp:    user.Level > oldLevel,
		Streak:       streak,
	}
	if delta.LeveledUp {
		delta.LevelUpRewards = LevelUpRewards(oldLevel, user.Level)
	}
	return delta
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
