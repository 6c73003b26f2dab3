package domain

// CriteriaKind enumerates the closed set of badge predicate kinds.
// Anything outside this set evaluates to false (fail closed).
type CriteriaKind string

const (
	CriteriaXPThreshold         CriteriaKind = "xp_threshold"
	CriteriaLevelThreshold      CriteriaKind = "level_threshold"
	CriteriaQuizCompletion      CriteriaKind = "quiz_completion"
	CriteriaPerfectScore        CriteriaKind = "perfect_score"
	CriteriaChallengeCompletion CriteriaKind = "challenge_completion"
	CriteriaStreak              CriteriaKind = "streak"
	CriteriaTimeBased           CriteriaKind = "time_based"
)

// Criteria is the tagged variant describing when a badge is earned.
// Only the parameter matching Kind is meaningful; the rest stay zero.
type Criteria struct {
	Kind               CriteriaKind `json:"type"`
	XPRequired         int          `json:"xpRequired,omitempty"`
	LevelRequired      int          `json:"levelRequired,omitempty"`
	QuizzesRequired    int          `json:"quizzesRequired,omitempty"`
	ChallengesRequired int          `json:"challengesRequired,omitempty"`
	StreakDaysRequired int          `json:"streakDaysRequired,omitempty"`
	AccountAgeDays     int          `json:"accountAgeDays,omitempty"`
}
