package domain

import "time"

// User is the authoritative progression aggregate. Level is always derived
// from XP; it is never written independently of a fresh computation.
type User struct {
	ID                       string     `json:"id"`
	Name                     string     `json:"name"`
	Email                    string     `json:"email"`
	XP                       int        `json:"xp"`
	Level                    int        `json:"level"`
	Points                   int        `json:"points"`
	Badges                   []string   `json:"badges"`
	CurrentStreakDays        int        `json:"currentStreakDays"`
	LongestStreakDays        int        `json:"longestStreakDays"`
	LastActiveDate           *time.Time `json:"lastActiveDate,omitempty"`
	TotalQuizzesCompleted    int        `json:"totalQuizzesCompleted"`
	TotalChallengesCompleted int        `json:"totalChallengesCompleted"`
	CreatedAt                time.Time  `json:"createdAt"`
	Version                  int64      `json:"-"`
}

// HasBadge reports whether the badge id is already in the user's earned set.
func (u User) HasBadge(badgeID string) bool {
	for _, id := range u.Badges {
		if id == badgeID {
			return true
		}
	}
	return false
}

// Question models an MCQ question with exactly one correct option index.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation"`
	Points      int      `json:"points"` // defaults to 10 if zero
}

// Quiz is an immutable question set; only the aggregate statistics
// (TotalAttempts, AverageScore) change after creation.
type Quiz struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Difficulty    string     `json:"difficulty"`
	Category      string     `json:"category"`
	Questions     []Question `json:"questions"`
	Status        string     `json:"status"`
	TotalAttempts int        `json:"totalAttempts"`
	AverageScore  float64    `json:"averageScore"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// QuestionResult is the graded view of a single question in an attempt.
// UserAnswer is nil when the submission had no entry for the question.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Prompt        string `json:"prompt"`
	CorrectAnswer int    `json:"correctAnswer"`
	UserAnswer    *int   `json:"userAnswer,omitempty"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation"`
	PointsEarned  int    `json:"pointsEarned"`
}

// Attempt is the immutable record of one grading event.
type Attempt struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	QuizID          string           `json:"quizId"`
	QuizTitle       string           `json:"quizTitle"`
	Answers         map[string]int   `json:"answers"`
	Score           int              `json:"score"` // count of correct answers
	TotalQuestions  int              `json:"totalQuestions"`
	ScorePercentage float64          `json:"scorePercentage"`
	BaseXP          int              `json:"baseXp"`
	BonusXP         int              `json:"bonusXp"`
	EarnedXP        int              `json:"earnedXp"`
	QuestionResults []QuestionResult `json:"questionResults"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// ChallengeType distinguishes single-shot from repeatable challenges.
type ChallengeType string

const (
	ChallengeOneTime   ChallengeType = "one-time"
	ChallengeRecurring ChallengeType = "recurring"
)

// Challenge is an immutable real-world task definition; TotalCompletions is
// the only mutable aggregate.
type Challenge struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Category         string        `json:"category"`
	Difficulty       string        `json:"difficulty"`
	Type             ChallengeType `json:"type"`
	XPReward         int           `json:"xpReward"`
	PointsReward     int           `json:"pointsReward"`
	Status           string        `json:"status"`
	TotalCompletions int           `json:"totalCompletions"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// ChallengeCompletion records one user finishing one challenge, with the
// post-multiplier rewards that were actually credited.
type ChallengeCompletion struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ChallengeID   string    `json:"challengeId"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	XPAwarded     int       `json:"xpAwarded"`
	PointsAwarded int       `json:"pointsAwarded"`
	Proof         string    `json:"proof"`
	OneTime       bool      `json:"oneTime"`
	CompletedAt   time.Time `json:"completedAt"`
}

// Badge is an immutable achievement definition.
type Badge struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Criteria    Criteria `json:"criteria"`
	Category    string   `json:"category"`
	Rarity      string   `json:"rarity"`
	PointsValue int      `json:"pointsValue"`
}

// BadgeAward is write-once per (user, badge) pair.
type BadgeAward struct {
	UserID   string    `json:"userId"`
	BadgeID  string    `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

// Scope selects the population a leaderboard ranks over. Global ranks every
// user; school and class require a group association the engine does not
// track yet, so those scopes answer with an empty page and an explanatory
// message.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeSchool Scope = "school"
	ScopeClass  Scope = "class"
)

// Valid reports whether the scope is one of the supported populations.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeSchool, ScopeClass:
		return true
	}
	return false
}

// Period selects the time window a leaderboard ranks over.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether the period is one of the supported windows.
func (p Period) Valid() bool {
	switch p {
	case PeriodAll, PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// LeaderboardEntry is a derived ranking row; User records stay authoritative.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
	Badges int    `json:"badges"`
	Streak int    `json:"streak"`
}

// Leaderboard is an ordered page of entries plus the requesting user's row,
// present even when they fall outside the page.
type Leaderboard struct {
	Scope       Scope              `json:"scope"`
	Period      Period             `json:"period"`
	Entries     []LeaderboardEntry `json:"entries"`
	CurrentUser *LeaderboardEntry  `json:"currentUser,omitempty"`
	Message     string             `json:"message,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}
