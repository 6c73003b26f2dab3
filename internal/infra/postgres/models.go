package postgres

import (
	"time"

	"ecolearn-engine/internal/domain"
	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                       string     `bun:"id,pk"`
	Name                     string     `bun:"name"`
	Email                    string     `bun:"email"`
	XP                       int        `bun:"xp"`
	Level                    int        `bun:"level"`
	Points                   int        `bun:"points"`
	Badges                   []string   `bun:"badges,array"`
	CurrentStreakDays        int        `bun:"current_streak_days"`
	LongestStreakDays        int        `bun:"longest_streak_days"`
	LastActiveDate           *time.Time `bun:"last_active_date"`
	TotalQuizzesCompleted    int        `bun:"total_quizzes_completed"`
	TotalChallengesCompleted int        `bun:"total_challenges_completed"`
	CreatedAt                time.Time  `bun:"created_at"`
	Version                  int64      `bun:"version"`
}

func (r userRecord) toDomain() domain.User {
	return domain.User{
		ID:                       r.ID,
		Name:                     r.Name,
		Email:                    r.Email,
		XP:                       r.XP,
		Level:                    r.Level,
		Points:                   r.Points,
		Badges:                   r.Badges,
		CurrentStreakDays:        r.CurrentStreakDays,
		LongestStreakDays:        r.LongestStreakDays,
		LastActiveDate:           r.LastActiveDate,
		TotalQuizzesCompleted:    r.TotalQuizzesCompleted,
		TotalChallengesCompleted: r.TotalChallengesCompleted,
		CreatedAt:                r.CreatedAt,
		Version:                  r.Version,
	}
}

func userRecordFromDomain(u domain.User) userRecord {
	return userRecord{
		ID:                       u.ID,
		Name:                     u.Name,
		Email:                    u.Email,
		XP:                       u.XP,
		Level:                    u.Level,
		Points:                   u.Points,
		Badges:                   u.Badges,
		CurrentStreakDays:        u.CurrentStreakDays,
		LongestStreakDays:        u.LongestStreakDays,
		LastActiveDate:           u.LastActiveDate,
		TotalQuizzesCompleted:    u.TotalQuizzesCompleted,
		TotalChallengesCompleted: u.TotalChallengesCompleted,
		CreatedAt:                u.CreatedAt,
		Version:                  u.Version,
	}
}

// quizRecord keeps immutable content as a JSONB document (the pgx loader
// reads it) next to the mutable aggregate stat columns.
type quizRecord struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID            string      `bun:"id,pk"`
	Data          domain.Quiz `bun:"data,type:jsonb"`
	Status        string      `bun:"status"`
	TotalAttempts int         `bun:"total_attempts"`
	AverageScore  float64     `bun:"average_score"`
	CreatedAt     time.Time   `bun:"created_at"`
}

type attemptRecord struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID              string                  `bun:"id,pk"`
	UserID          string                  `bun:"user_id"`
	QuizID          string                  `bun:"quiz_id"`
	QuizTitle       string                  `bun:"quiz_title"`
	Answers         map[string]int          `bun:"answers,type:jsonb"`
	Score           int                     `bun:"score"`
	TotalQuestions  int                     `bun:"total_questions"`
	ScorePercentage float64                 `bun:"score_percentage"`
	BaseXP          int                     `bun:"base_xp"`
	BonusXP         int                     `bun:"bonus_xp"`
	EarnedXP        int                     `bun:"earned_xp"`
	QuestionResults []domain.QuestionResult `bun:"question_results,type:jsonb"`
	CreatedAt       time.Time               `bun:"created_at"`
}

func (r attemptRecord) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:              r.ID,
		UserID:          r.UserID,
		QuizID:          r.QuizID,
		QuizTitle:       r.QuizTitle,
		Answers:         r.Answers,
		Score:           r.Score,
		TotalQuestions:  r.TotalQuestions,
		ScorePercentage: r.ScorePercentage,
		BaseXP:          r.BaseXP,
		BonusXP:         r.BonusXP,
		EarnedXP:        r.EarnedXP,
		QuestionResults: r.QuestionResults,
		CreatedAt:       r.CreatedAt,
	}
}

type challengeRecord struct {
	bun.BaseModel `bun:"table:challenges,alias:c"`

	ID               string    `bun:"id,pk"`
	Title            string    `bun:"title"`
	Description      string    `bun:"description"`
	Category         string    `bun:"category"`
	Difficulty       string    `bun:"difficulty"`
	Type             string    `bun:"type"`
	XPReward         int       `bun:"xp_reward"`
	PointsReward     int       `bun:"points_reward"`
	Status           string    `bun:"status"`
	TotalCompletions int       `bun:"total_completions"`
	CreatedAt        time.Time `bun:"created_at"`
}

func (r challengeRecord) toDomain() domain.Challenge {
	return domain.Challenge{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		Difficulty:       r.Difficulty,
		Type:             domain.ChallengeType(r.Type),
		XPReward:         r.XPReward,
		PointsReward:     r.PointsReward,
		Status:           r.Status,
		TotalCompletions: r.TotalCompletions,
		CreatedAt:        r.CreatedAt,
	}
}

type completionRecord struct {
	bun.BaseModel `bun:"table:challenge_completions,alias:cc"`

	ID            string    `bun:"id,pk"`
	UserID        string    `bun:"user_id"`
	ChallengeID   string    `bun:"challenge_id"`
	Title         string    `bun:"title"`
	Category      string    `bun:"category"`
	XPAwarded     int       `bun:"xp_awarded"`
	PointsAwarded int       `bun:"points_awarded"`
	Proof         string    `bun:"proof"`
	OneTime       bool      `bun:"one_time"`
	CompletedAt   time.Time `bun:"completed_at"`
}

type badgeRecord struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	ID          string          `bun:"id,pk"`
	Name        string          `bun:"name"`
	Description string          `bun:"description"`
	Criteria    domain.Criteria `bun:"criteria,type:jsonb"`
	Category    string          `bun:"category"`
	Rarity      string          `bun:"rarity"`
	PointsValue int             `bun:"points_value"`
	CreatedAt   time.Time       `bun:"created_at"`
}

func (r badgeRecord) toDomain() domain.Badge {
	return domain.Badge{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Criteria:    r.Criteria,
		Category:    r.Category,
		Rarity:      r.Rarity,
		PointsValue: r.PointsValue,
	}
}

type badgeAwardRecord struct {
	bun.BaseModel `bun:"table:badge_awards,alias:ba"`

	UserID   string    `bun:"user_id,pk"`
	BadgeID  string    `bun:"badge_id,pk"`
	EarnedAt time.Time `bun:"earned_at"`
}
