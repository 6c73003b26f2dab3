package app

import (
	"math"

	"ecolearn-engine/internal/domain"
)

// XP policy constants. These are compatibility-critical: changing them
// silently changes reward payouts for existing clients.
const (
	xpPerCorrectAnswer    = 10
	perfectScoreBonusXP   = 20
	highScoreBonusXP      = 10
	highScoreThreshold    = 80.0
	defaultQuestionPoints = 10
)

// GradingResult is the output of grading one submission against a quiz.
type GradingResult struct {
	CorrectAnswers  int
	TotalQuestions  int
	ScorePercentage float64
	QuestionResults []domain.QuestionResult
}

// GradeQuiz grades a submission against the quiz's question list. A missing
// entry in answers counts as incorrect, never as an error, and a quiz with no
// questions grades to 0% rather than dividing by zero.
func GradeQuiz(quiz domain.Quiz, answers map[string]int) GradingResult {
	results := make([]domain.QuestionResult, 0, len(quiz.Questions))
	correct := 0

	for _, q := range quiz.Questions {
		points := q.Points
		if points == 0 {
			points = defaultQuestionPoints
		}

		var userAnswer *int
		isCorrect := false
		if selected, ok := answers[q.ID]; ok {
			selected := selected
			userAnswer = &selected
			isCorrect = selected == q.Correct
		}
		if isCorrect {
			correct++
		}

		earned := 0
		if isCorrect {
			earned = points
		}
		results = append(results, domain.QuestionResult{
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			CorrectAnswer: q.Correct,
			UserAnswer:    userAnswer,
			Correct:       isCorrect,
			Explanation:   q.Explanation,
			PointsEarned:  earned,
		})
	}

	total := len(quiz.Questions)
	pct := 0.0
	if total > 0 {
		pct = roundTo2(float64(correct) / float64(total) * 100)
	}

	return GradingResult{
		CorrectAnswers:  correct,
		TotalQuestions:  total,
		ScorePercentage: pct,
		QuestionResults: results,
	}
}

// QuizXP converts a grading result into (base, bonus) XP. The percentage
// comparisons intentionally use the same thresholds and equality the grading
// produces: correct/total*100 is an exact rational for integer counts, so
// == 100 is deterministic here.
func QuizXP(result GradingResult) (base, bonus int) {
	base = result.CorrectAnswers * xpPerCorrectAnswer
	switch {
	case result.ScorePercentage == 100:
		bonus = perfectScoreBonusXP
	case result.ScorePercentage >= highScoreThreshold:
		bonus = highScoreBonusXP
	}
	return base, bonus
}

// DifficultyMultiplier maps a challenge difficulty to its reward multiplier.
// Unknown difficulties fall back to 1.0.
func DifficultyMultiplier(difficulty string) float64 {
	switch difficulty {
	case "easy":
		return 1.0
	case "medium":
		return 1.2
	case "hard":
		return 1.5
	case "expert":
		return 2.0
	}
	return 1.0
}

// ChallengeReward computes the post-multiplier rewards for completing a
// challenge. Truncation toward zero, not rounding: floor(50*1.2) = 60.
func ChallengeReward(ch domain.Challenge) (xp, points int, multiplier float64) {
	multiplier = DifficultyMultiplier(ch.Difficulty)
	xp = int(float64(ch.XPReward) * multiplier)
	points = int(float64(ch.PointsReward) * multiplier)
	return xp, points, multiplier
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
