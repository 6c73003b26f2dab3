package app_test

import (
	"testing"

	"ecolearn-engine/internal/app"
	"ecolearn-engine/internal/domain"
)

func fiveQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Environmental Basics",
		Questions: []domain.Question{
			{ID: "q1", Correct: 0, Points: 10},
			{ID: "q2", Correct: 2, Points: 10},
			{ID: "q3", Correct: 3, Points: 10},
			{ID: "q4", Correct: 1, Points: 10},
			{ID: "q5", Correct: 2, Points: 10},
		},
	}
}

func perfectAnswers() map[string]int {
	return map[string]int{"q1": 0, "q2": 2, "q3": 3, "q4": 1, "q5": 2}
}

func TestGradeQuizPerfect(t *testing.T) {
	result := app.GradeQuiz(fiveQuestionQuiz(), perfectAnswers())
	if result.CorrectAnswers != 5 || result.TotalQuestions != 5 {
		t.Fatalf("expected 5/5, got %d/%d", result.CorrectAnswers, result.TotalQuestions)
	}
	if result.ScorePercentage != 100 {
		t.Fatalf("expected 100%%, got %v", result.ScorePercentage)
	}
	for _, qr := range result.QuestionResults {
		if !qr.Correct || qr.PointsEarned != 10 {
			t.Fatalf("expected full marks on %s, got %+v", qr.QuestionID, qr)
		}
	}
}

func TestGradeQuizMissingAnswerIsWrong(t *testing.T) {
	answers := perfectAnswers()
	delete(answers, "q3")

	result := app.GradeQuiz(fiveQuestionQuiz(), answers)
	if result.CorrectAnswers != 4 {
		t.Fatalf("expected 4 correct, got %d", result.CorrectAnswers)
	}
	if result.ScorePercentage != 80 {
		t.Fatalf("expected 80%%, got %v", result.ScorePercentage)
	}
	var q3 domain.QuestionResult
	for _, qr := range result.QuestionResults {
		if qr.QuestionID == "q3" {
			q3 = qr
		}
	}
	if q3.Correct || q3.UserAnswer != nil || q3.PointsEarned != 0 {
		t.Fatalf("missing answer should grade as wrong with nil user answer, got %+v", q3)
	}
}

func TestGradeQuizNoQuestions(t *testing.T) {
	result := app.GradeQuiz(domain.Quiz{ID: "empty"}, map[string]int{"q1": 0})
	if result.ScorePercentage != 0 || result.TotalQuestions != 0 || result.CorrectAnswers != 0 {
		t.Fatalf("empty quiz should grade to zero, got %+v", result)
	}
}

func TestQuizXPBonusTiers(t *testing.T) {
	cases := []struct {
		correct, total      int
		pct                 float64
		wantBase, wantBonus int
	}{
		{5, 5, 100, 50, 20},
		{4, 5, 80, 40, 10},
		{3, 5, 60, 30, 0},
		{0, 5, 0, 0, 0},
	}
	for _, tc := range cases {
		base, bonus := app.QuizXP(app.GradingResult{
			CorrectAnswers:  tc.correct,
			TotalQuestions:  tc.total,
			ScorePercentage: tc.pct,
		})
		if base != tc.wantBase || bonus != tc.wantBonus {
			t.Fatalf("%d/%d: expected (%d,%d), got (%d,%d)",
				tc.correct, tc.total, tc.wantBase, tc.wantBonus, base, bonus)
		}
	}
}

func TestChallengeRewardMultipliers(t *testing.T) {
	cases := []struct {
		difficulty         string
		wantXP, wantPoints int
		wantMultiplier     float64
	}{
		{"easy", 50, 25, 1.0},
		{"medium", 60, 30, 1.2},
		{"hard", 75, 37, 1.5},
		{"expert", 100, 50, 2.0},
		{"mystery", 50, 25, 1.0},
	}
	for _, tc := range cases {
		xp, points, mult := app.ChallengeReward(domain.Challenge{
			Difficulty:   tc.difficulty,
			XPReward:     50,
			PointsReward: 25,
		})
		if xp != tc.wantXP || points != tc.wantPoints || mult != tc.wantMultiplier {
			t.Fatalf("%s: expected (%d,%d,%v), got (%d,%d,%v)",
				tc.difficulty, tc.wantXP, tc.wantPoints, tc.wantMultiplier, xp, points, mult)
		}
	}
}
