// Package seed carries the sample content used by the seed command and the
// dependency-free demo mode.
package seed

import (
	"time"

	"ecolearn-engine/internal/domain"
)

// Quizzes returns the starter quiz set.
func Quizzes(now time.Time) []domain.Quiz {
	return []domain.Quiz{
		{
			ID:          "environmental-basics",
			Title:       "Environmental Basics",
			Description: "Test your knowledge of basic environmental concepts",
			Difficulty:  "easy",
			Category:    "environmental",
			Status:      "active",
			CreatedAt:   now,
			Questions: []domain.Question{
				{
					ID:          "eb-q1",
					Prompt:      "What percentage of plastic waste is currently recycled globally?",
					Options:     []string{"Less than 10%", "About 25%", "About 50%", "Over 75%"},
					Correct:     0,
					Explanation: "Less than 10% of plastic waste is actually recycled globally.",
					Points:      10,
				},
				{
					ID:          "eb-q2",
					Prompt:      "Which renewable energy source produces the most electricity worldwide?",
					Options:     []string{"Solar", "Wind", "Hydroelectric", "Geothermal"},
					Correct:     2,
					Explanation: "Hydroelectric power is currently the largest source of renewable electricity.",
					Points:      10,
				},
				{
					ID:          "eb-q3",
					Prompt:      "How much water can a leaky faucet waste per day?",
					Options:     []string{"1 gallon", "5 gallons", "10 gallons", "20+ gallons"},
					Correct:     3,
					Explanation: "A single leaky faucet can waste more than 20 gallons of water per day.",
					Points:      10,
				},
				{
					ID:          "eb-q4",
					Prompt:      "What is the main cause of deforestation worldwide?",
					Options:     []string{"Urban development", "Agriculture", "Mining", "Natural disasters"},
					Correct:     1,
					Explanation: "Agriculture is responsible for about 80% of global deforestation.",
					Points:      10,
				},
				{
					ID:          "eb-q5",
					Prompt:      "Which transportation method has the lowest carbon footprint per kilometer?",
					Options:     []string{"Car", "Bus", "Train", "Airplane"},
					Correct:     2,
					Explanation: "Trains are generally the most carbon-efficient motorized transportation.",
					Points:      10,
				},
			},
		},
		{
			ID:          "climate-science",
			Title:       "Climate Change Science",
			Description: "Advanced quiz on climate change and global warming",
			Difficulty:  "hard",
			Category:    "climate",
			Status:      "active",
			CreatedAt:   now,
			Questions: []domain.Question{
				{
					ID:          "cs-q1",
					Prompt:      "What is the current atmospheric CO2 concentration?",
					Options:     []string{"350 ppm", "400 ppm", "420 ppm", "450 ppm"},
					Correct:     2,
					Explanation: "Atmospheric CO2 levels have exceeded 420 parts per million.",
					Points:      15,
				},
				{
					ID:          "cs-q2",
					Prompt:      "Which greenhouse gas has the highest global warming potential?",
					Options:     []string{"Carbon dioxide", "Methane", "Nitrous oxide", "Fluorinated gases"},
					Correct:     3,
					Explanation: "Some fluorinated gases warm thousands of times more than CO2.",
					Points:      15,
				},
			},
		},
	}
}

// Challenges returns the starter challenge set.
func Challenges(now time.Time) []domain.Challenge {
	return []domain.Challenge{
		{
			ID:           "plastic-free-day",
			Title:        "Plastic-Free Day",
			Description:  "Go a full day without single-use plastic",
			Category:     "waste",
			Difficulty:   "medium",
			Type:         domain.ChallengeOneTime,
			XPReward:     50,
			PointsReward: 25,
			Status:       "active",
			CreatedAt:    now,
		},
		{
			ID:           "bike-to-school",
			Title:        "Bike to School",
			Description:  "Use a bike or walk instead of motorized transport",
			Category:     "transportation",
			Difficulty:   "easy",
			Type:         domain.ChallengeRecurring,
			XPReward:     30,
			PointsReward: 15,
			Status:       "active",
			CreatedAt:    now,
		},
		{
			ID:           "community-cleanup",
			Title:        "Community Cleanup",
			Description:  "Organize or join a local cleanup event",
			Category:     "waste",
			Difficulty:   "hard",
			Type:         domain.ChallengeOneTime,
			XPReward:     100,
			PointsReward: 50,
			Status:       "active",
			CreatedAt:    now,
		},
		{
			ID:           "meatless-week",
			Title:        "Meatless Week",
			Description:  "Eat plant-based for seven days straight",
			Category:     "food",
			Difficulty:   "expert",
			Type:         domain.ChallengeOneTime,
			XPReward:     120,
			PointsReward: 60,
			Status:       "active",
			CreatedAt:    now,
		},
	}
}

// Badges returns the badge definition set.
func Badges() []domain.Badge {
	return []domain.Badge{
		{
			ID: "eco-starter", Name: "Eco Starter",
			Description: "Complete your first quiz",
			Category:    "beginner", Rarity: "common", PointsValue: 10,
			Criteria: domain.Criteria{Kind: domain.CriteriaQuizCompletion, QuizzesRequired: 1},
		},
		{
			ID: "quiz-master", Name: "Quiz Master",
			Description: "Score 100% on a quiz",
			Category:    "achievement", Rarity: "uncommon", PointsValue: 25,
			Criteria: domain.Criteria{Kind: domain.CriteriaPerfectScore},
		},
		{
			ID: "waste-warrior", Name: "Waste Warrior",
			Description: "Complete 3 eco challenges",
			Category:    "challenge", Rarity: "uncommon", PointsValue: 30,
			Criteria: domain.Criteria{Kind: domain.CriteriaChallengeCompletion, ChallengesRequired: 3},
		},
		{
			ID: "energy-saver", Name: "Energy Saver",
			Description: "Reach Level 3",
			Category:    "progression", Rarity: "common", PointsValue: 20,
			Criteria: domain.Criteria{Kind: domain.CriteriaLevelThreshold, LevelRequired: 3},
		},
		{
			ID: "eco-champion", Name: "Eco Champion",
			Description: "Earn 500 XP",
			Category:    "progression", Rarity: "rare", PointsValue: 50,
			Criteria: domain.Criteria{Kind: domain.CriteriaXPThreshold, XPRequired: 500},
		},
		{
			ID: "planet-protector", Name: "Planet Protector",
			Description: "Complete all available challenges",
			Category:    "mastery", Rarity: "epic", PointsValue: 100,
			Criteria: domain.Criteria{Kind: domain.CriteriaChallengeCompletion, ChallengesRequired: 8},
		},
		{
			ID: "streak-keeper", Name: "Streak Keeper",
			Description: "Maintain a 7-day learning streak",
			Category:    "consistency", Rarity: "uncommon", PointsValue: 35,
			Criteria: domain.Criteria{Kind: domain.CriteriaStreak, StreakDaysRequired: 7},
		},
		{
			ID: "knowledge-seeker", Name: "Knowledge Seeker",
			Description: "Complete 10 quizzes",
			Category:    "dedication", Rarity: "uncommon", PointsValue: 40,
			Criteria: domain.Criteria{Kind: domain.CriteriaQuizCompletion, QuizzesRequired: 10},
		},
		{
			ID: "early-adopter", Name: "Early Adopter",
			Description: "Stick around for your first month",
			Category:    "special", Rarity: "legendary", PointsValue: 75,
			Criteria: domain.Criteria{Kind: domain.CriteriaTimeBased, AccountAgeDays: 30},
		},
		{
			ID: "eco-veteran", Name: "Eco Veteran",
			Description: "Reach Level 10",
			Category:    "progression", Rarity: "rare", PointsValue: 60,
			Criteria: domain.Criteria{Kind: domain.CriteriaLevelThreshold, LevelRequired: 10},
		},
	}
}
