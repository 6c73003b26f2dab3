package postgres

import (
	"context"
	"fmt"
	"time"

	"ecolearn-engine/internal/seed"
	"github.com/uptrace/bun"
)

// SeedContent inserts the starter quizzes, challenges, and badge definitions.
// Existing rows are left untouched so reseeding is safe.
func SeedContent(ctx context.Context, db *bun.DB, now time.Time) error {
	for _, quiz := range seed.Quizzes(now) {
		rec := quizRecord{
			ID:        quiz.ID,
			Data:      quiz,
			Status:    quiz.Status,
			CreatedAt: quiz.CreatedAt,
		}
		if _, err := db.NewInsert().Model(&rec).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed quiz %s: %w", quiz.ID, err)
		}
	}

	for _, ch := range seed.Challenges(now) {
		rec := challengeRecord{
			ID:           ch.ID,
			Title:        ch.Title,
			Description:  ch.Description,
			Category:     ch.Category,
			Difficulty:   ch.Difficulty,
			Type:         string(ch.Type),
			XPReward:     ch.XPReward,
			PointsReward: ch.PointsReward,
			Status:       ch.Status,
			CreatedAt:    ch.CreatedAt,
		}
		if _, err := db.NewInsert().Model(&rec).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed challenge %s: %w", ch.ID, err)
		}
	}

	for _, badge := range seed.Badges() {
		rec := badgeRecord{
			ID:          badge.ID,
			Name:        badge.Name,
			Description: badge.Description,
			Criteria:    badge.Criteria,
			Category:    badge.Category,
			Rarity:      badge.Rarity,
			PointsValue: badge.PointsValue,
			CreatedAt:   now,
		}
		if _, err := db.NewInsert().Model(&rec).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed badge %s: %w", badge.ID, err)
		}
	}
	return nil
}
