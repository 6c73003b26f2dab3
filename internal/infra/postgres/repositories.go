package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecolearn-engine/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505),
// which the adapters translate into the matching domain sentinel instead of
// a retryable ErrUnavailable.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

// Repositories bundles the bun-backed persistence adapters. All mutating
// statements are single-statement merges or guarded updates so concurrent
// requests cannot lose writes.
type Repositories struct {
	Users       *UserRepository
	QuizStats   *QuizStatsRepository
	Attempts    *AttemptRepository
	Challenges  *ChallengeRepository
	Completions *CompletionRepository
	Badges      *BadgeRepository
	Awards      *BadgeAwardRepository
}

func NewRepositories(db *bun.DB) *Repositories {
	return &Repositories{
		Users:       &UserRepository{db: db},
		QuizStats:   &QuizStatsRepository{db: db},
		Attempts:    &AttemptRepository{db: db},
		Challenges:  &ChallengeRepository{db: db},
		Completions: &CompletionRepository{db: db},
		Badges:      &BadgeRepository{db: db},
		Awards:      &BadgeAwardRepository{db: db},
	}
}

// UserRepository persists the User aggregate with optimistic concurrency.
type UserRepository struct {
	db *bun.DB
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (domain.User, error) {
	var rec userRecord
	err := r.db.NewSelect().Model(&rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: load user: %v", domain.ErrUnavailable, err)
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) error {
	rec := userRecordFromDomain(user)
	if rec.Level == 0 {
		rec.Level = 1
	}
	if rec.Badges == nil {
		rec.Badges = []string{}
	}
	if _, err := r.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("%w: insert user: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// UpdateUser writes the record only if the stored version still matches
// expectedVersion; a zero-row update reports domain.ErrConflict so the
// caller can recompute its delta from a fresh read.
func (r *UserRepository) UpdateUser(ctx context.Context, user domain.User, expectedVersion int64) error {
	rec := userRecordFromDomain(user)
	rec.Version = expectedVersion + 1
	res, err := r.db.NewUpdate().
		Model(&rec).
		WherePK().
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: update user: %v", domain.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update user: %v", domain.ErrUnavailable, err)
	}
	if affected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// AddBadge appends the badge id atomically; the array-containment guard
// makes the append idempotent under concurrent awards.
func (r *UserRepository) AddBadge(ctx context.Context, userID, badgeID string) error {
	_, err := r.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set("badges = array_append(badges, ?)", badgeID).
		Set("version = version + 1").
		Where("id = ?", userID).
		Where("NOT (badges @> ARRAY[?]::text[])", badgeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: append badge: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *UserRepository) TopByXP(ctx context.Context, limit int) ([]domain.User, error) {
	var recs []userRecord
	err := r.db.NewSelect().
		Model(&recs).
		Order("xp DESC", "created_at ASC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: top users: %v", domain.ErrUnavailable, err)
	}
	users := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toDomain())
	}
	return users, nil
}

func (r *UserRepository) GetUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []userRecord
	err := r.db.NewSelect().Model(&recs).Where("id IN (?)", bun.In(ids)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load users: %v", domain.ErrUnavailable, err)
	}
	users := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toDomain())
	}
	return users, nil
}

func (r *UserRepository) CountWithXPAbove(ctx context.Context, xp int) (int, error) {
	count, err := r.db.NewSelect().Model((*userRecord)(nil)).Where("xp > ?", xp).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count users: %v", domain.ErrUnavailable, err)
	}
	return count, nil
}

// QuizStatsRepository folds submissions into the quiz aggregate columns.
type QuizStatsRepository struct {
	db *bun.DB
}

// RecordAttempt updates the rolling average and counter in one statement;
// Postgres evaluates the SET expressions against the pre-update row, so the
// merge is atomic without a read-modify-write round trip.
func (r *QuizStatsRepository) RecordAttempt(ctx context.Context, quizID string, scorePercentage float64) error {
	res, err := r.db.NewUpdate().
		Model((*quizRecord)(nil)).
		Set("average_score = round(((average_score * total_attempts + ?) / (total_attempts + 1))::numeric, 2)", scorePercentage).
		Set("total_attempts = total_attempts + 1").
		Where("id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: quiz stats: %v", domain.ErrUnavailable, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

// AttemptRepository persists immutable grading records.
type AttemptRepository struct {
	db *bun.DB
}

func (r *AttemptRepository) InsertAttempt(ctx context.Context, attempt domain.Attempt) error {
	rec := attemptRecord{
		ID:              attempt.ID,
		UserID:          attempt.UserID,
		QuizID:          attempt.QuizID,
		QuizTitle:       attempt.QuizTitle,
		Answers:         attempt.Answers,
		Score:           attempt.Score,
		TotalQuestions:  attempt.TotalQuestions,
		ScorePercentage: attempt.ScorePercentage,
		BaseXP:          attempt.BaseXP,
		BonusXP:         attempt.BonusXP,
		EarnedXP:        attempt.EarnedXP,
		QuestionResults: attempt.QuestionResults,
		CreatedAt:       attempt.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert attempt: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *AttemptRepository) ListAttempts(ctx context.Context, userID string, limit int) ([]domain.Attempt, error) {
	var recs []attemptRecord
	err := r.db.NewSelect().
		Model(&recs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list attempts: %v", domain.ErrUnavailable, err)
	}
	out := make([]domain.Attempt, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *AttemptRepository) HasPerfectScore(ctx context.Context, userID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*attemptRecord)(nil)).
		Where("user_id = ?", userID).
		Where("score_percentage = 100").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: perfect score check: %v", domain.ErrUnavailable, err)
	}
	return exists, nil
}

func (r *AttemptRepository) XPEarnedSince(ctx context.Context, since time.Time) (map[string]int, error) {
	var rows []struct {
		UserID string `bun:"user_id"`
		XP     int    `bun:"xp"`
	}
	err := r.db.NewSelect().
		Model((*attemptRecord)(nil)).
		ColumnExpr("user_id").
		ColumnExpr("SUM(earned_xp) AS xp").
		Where("created_at >= ?", since).
		GroupExpr("user_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("%w: window attempt xp: %v", domain.ErrUnavailable, err)
	}
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.XP
	}
	return totals, nil
}

// ChallengeRepository resolves challenge definitions and counters.
type ChallengeRepository struct {
	db *bun.DB
}

func (r *ChallengeRepository) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	var rec challengeRecord
	err := r.db.NewSelect().Model(&rec).Where("id = ?", id).Where("status = 'active'").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("%w: load challenge: %v", domain.ErrUnavailable, err)
	}
	return rec.toDomain(), nil
}

func (r *ChallengeRepository) IncrementCompletions(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*challengeRecord)(nil)).
		Set("total_completions = total_completions + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: challenge counter: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// CompletionRepository persists challenge completion records.
type CompletionRepository struct {
	db *bun.DB
}

func (r *CompletionRepository) InsertCompletion(ctx context.Context, completion domain.ChallengeCompletion) error {
	rec := completionRecord{
		ID:            completion.ID,
		UserID:        completion.UserID,
		ChallengeID:   completion.ChallengeID,
		Title:         completion.Title,
		Category:      completion.Category,
		XPAwarded:     completion.XPAwarded,
		PointsAwarded: completion.PointsAwarded,
		Proof:         completion.Proof,
		OneTime:       completion.OneTime,
		CompletedAt:   completion.CompletedAt,
	}
	if _, err := r.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		// The partial unique index on (user_id, challenge_id) WHERE one_time
		// is what actually enforces pay-at-most-once under concurrency.
		if isUniqueViolation(err) {
			return domain.ErrChallengeAlreadyCompleted
		}
		return fmt.Errorf("%w: insert completion: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *CompletionRepository) HasCompleted(ctx context.Context, userID, challengeID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*completionRecord)(nil)).
		Where("user_id = ?", userID).
		Where("challenge_id = ?", challengeID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: completion check: %v", domain.ErrUnavailable, err)
	}
	return exists, nil
}

func (r *CompletionRepository) XPEarnedSince(ctx context.Context, since time.Time) (map[string]int, error) {
	var rows []struct {
		UserID string `bun:"user_id"`
		XP     int    `bun:"xp"`
	}
	err := r.db.NewSelect().
		Model((*completionRecord)(nil)).
		ColumnExpr("user_id").
		ColumnExpr("SUM(xp_awarded) AS xp").
		Where("completed_at >= ?", since).
		GroupExpr("user_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("%w: window challenge xp: %v", domain.ErrUnavailable, err)
	}
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.XP
	}
	return totals, nil
}

// BadgeRepository lists badge definitions.
type BadgeRepository struct {
	db *bun.DB
}

func (r *BadgeRepository) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	var recs []badgeRecord
	err := r.db.NewSelect().Model(&recs).Order("created_at ASC", "id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list badges: %v", domain.ErrUnavailable, err)
	}
	out := make([]domain.Badge, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// BadgeAwardRepository enforces the write-once (user, badge) invariant at
// the storage layer via the primary key and ON CONFLICT DO NOTHING.
type BadgeAwardRepository struct {
	db *bun.DB
}

func (r *BadgeAwardRepository) Award(ctx context.Context, award domain.BadgeAward) (bool, error) {
	rec := badgeAwardRecord{
		UserID:   award.UserID,
		BadgeID:  award.BadgeID,
		EarnedAt: award.EarnedAt,
	}
	res, err := r.db.NewInsert().
		Model(&rec).
		On("CONFLICT (user_id, badge_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: insert award: %v", domain.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: insert award: %v", domain.ErrUnavailable, err)
	}
	return affected == 1, nil
}

func (r *BadgeAwardRepository) EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*badgeAwardRecord)(nil)).
		Column("badge_id").
		Where("user_id = ?", userID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("%w: earned badges: %v", domain.ErrUnavailable, err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
