package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ecolearn-engine/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RewardHistory aggregates XP earned from event records (attempts or
// challenge completions) timestamped at or after a cutoff, keyed by user id.
type RewardHistory interface {
	XPEarnedSince(ctx context.Context, since time.Time) (map[string]int, error)
}

// LeaderboardCache stores computed leaderboard pages with a short TTL.
// It is a read accelerator only; User records stay the source of truth.
type LeaderboardCache interface {
	GetSnapshot(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool, error)
	StoreSnapshot(ctx context.Context, key string, entries []domain.LeaderboardEntry) error
}

// Aggregator maintains ranked views over user XP, lifetime and windowed.
type Aggregator struct {
	users       UserRepository
	attempts    RewardHistory
	completions RewardHistory
	cache       LeaderboardCache // optional
	log         *zap.Logger
	now         func() time.Time
	sf          singleflight.Group
}

func NewAggregator(users UserRepository, attempts, completions RewardHistory, cache LeaderboardCache, log *zap.Logger) *Aggregator {
	return &Aggregator{
		users:       users,
		attempts:    attempts,
		completions: completions,
		cache:       cache,
		log:         log,
		now:         time.Now,
	}
}

// WithClock overrides the aggregator's clock; test-only.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// GetRanking returns the top-limit page for the scope and period plus the
// requesting user's own row, which is computed even when they fall outside
// the page. Period "all" ranks by lifetime XP; bounded periods rank by XP
// earned from the event history inside the window. Only the global scope
// carries entries today; school and class answer with an empty page until
// users carry a group association.
func (a *Aggregator) GetRanking(ctx context.Context, scope domain.Scope, period domain.Period, limit int, requestingUserID string) (domain.Leaderboard, error) {
	if !scope.Valid() {
		return domain.Leaderboard{}, fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidInput, scope)
	}
	if !period.Valid() {
		return domain.Leaderboard{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
	}
	if limit <= 0 {
		limit = 50
	}

	if scope != domain.ScopeGlobal {
		return domain.Leaderboard{
			Scope:     scope,
			Period:    period,
			Entries:   []domain.LeaderboardEntry{},
			Message:   scopeUnavailableMessage(scope),
			UpdatedAt: a.now(),
		}, nil
	}

	entries, err := a.pageEntries(ctx, scope, period, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	lb := domain.Leaderboard{
		Scope:     scope,
		Period:    period,
		Entries:   entries,
		UpdatedAt: a.now(),
	}

	if requestingUserID != "" {
		for i := range entries {
			if entries[i].UserID == requestingUserID {
				lb.CurrentUser = &entries[i]
				break
			}
		}
		if lb.CurrentUser == nil {
			current, err := a.findRank(ctx, period, requestingUserID)
			if err != nil {
				// The page itself is still valid; report the miss and move on.
				a.log.Warn("rank lookup for requesting user failed",
					zap.String("userId", requestingUserID), zap.Error(err))
			} else {
				lb.CurrentUser = current
			}
		}
	}
	return lb, nil
}

func scopeUnavailableMessage(scope domain.Scope) string {
	if scope == domain.ScopeSchool {
		return "school leaderboards require a school association"
	}
	return "class leaderboards require a class association"
}

func (a *Aggregator) pageEntries(ctx context.Context, scope domain.Scope, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	key := fmt.Sprintf("%s:%s:%d", scope, period, limit)
	if a.cache != nil {
		if entries, ok, err := a.cache.GetSnapshot(ctx, key); err == nil && ok {
			return entries, nil
		}
	}

	// Collapse concurrent recomputes of the same page.
	v, err, _ := a.sf.Do(key, func() (interface{}, error) {
		entries, err := a.computePage(ctx, period, limit)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			if err := a.cache.StoreSnapshot(ctx, key, entries); err != nil {
				a.log.Warn("leaderboard cache store failed", zap.Error(err))
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.LeaderboardEntry), nil
}

func (a *Aggregator) computePage(ctx context.Context, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	if period == domain.PeriodAll {
		users, err := a.users.TopByXP(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("load top users: %w", err)
		}
		entries := make([]domain.LeaderboardEntry, 0, len(users))
		for _, u := range users {
			entries = append(entries, entryForUser(u, u.XP))
		}
		assignRanks(entries)
		return entries, nil
	}
	return a.computeWindowPage(ctx, period, limit)
}

// computeWindowPage ranks by XP summed from attempts and completions inside
// the window. This is deliberately computed from event history, not lifetime
// XP; the two orderings genuinely differ.
func (a *Aggregator) computeWindowPage(ctx context.Context, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	since := windowStart(period, a.now())

	quizXP, err := a.attempts.XPEarnedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("window attempt xp: %w", err)
	}
	challengeXP, err := a.completions.XPEarnedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("window challenge xp: %w", err)
	}

	totals := make(map[string]int, len(quizXP)+len(challengeXP))
	for id, xp := range quizXP {
		totals[id] += xp
	}
	for id, xp := range challengeXP {
		totals[id] += xp
	}
	if len(totals) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	users, err := a.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate window users: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
		entries = append(entries, entryForUser(u, totals[u.ID]))
	}

	// Deterministic order: window XP desc, then account creation, then id.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		ci, cj := byID[entries[i].UserID].CreatedAt, byID[entries[j].UserID].CreatedAt
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	assignRanks(entries)
	return entries, nil
}

// findRank computes the requesting user's row when it is not on the page.
// Rank is "users strictly ahead" + 1, so three users tied for first all hold
// rank 1 and the next distinct user holds rank 4.
func (a *Aggregator) findRank(ctx context.Context, period domain.Period, userID string) (*domain.LeaderboardEntry, error) {
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if period == domain.PeriodAll {
		ahead, err := a.users.CountWithXPAbove(ctx, user.XP)
		if err != nil {
			return nil, err
		}
		entry := entryForUser(user, user.XP)
		entry.Rank = ahead + 1
		return &entry, nil
	}

	since := windowStart(period, a.now())
	quizXP, err := a.attempts.XPEarnedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	challengeXP, err := a.completions.XPEarnedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	own := quizXP[userID] + challengeXP[userID]
	ahead := 0
	for id := range mergedKeys(quizXP, challengeXP) {
		if id == userID {
			continue
		}
		if quizXP[id]+challengeXP[id] > own {
			ahead++
		}
	}
	entry := entryForUser(user, own)
	entry.Rank = ahead + 1
	return &entry, nil
}

func mergedKeys(a, b map[string]int) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		keys[id] = struct{}{}
	}
	for id := range b {
		keys[id] = struct{}{}
	}
	return keys
}

// assignRanks applies competition ranking over entries already sorted by
// score descending: ties share a rank, the entry after a tie of n holds
// position+1, not tie rank+1.
func assignRanks(entries []domain.LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].XP == entries[i-1].XP {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

func entryForUser(u domain.User, xp int) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		UserID: u.ID,
		Name:   u.Name,
		XP:     xp,
		Level:  u.Level,
		Badges: len(u.Badges),
		Streak: u.CurrentStreakDays,
	}
}

func windowStart(period domain.Period, now time.Time) time.Time {
	switch period {
	case domain.PeriodDaily:
		return now.Add(-24 * time.Hour)
	case domain.PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour)
	case domain.PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour)
	}
	return time.Time{}
}
