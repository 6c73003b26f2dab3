package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecolearn-engine/internal/domain"
)

// Store is an in-memory implementation of every engine repository. It backs
// unit tests and the no-dependencies server mode, and mirrors the semantics
// the Postgres adapters provide: versioned user updates, write-once badge
// awards, atomic stat merges.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	quizzes     map[string]domain.Quiz
	attempts    []domain.Attempt
	challenges  map[string]domain.Challenge
	completions []domain.ChallengeCompletion
	badges      map[string]domain.Badge
	badgeOrder  []string
	awards      map[string]map[string]domain.BadgeAward // userID -> badgeID
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]domain.User),
		quizzes:    make(map[string]domain.Quiz),
		challenges: make(map[string]domain.Challenge),
		badges:     make(map[string]domain.Badge),
		awards:     make(map[string]map[string]domain.BadgeAward),
	}
}

// --- users ---

func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return domain.ErrUserAlreadyExists
	}
	if user.Level == 0 {
		user.Level = 1
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrConflict
	}
	user.Version = expectedVersion + 1
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) AddBadge(_ context.Context, userID, badgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.HasBadge(badgeID) {
		return nil
	}
	user.Badges = append(append([]string(nil), user.Badges...), badgeID)
	user.Version++
	s.users[userID] = user
	return nil
}

func (s *Store) TopByXP(_ context.Context, limit int) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].XP != users[j].XP {
			return users[i].XP > users[j].XP
		}
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			users = append(users, cloneUser(u))
		}
	}
	return users, nil
}

func (s *Store) CountWithXPAbove(_ context.Context, xp int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, u := range s.users {
		if u.XP > xp {
			count++
		}
	}
	return count, nil
}

// --- quizzes ---

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok || quiz.Status != "active" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) PutQuiz(quiz domain.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quiz.Status == "" {
		quiz.Status = "active"
	}
	s.quizzes[quiz.ID] = quiz
}

// RecordAttempt merges one submission into the quiz's rolling statistics.
func (s *Store) RecordAttempt(_ context.Context, quizID string, scorePercentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	total := quiz.TotalAttempts
	quiz.AverageScore = (quiz.AverageScore*float64(total) + scorePercentage) / float64(total+1)
	quiz.TotalAttempts = total + 1
	s.quizzes[quizID] = quiz
	return nil
}

// --- attempts ---

func (s *Store) InsertAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *Store) ListAttempts(_ context.Context, userID string, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) HasPerfectScore(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.attempts {
		if a.UserID == userID && a.ScorePercentage == 100.0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) XPEarnedSince(_ context.Context, since time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]int)
	for _, a := range s.attempts {
		if !a.CreatedAt.Before(since) {
			totals[a.UserID] += a.EarnedXP
		}
	}
	return totals, nil
}

// --- challenges ---

func (s *Store) GetChallenge(_ context.Context, id string) (domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[id]
	if !ok || ch.Status != "active" {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return ch, nil
}

func (s *Store) PutChallenge(ch domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch.Status == "" {
		ch.Status = "active"
	}
	s.challenges[ch.ID] = ch
}

func (s *Store) IncrementCompletions(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	ch.TotalCompletions++
	s.challenges[id] = ch
	return nil
}

// --- completions ---

func (s *Store) InsertCompletion(_ context.Context, completion domain.ChallengeCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if completion.OneTime {
		// The insert itself guards the one-time invariant, so two concurrent
		// submissions cannot both pay after passing the pre-check.
		for _, c := range s.completions {
			if c.UserID == completion.UserID && c.ChallengeID == completion.ChallengeID {
				return domain.ErrChallengeAlreadyCompleted
			}
		}
	}
	s.completions = append(s.completions, completion)
	return nil
}

func (s *Store) HasCompleted(_ context.Context, userID, challengeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.completions {
		if c.UserID == userID && c.ChallengeID == challengeID {
			return true, nil
		}
	}
	return false, nil
}

// CompletionHistory exposes the completion side of the store under its own
// XPEarnedSince, since the Store's method of that name aggregates attempts.
type CompletionHistory struct{ *Store }

func (s *Store) Completions() CompletionHistory { return CompletionHistory{s} }

func (h CompletionHistory) XPEarnedSince(_ context.Context, since time.Time) (map[string]int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	totals := make(map[string]int)
	for _, c := range h.completions {
		if !c.CompletedAt.Before(since) {
			totals[c.UserID] += c.XPAwarded
		}
	}
	return totals, nil
}

// --- badges ---

func (s *Store) ListBadges(_ context.Context) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Badge, 0, len(s.badgeOrder))
	for _, id := range s.badgeOrder {
		out = append(out, s.badges[id])
	}
	return out, nil
}

func (s *Store) PutBadge(badge domain.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.badges[badge.ID]; !ok {
		s.badgeOrder = append(s.badgeOrder, badge.ID)
	}
	s.badges[badge.ID] = badge
}

func (s *Store) Award(_ context.Context, award domain.BadgeAward) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byBadge, ok := s.awards[award.UserID]
	if !ok {
		byBadge = make(map[string]domain.BadgeAward)
		s.awards[award.UserID] = byBadge
	}
	if _, exists := byBadge[award.BadgeID]; exists {
		return false, nil
	}
	byBadge[award.BadgeID] = award
	return true, nil
}

func (s *Store) EarnedBadgeIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.awards[userID]))
	for id := range s.awards[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func cloneUser(u domain.User) domain.User {
	u.Badges = append([]string(nil), u.Badges...)
	if u.LastActiveDate != nil {
		t := *u.LastActiveDate
		u.LastActiveDate = &t
	}
	return u
}
