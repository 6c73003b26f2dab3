package domain

import "errors"

var (
	// ErrUserNotFound is returned when a user id cannot be resolved.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrChallengeNotFound indicates an unknown challenge id.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrBadgeNotFound indicates an unknown badge id.
	ErrBadgeNotFound = errors.New("badge not found")
	// ErrChallengeAlreadyCompleted is returned when a one-time challenge is
	// completed a second time by the same user.
	ErrChallengeAlreadyCompleted = errors.New("challenge already completed")
	// ErrUserAlreadyExists rejects re-registration of an existing id; the
	// stored progression record is never replaced.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidInput is returned for malformed submissions; never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict signals a concurrent-mutation race (stale version on a user
	// update, or a lost badge-award insert race). Retried with bounded attempts.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrUnavailable signals a persistence/clock collaborator failure that is
	// worth retrying before being surfaced as transient.
	ErrUnavailable = errors.New("dependency unavailable")
)

// Retryable reports whether the engine may retry the operation internally.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}
