package domain

import "errors"

var (
	// ErrAlreadyPlayed is returned when the user already holds today's attempt.
	ErrAlreadyPlayed = errors.New("already played today")
	// ErrInvalidInput indicates a malformed request (missing username, answers not a list).
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable marks transient store failures; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrGradingFailure marks an unexpected failure inside the grading transaction.
	// Every write of that transaction has been rolled back.
	ErrGradingFailure = errors.New("grading failed")
	// ErrUnauthorized is returned for admin operations without valid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// Retryable reports whether a caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrGradingFailure)
}
