package app

import (
	"context"

	"daily-trivia-service/internal/domain"
)

// QuestionLoader fetches questions by id. Ids not found are omitted from the result.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, ids []int) (map[int]domain.Question, error)
}

// QuestionSource returns the question set of a day (normally the process-local cache).
type QuestionSource interface {
	ForDay(ctx context.Context, dayIndex int) (domain.DailyQuestionSet, error)
}

// AttemptStore owns attempts, submissions and scores.
type AttemptStore interface {
	// RunInTx runs fn in one atomic unit. A non-nil error from fn rolls back
	// every write made through tx, and the unit's connection is always released.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx AttemptTx) error) error
	HasPlayed(ctx context.Context, username string, dayIndex int) (bool, error)
	// TopScores returns at most limit rows ordered by score desc, username asc.
	TopScores(ctx context.Context, dayIndex, limit int) ([]domain.Score, error)
}

// AttemptTx is the write side of one grading transaction.
type AttemptTx interface {
	// ReserveAttempt claims (username, dayIndex) through a store-level unique key.
	// It returns false when the key already exists.
	ReserveAttempt(ctx context.Context, username string, dayIndex int) (bool, error)
	InsertSubmissions(ctx context.Context, submissions []domain.Submission) error
	// InsertScore returns false when a score already exists for the key.
	InsertScore(ctx context.Context, score domain.Score) (bool, error)
}

// Resetter removes a user's attempt for a day, the admin override.
type Resetter interface {
	ResetAttempt(ctx context.Context, username string, dayIndex int) (domain.ResetSummary, error)
}

// Notifier receives leaderboard snapshots after a committed submission.
// Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, lb domain.Leaderboard) error
}
