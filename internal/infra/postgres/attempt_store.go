package postgres

import (
	"context"
	"errors"
	"time"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// AttemptStore persists attempts, submissions and scores in Postgres.
// The primary key of daily_attempts and the unique key of daily_scores on
// (username, day_index) enforce one attempt per user per day.
type AttemptStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

func NewAttemptStore(pool *pgxpool.Pool, timeout time.Duration, logger *zap.Logger) *AttemptStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptStore{pool: pool, timeout: timeout, logger: logger}
}

func (s *AttemptStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr("begin", err)
	}
	defer func() {
		p := recover()
		if err == nil && p == nil {
			return
		}
		rbCtx, rbCancel := context.WithTimeout(context.Background(), s.timeout)
		defer rbCancel()
		if rbErr := pgTx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		if p != nil {
			panic(p)
		}
	}()

	if err = fn(ctx, &attemptTx{tx: pgTx}); err != nil {
		return err
	}
	if err = pgTx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *AttemptStore) HasPlayed(ctx context.Context, username string, dayIndex int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var played bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_attempts WHERE username = $1 AND day_index = $2)`,
		username, dayIndex,
	).Scan(&played)
	if err != nil {
		return false, storeErr("has played", err)
	}
	return played, nil
}

// TopScores orders ties by the byte order of username so the ranking does
// not depend on the database collation.
func (s *AttemptStore) TopScores(ctx context.Context, dayIndex, limit int) ([]domain.Score, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT username, score
		FROM daily_scores
		WHERE day_index = $1
		ORDER BY score DESC, username COLLATE "C" ASC
		LIMIT $2`, dayIndex, limit)
	if err != nil {
		return nil, storeErr("top scores", err)
	}
	defer rows.Close()

	scores := make([]domain.Score, 0, limit)
	for rows.Next() {
		sc := domain.Score{DayIndex: dayIndex}
		if err := rows.Scan(&sc.Username, &sc.Score); err != nil {
			return nil, storeErr("scan score", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("top scores", err)
	}
	return scores, nil
}

type attemptTx struct {
	tx pgx.Tx
}

func (t *attemptTx) ReserveAttempt(ctx context.Context, username string, dayIndex int) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO daily_attempts (username, day_index)
		VALUES ($1, $2)
		ON CONFLICT (username, day_index) DO NOTHING`, username, dayIndex)
	if err != nil {
		return false, storeErr("reserve attempt", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *attemptTx) InsertSubmissions(ctx context.Context, submissions []domain.Submission) error {
	batch := &pgx.Batch{}
	for _, sub := range submissions {
		batch.Queue(`
			INSERT INTO daily_submissions (username, question_id, day_index, selected_option, is_correct)
			VALUES ($1, $2, $3, $4, $5)`,
			sub.Username, sub.QuestionID, sub.DayIndex, string(sub.Selected), sub.IsCorrect)
	}
	br := t.tx.SendBatch(ctx, batch)
	for range submissions {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return storeErr("insert submission", err)
		}
	}
	if err := br.Close(); err != nil {
		return storeErr("insert submissions", err)
	}
	return nil
}

func (t *attemptTx) InsertScore(ctx context.Context, score domain.Score) (bool, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO daily_scores (username, score, day_index) VALUES ($1, $2, $3)`,
		score.Username, score.Score, score.DayIndex)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, storeErr("insert score", err)
	}
	return true, nil
}
