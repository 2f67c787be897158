package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"daily-trivia-service/internal/domain"
	"github.com/uptrace/bun"
)

// Admin runs operator tasks over bun: attempt resets and pool inspection.
type Admin struct {
	db *bun.DB
}

func NewAdmin(db *bun.DB) *Admin {
	return &Admin{db: db}
}

// ResetAttempt deletes the attempt, submissions and score of a user for a
// day in one transaction.
func (a *Admin) ResetAttempt(ctx context.Context, username string, dayIndex int) (domain.ResetSummary, error) {
	summary := domain.ResetSummary{Username: username, DayIndex: dayIndex}
	err := a.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if summary.Attempts, err = deleteKey(ctx, tx, (*attemptRow)(nil), username, dayIndex); err != nil {
			return err
		}
		if summary.Submissions, err = deleteKey(ctx, tx, (*submissionRow)(nil), username, dayIndex); err != nil {
			return err
		}
		summary.Scores, err = deleteKey(ctx, tx, (*scoreRow)(nil), username, dayIndex)
		return err
	})
	if err != nil {
		return domain.ResetSummary{}, storeErr("reset attempt", err)
	}
	return summary, nil
}

func deleteKey(ctx context.Context, tx bun.Tx, model interface{}, username string, dayIndex int) (int64, error) {
	res, err := tx.NewDelete().
		Model(model).
		Where("username = ?", username).
		Where("day_index = ?", dayIndex).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete %T: %w", model, err)
	}
	return res.RowsAffected()
}

// QuestionCount returns the size of the question pool.
func (a *Admin) QuestionCount(ctx context.Context) (int, error) {
	n, err := a.db.NewSelect().Model((*questionRow)(nil)).Count(ctx)
	if err != nil {
		return 0, storeErr("count questions", err)
	}
	return n, nil
}
