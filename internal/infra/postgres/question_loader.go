package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"daily-trivia-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads question rows from Postgres by id.
// Each load is bounded by timeout; callers may pass an uncancelable context.
type QuestionLoader struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewQuestionLoader(pool *pgxpool.Pool, timeout time.Duration) *QuestionLoader {
	return &QuestionLoader{pool: pool, timeout: timeout}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, ids []int) (map[int]domain.Question, error) {
	out := make(map[int]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	keys := make([]int32, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, int32(id))
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, question_text, option_a, option_b, option_c, option_d, correct_option, explanation
		FROM questions
		WHERE id = ANY($1::int[])`, keys)
	if err != nil {
		return nil, storeErr("load questions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q           domain.Question
			id          int32
			correct     string
			explanation *string
		)
		if err := rows.Scan(&id, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &correct, &explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.ID = int(id)
		q.CorrectOption = domain.Option(strings.TrimSpace(correct))
		if explanation != nil {
			q.Explanation = *explanation
		}
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load questions", err)
	}
	return out, nil
}

