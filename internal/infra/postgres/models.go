package postgres

import (
	"time"

	"daily-trivia-service/internal/domain"
	"github.com/uptrace/bun"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int    `bun:"id,pk,autoincrement" yaml:"-"`
	QuestionText  string `bun:"question_text,notnull" yaml:"question_text"`
	OptionA       string `bun:"option_a,notnull" yaml:"option_a"`
	OptionB       string `bun:"option_b,notnull" yaml:"option_b"`
	OptionC       string `bun:"option_c,notnull" yaml:"option_c"`
	OptionD       string `bun:"option_d,notnull" yaml:"option_d"`
	CorrectOption string `bun:"correct_option,notnull" yaml:"correct_option"`
	Explanation   string `bun:"explanation,nullzero" yaml:"explanation"`
}

func (r questionRow) valid() bool {
	return r.QuestionText != "" && domain.Option(r.CorrectOption).Valid()
}

type attemptRow struct {
	bun.BaseModel `bun:"table:daily_attempts"`

	Username  string    `bun:"username,pk"`
	DayIndex  int       `bun:"day_index,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:daily_submissions"`

	ID             int64     `bun:"id,pk,autoincrement"`
	Username       string    `bun:"username,notnull"`
	QuestionID     int       `bun:"question_id,notnull"`
	DayIndex       int       `bun:"day_index,notnull"`
	SelectedOption string    `bun:"selected_option"`
	IsCorrect      bool      `bun:"is_correct,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type scoreRow struct {
	bun.BaseModel `bun:"table:daily_scores"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull"`
	Score     int       `bun:"score,notnull"`
	DayIndex  int       `bun:"day_index,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
