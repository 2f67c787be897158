package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"daily-trivia-service/internal/domain"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

//go:embed seed/questions.yaml
var seedQuestionsYAML []byte

type seedFile struct {
	Questions []questionRow `yaml:"questions"`
}

// Seeder fills an empty questions table from the embedded bank.
type Seeder struct {
	db *bun.DB
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedQuestions inserts the bank when the table is empty and returns the
// number of rows inserted. A non-empty table is left untouched.
func (s *Seeder) SeedQuestions(ctx context.Context) (int, error) {
	rows, err := seedBank()
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing, err := tx.NewSelect().Model((*questionRow)(nil)).Count(ctx)
		if err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		if existing > 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Returning("NULL").Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		inserted = len(rows)
		return nil
	})
	if err != nil {
		return 0, storeErr("seed questions", err)
	}
	return inserted, nil
}

// BankQuestions returns the embedded bank as domain questions, numbered from 1
// in file order the way a fresh table assigns ids. It backs the in-memory mode.
func BankQuestions() ([]domain.Question, error) {
	rows, err := seedBank()
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, 0, len(rows))
	for i, row := range rows {
		questions = append(questions, domain.Question{
			ID:            i + 1,
			Text:          row.QuestionText,
			OptionA:       row.OptionA,
			OptionB:       row.OptionB,
			OptionC:       row.OptionC,
			OptionD:       row.OptionD,
			CorrectOption: domain.Option(row.CorrectOption),
			Explanation:   row.Explanation,
		})
	}
	return questions, nil
}

func seedBank() ([]questionRow, error) {
	var file seedFile
	if err := yaml.Unmarshal(seedQuestionsYAML, &file); err != nil {
		return nil, fmt.Errorf("decode seed bank: %w", err)
	}
	for i, row := range file.Questions {
		if !row.valid() {
			return nil, fmt.Errorf("seed question %d is invalid", i+1)
		}
	}
	return file.Questions, nil
}
