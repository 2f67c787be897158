package domain

import "time"

// Option is an answer letter. Comparison is exact and case-sensitive.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// Valid reports whether o is one of A-D.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Question is read-only reference data owned by the store.
type Question struct {
	ID            int    `json:"id"`
	Text          string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption Option `json:"correct_option"`
	Explanation   string `json:"explanation,omitempty"`
}

// PublicQuestion is what a player sees before submitting.
type PublicQuestion struct {
	ID      int    `json:"id"`
	Text    string `json:"question_text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
	}
}

// DailyQuestionSet is the cached projection of one day's questions.
// It is rebuilt wholesale on day change and must be treated as read-only.
type DailyQuestionSet struct {
	DayIndex int
	// QuestionIDs is the selector output, in order, possibly with repeats.
	QuestionIDs []int
	// Questions holds the ids found in the store, in selector order, each once.
	Questions      []Question
	CorrectAnswers map[int]Option
	Explanations   map[int]string
}

// Contains reports whether id is in the day's rotation, stored or not.
func (s DailyQuestionSet) Contains(id int) bool {
	for _, served := range s.QuestionIDs {
		if served == id {
			return true
		}
	}
	return false
}

// PublicQuestions strips answers and explanations.
func (s DailyQuestionSet) PublicQuestions() []PublicQuestion {
	out := make([]PublicQuestion, 0, len(s.Questions))
	for _, q := range s.Questions {
		out = append(out, q.Public())
	}
	return out
}

// Answer is one raw answer from a client.
type Answer struct {
	QuestionID int    `json:"questionId"`
	Selected   Option `json:"selected"`
}

// Submission is one graded, persisted answer.
type Submission struct {
	Username   string `json:"username"`
	QuestionID int    `json:"questionId"`
	DayIndex   int    `json:"dayIndex"`
	Selected   Option `json:"selected"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Score is the per-attempt total and the leaderboard input.
type Score struct {
	Username string `json:"username"`
	DayIndex int    `json:"dayIndex"`
	Score    int    `json:"score"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Leaderboard is the ordered top-N of one day.
type Leaderboard struct {
	DayIndex  int                `json:"dayIndex"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerResult is the per-question outcome returned to the player.
type AnswerResult struct {
	QuestionID int    `json:"questionId"`
	Selected   Option `json:"selected"`
	Correct    bool   `json:"correct"`
}

// SubmitResult is returned after a committed grading transaction.
type SubmitResult struct {
	DayIndex       int            `json:"dayIndex"`
	Score          int            `json:"score"`
	Results        []AnswerResult `json:"results"`
	CorrectAnswers map[int]Option `json:"correctAnswers"`
	Explanations   map[int]string `json:"explanations"`
	Leaderboard    Leaderboard    `json:"leaderboard"`
}

// DailyStatus tells a client whether the user can still play today.
type DailyStatus struct {
	DayIndex int    `json:"dayIndex"`
	Username string `json:"username"`
	Played   bool   `json:"played"`
}

// ResetSummary counts rows removed by an admin reset.
type ResetSummary struct {
	Username    string `json:"username"`
	DayIndex    int    `json:"dayIndex"`
	Attempts    int64  `json:"attempts"`
	Submissions int64  `json:"submissions"`
	Scores      int64  `json:"scores"`
}

// Removed reports whether the reset found anything.
func (r ResetSummary) Removed() bool {
	return r.Attempts+r.Submissions+r.Scores > 0
}
