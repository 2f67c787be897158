package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"daily-trivia-service/internal/domain"
	"daily-trivia-service/internal/schedule"
	"go.uber.org/zap"
)

const defaultLeaderboardSize = 20

// Options tunes a TriviaService. Zero values fall back to defaults.
type Options struct {
	Clock           schedule.Clock
	LeaderboardSize int
	// Notifier receives post-commit snapshots; defaults to the service's Broadcaster.
	Notifier Notifier
	// Resetter handles admin resets; defaults to the store if it implements Resetter.
	Resetter Resetter
	Logger   *zap.Logger
}

// TriviaService is the daily quiz surface used by the transport layer.
type TriviaService struct {
	questions QuestionSource
	store     AttemptStore
	hub       *Broadcaster
	notifier  Notifier
	resetter  Resetter
	clock     schedule.Clock
	topN      int
	logger    *zap.Logger
}

func NewTriviaService(questions QuestionSource, store AttemptStore, hub *Broadcaster, opts Options) *TriviaService {
	if hub == nil {
		hub = NewBroadcaster()
	}
	s := &TriviaService{
		questions: questions,
		store:     store,
		hub:       hub,
		notifier:  opts.Notifier,
		resetter:  opts.Resetter,
		clock:     opts.Clock,
		topN:      opts.LeaderboardSize,
		logger:    opts.Logger,
	}
	if s.notifier == nil {
		s.notifier = hub
	}
	if s.resetter == nil {
		if r, ok := store.(Resetter); ok {
			s.resetter = r
		}
	}
	if s.topN <= 0 {
		s.topN = defaultLeaderboardSize
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// DayIndex returns today's day index.
func (s *TriviaService) DayIndex() int {
	return s.clock.Today()
}

// Status reports whether username already played today. It is advisory only;
// Submit enforces the one-attempt rule on its own.
func (s *TriviaService) Status(ctx context.Context, username string) (domain.DailyStatus, error) {
	user, err := normalizeUsername(username)
	if err != nil {
		return domain.DailyStatus{}, err
	}
	day := s.DayIndex()
	played, err := s.store.HasPlayed(ctx, user, day)
	if err != nil {
		return domain.DailyStatus{}, unavailable("status", err)
	}
	return domain.DailyStatus{DayIndex: day, Username: user, Played: played}, nil
}

// QuestionsForUser returns today's questions without answers.
// Users who already played get ErrAlreadyPlayed.
func (s *TriviaService) QuestionsForUser(ctx context.Context, username string) (int, []domain.PublicQuestion, error) {
	user, err := normalizeUsername(username)
	if err != nil {
		return 0, nil, err
	}
	day := s.DayIndex()
	played, err := s.store.HasPlayed(ctx, user, day)
	if err != nil {
		return day, nil, unavailable("questions", err)
	}
	if played {
		return day, nil, domain.ErrAlreadyPlayed
	}
	set, err := s.questions.ForDay(ctx, day)
	if err != nil {
		return day, nil, unavailable("questions", err)
	}
	return day, set.PublicQuestions(), nil
}

// Submit grades answers and records the user's single attempt for today.
//
// Reservation, submissions and score are written in one transaction. A unique
// key on (username, day) is the only guard against concurrent submissions, so
// of N racing calls exactly one commits and the rest get ErrAlreadyPlayed. Any
// failure rolls everything back, including the reservation.
func (s *TriviaService) Submit(ctx context.Context, username string, answers []domain.Answer) (domain.SubmitResult, error) {
	user, err := normalizeUsername(username)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if answers == nil {
		return domain.SubmitResult{}, fmt.Errorf("%w: answers must be a list", domain.ErrInvalidInput)
	}

	day := s.DayIndex()
	set, err := s.questions.ForDay(ctx, day)
	if err != nil {
		return domain.SubmitResult{}, unavailable("load questions", err)
	}

	// Once started the unit runs to commit or rollback; the store's own
	// timeout bounds it instead of the caller's cancellation.
	txCtx := context.WithoutCancel(ctx)

	var (
		graded []domain.Submission
		score  int
	)
	err = s.store.RunInTx(txCtx, func(ctx context.Context, tx AttemptTx) error {
		reserved, err := tx.ReserveAttempt(ctx, user, day)
		if err != nil {
			return fmt.Errorf("reserve attempt: %w", err)
		}
		if !reserved {
			return domain.ErrAlreadyPlayed
		}

		graded, score = gradeAnswers(user, set, answers)

		if len(graded) > 0 {
			if err := tx.InsertSubmissions(ctx, graded); err != nil {
				return fmt.Errorf("insert submissions: %w", err)
			}
		}
		inserted, err := tx.InsertScore(ctx, domain.Score{Username: user, DayIndex: day, Score: score})
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		if !inserted {
			return domain.ErrAlreadyPlayed
		}
		return nil
	})
	if err != nil {
		return domain.SubmitResult{}, s.classifySubmitError(user, day, err)
	}

	s.logger.Info("submission graded",
		zap.String("username", user),
		zap.Int("day_index", day),
		zap.Int("score", score),
		zap.Int("answers", len(graded)),
	)

	lb, err := s.LeaderboardFor(txCtx, day)
	if err != nil {
		s.logger.Warn("leaderboard refresh after submit failed", zap.Int("day_index", day), zap.Error(err))
		lb = domain.Leaderboard{DayIndex: day, Entries: []domain.LeaderboardEntry{}, UpdatedAt: s.now()}
	} else if err := s.notifier.Publish(txCtx, lb); err != nil {
		s.logger.Warn("leaderboard push failed", zap.Int("day_index", day), zap.Error(err))
	}

	return domain.SubmitResult{
		DayIndex:       day,
		Score:          score,
		Results:        answerResults(graded),
		CorrectAnswers: copyAnswers(set.CorrectAnswers),
		Explanations:   copyExplanations(set.Explanations),
		Leaderboard:    lb,
	}, nil
}

// Leaderboard returns today's ranking.
func (s *TriviaService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	return s.LeaderboardFor(ctx, s.DayIndex())
}

// LeaderboardFor reads the top scores of a day straight from the store.
func (s *TriviaService) LeaderboardFor(ctx context.Context, dayIndex int) (domain.Leaderboard, error) {
	scores, err := s.store.TopScores(ctx, dayIndex, s.topN)
	if err != nil {
		return domain.Leaderboard{}, unavailable("leaderboard", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for i, sc := range scores {
		entries = append(entries, domain.LeaderboardEntry{Rank: i + 1, Username: sc.Username, Score: sc.Score})
	}
	return domain.Leaderboard{DayIndex: dayIndex, Entries: entries, UpdatedAt: s.now()}, nil
}

// Subscribe returns a channel receiving leaderboard pushes of this process.
// The caller must invoke the returned cancel function.
func (s *TriviaService) Subscribe() (<-chan domain.Leaderboard, func()) {
	return s.hub.Subscribe()
}

// ResetAttempt deletes a user's attempt, submissions and score for a day.
func (s *TriviaService) ResetAttempt(ctx context.Context, username string, dayIndex int) (domain.ResetSummary, error) {
	user, err := normalizeUsername(username)
	if err != nil {
		return domain.ResetSummary{}, err
	}
	if dayIndex < 1 {
		return domain.ResetSummary{}, fmt.Errorf("%w: day index must be positive", domain.ErrInvalidInput)
	}
	if s.resetter == nil {
		return domain.ResetSummary{}, errors.New("reset not supported by this store")
	}
	summary, err := s.resetter.ResetAttempt(ctx, user, dayIndex)
	if err != nil {
		return domain.ResetSummary{}, unavailable("reset attempt", err)
	}
	s.logger.Info("attempt reset",
		zap.String("username", user),
		zap.Int("day_index", dayIndex),
		zap.Bool("removed", summary.Removed()),
	)
	return summary, nil
}

func (s *TriviaService) classifySubmitError(user string, day int, err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyPlayed):
		return domain.ErrAlreadyPlayed
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Warn("submission rolled back, store unavailable",
			zap.String("username", user), zap.Int("day_index", day), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrGradingFailure, err)
	default:
		s.logger.Error("submission rolled back",
			zap.String("username", user), zap.Int("day_index", day), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrGradingFailure, err)
	}
}

func (s *TriviaService) now() time.Time {
	if s.clock.Now != nil {
		return s.clock.Now()
	}
	return time.Now()
}

// gradeAnswers drops answers for questions not served today, keeps the last
// answer per question and marks each against the day's correct options.
func gradeAnswers(user string, set domain.DailyQuestionSet, answers []domain.Answer) ([]domain.Submission, int) {
	order := make([]int, 0, len(answers))
	latest := make(map[int]domain.Option, len(answers))
	for _, a := range answers {
		if !set.Contains(a.QuestionID) {
			continue
		}
		if _, seen := latest[a.QuestionID]; !seen {
			order = append(order, a.QuestionID)
		}
		latest[a.QuestionID] = a.Selected
	}

	graded := make([]domain.Submission, 0, len(order))
	score := 0
	for _, id := range order {
		selected := latest[id]
		correct, known := set.CorrectAnswers[id]
		isCorrect := known && selected == correct
		if isCorrect {
			score++
		}
		graded = append(graded, domain.Submission{
			Username:   user,
			QuestionID: id,
			DayIndex:   set.DayIndex,
			Selected:   selected,
			IsCorrect:  isCorrect,
		})
	}
	return graded, score
}

func answerResults(graded []domain.Submission) []domain.AnswerResult {
	out := make([]domain.AnswerResult, 0, len(graded))
	for _, g := range graded {
		out = append(out, domain.AnswerResult{QuestionID: g.QuestionID, Selected: g.Selected, Correct: g.IsCorrect})
	}
	return out
}

func copyAnswers(in map[int]domain.Option) map[int]domain.Option {
	out := make(map[int]domain.Option, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyExplanations(in map[int]string) map[int]string {
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func normalizeUsername(raw string) (string, error) {
	user := strings.TrimSpace(raw)
	if user == "" {
		return "", fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	return user, nil
}

// unavailable tags store failures outside the grading transaction as retryable.
func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
