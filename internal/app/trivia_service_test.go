package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
	"daily-trivia-service/internal/infra/memory"
	"daily-trivia-service/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var launch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSubmitGradesAgainstCorrectOptions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.service.Submit(ctx, "alice", []domain.Answer{
		{QuestionID: 1, Selected: "A"},
		{QuestionID: 2, Selected: "C"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DayIndex)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, []domain.AnswerResult{
		{QuestionID: 1, Selected: "A", Correct: true},
		{QuestionID: 2, Selected: "C", Correct: false},
	}, result.Results)
	assert.Len(t, result.CorrectAnswers, 10, "answers for the whole served set are revealed")
	assert.Equal(t, domain.OptionB, result.CorrectAnswers[2])
	assert.Equal(t, "two is B", result.Explanations[2])

	require.Len(t, result.Leaderboard.Entries, 1)
	assert.Equal(t, domain.LeaderboardEntry{Rank: 1, Username: "alice", Score: 1}, result.Leaderboard.Entries[0])

	score, ok := env.store.Score("alice", 1)
	require.True(t, ok)
	assert.Equal(t, 1, score)
	assert.Len(t, env.store.Submissions("alice", 1), 2)
}

func TestSubmitIsCaseSensitive(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.service.Submit(context.Background(), "alice", []domain.Answer{{QuestionID: 1, Selected: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
}

func TestSubmitIgnoresQuestionsOutsideTodaysSet(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.service.Submit(context.Background(), "bob", []domain.Answer{
		{QuestionID: 1, Selected: "A"},
		{QuestionID: 11, Selected: "A"},
		{QuestionID: 999, Selected: "B"},
		{QuestionID: -4, Selected: "B"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Score)
	subs := env.store.Submissions("bob", 1)
	require.Len(t, subs, 1)
	assert.Equal(t, 1, subs[0].QuestionID)
}

func TestSubmitRecordsUnstoredRotationIdAsIncorrect(t *testing.T) {
	// Question 4 is in the day's rotation but missing from the store.
	var pool []domain.Question
	for _, q := range sampleQuestions() {
		if q.ID != 4 {
			pool = append(pool, q)
		}
	}
	env := newTestEnv(t)
	env.cache = memory.NewQuestionCache(memory.NewStaticQuestionLoader(pool), schedule.Rotation{PoolSize: 10, PerDay: 10})
	service := env.withStore(env.store)

	result, err := service.Submit(context.Background(), "nora", []domain.Answer{
		{QuestionID: 3, Selected: "C"},
		{QuestionID: 4, Selected: "C"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)

	subs := env.store.Submissions("nora", 1)
	require.Len(t, subs, 2)
	assert.Equal(t, 4, subs[1].QuestionID)
	assert.False(t, subs[1].IsCorrect)
	_, revealed := result.CorrectAnswers[4]
	assert.False(t, revealed)
}

func TestSubmitLastDuplicateAnswerWins(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.service.Submit(context.Background(), "carol", []domain.Answer{
		{QuestionID: 1, Selected: "A"},
		{QuestionID: 2, Selected: "B"},
		{QuestionID: 1, Selected: "D"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Score)
	subs := env.store.Submissions("carol", 1)
	require.Len(t, subs, 2)
	assert.Equal(t, domain.Option("D"), subs[0].Selected)
	assert.False(t, subs[0].IsCorrect)
}

func TestSubmitEmptyAnswersScoresZero(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.service.Submit(context.Background(), "dave", []domain.Answer{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)

	played, err := env.store.HasPlayed(context.Background(), "dave", 1)
	require.NoError(t, err)
	assert.True(t, played)
}

func TestSubmitRejectsSecondAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.service.Submit(ctx, "alice", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)

	_, err = env.service.Submit(ctx, "  alice ", []domain.Answer{{QuestionID: 2, Selected: "B"}})
	require.ErrorIs(t, err, domain.ErrAlreadyPlayed)
	assert.False(t, domain.Retryable(err))

	score, _ := env.store.Score("alice", 1)
	assert.Equal(t, 1, score, "second attempt must not change the score")
	assert.Len(t, env.store.Submissions("alice", 1), 1)
}

func TestSubmitValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Submit(context.Background(), "   ", []domain.Answer{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.service.Submit(context.Background(), "erin", nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	played, _ := env.store.HasPlayed(context.Background(), "erin", 1)
	assert.False(t, played)
}

func TestConcurrentSubmitsScoreExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	const attempts = 32

	var succeeded, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := env.service.Submit(context.Background(), "racer", []domain.Answer{
				{QuestionID: 1, Selected: "A"},
				{QuestionID: 2, Selected: "B"},
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrAlreadyPlayed):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(attempts-1), rejected.Load())
	assert.Equal(t, 1, env.store.ScoreCount(1))
	assert.Len(t, env.store.Submissions("racer", 1), 2)
}

func TestSubmitRollsBackOnLateFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	failing := &faultyStore{AttemptStore: env.store, failScore: errors.New("disk full")}
	service := env.withStore(failing)

	_, err := service.Submit(ctx, "frank", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.ErrorIs(t, err, domain.ErrGradingFailure)
	assert.True(t, domain.Retryable(err))

	played, _ := env.store.HasPlayed(ctx, "frank", 1)
	assert.False(t, played, "reservation must be rolled back")
	assert.Empty(t, env.store.Submissions("frank", 1))
	_, ok := env.store.Score("frank", 1)
	assert.False(t, ok)

	// The failed submission did not consume the attempt.
	result, err := env.service.Submit(ctx, "frank", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
}

func TestSubmitReportsStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	failing := &faultyStore{
		AttemptStore: env.store,
		failReserve:  fmt.Errorf("begin: %w", domain.ErrStoreUnavailable),
	}
	service := env.withStore(failing)

	_, err := service.Submit(context.Background(), "gina", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, domain.ErrGradingFailure)
	assert.NotErrorIs(t, err, domain.ErrAlreadyPlayed)
	assert.True(t, domain.Retryable(err))
}

func TestSubmitDuplicateScoreIsAlreadyPlayed(t *testing.T) {
	env := newTestEnv(t)
	service := env.withStore(&faultyStore{AttemptStore: env.store, scoreTaken: true})

	_, err := service.Submit(context.Background(), "hank", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.ErrorIs(t, err, domain.ErrAlreadyPlayed)

	played, _ := env.store.HasPlayed(context.Background(), "hank", 1)
	assert.False(t, played)
	assert.Empty(t, env.store.Submissions("hank", 1))
}

func TestSubmitSurvivesCallerCancellation(t *testing.T) {
	env := newTestEnv(t)
	service := env.withStore(&faultyStore{AttemptStore: env.store, checkCtx: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := service.Submit(ctx, "ivy", []domain.Answer{{QuestionID: 2, Selected: "B"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	submitScore(t, env.service, "alice", 7)
	submitScore(t, env.service, "bob", 9)
	submitScore(t, env.service, "carol", 7)

	lb, err := env.service.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardEntry{
		{Rank: 1, Username: "bob", Score: 9},
		{Rank: 2, Username: "alice", Score: 7},
		{Rank: 3, Username: "carol", Score: 7},
	}, lb.Entries)
}

func TestLeaderboardIsBounded(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 25; i++ {
		submitScore(t, env.service, fmt.Sprintf("player%02d", i), i%10)
	}
	lb, err := env.service.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, lb.Entries, 20)
	assert.Equal(t, 9, lb.Entries[0].Score)
}

func TestSubscribeReceivesUpdatesAfterCommitOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	updates, cancel := env.service.Subscribe()
	defer cancel()

	_, err := env.service.Submit(ctx, "alice", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)

	select {
	case lb := <-updates:
		require.Len(t, lb.Entries, 1)
		assert.Equal(t, "alice", lb.Entries[0].Username)
	case <-time.After(time.Second):
		t.Fatal("expected leaderboard push")
	}

	_, err = env.service.Submit(ctx, "alice", []domain.Answer{})
	require.ErrorIs(t, err, domain.ErrAlreadyPlayed)
	select {
	case lb := <-updates:
		t.Fatalf("unexpected push after rejected submit: %+v", lb)
	default:
	}
}

func TestNotifierFailureDoesNotFailSubmit(t *testing.T) {
	env := newTestEnv(t)
	service := app.NewTriviaService(env.cache, env.store, nil, app.Options{
		Clock:    env.clock,
		Notifier: failingNotifier{},
	})
	_, err := service.Submit(context.Background(), "jill", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)
}

func TestQuestionsForUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	day, questions, err := env.service.QuestionsForUser(ctx, "kate")
	require.NoError(t, err)
	assert.Equal(t, 1, day)
	require.Len(t, questions, 10)
	assert.Equal(t, 1, questions[0].ID)
	assert.Equal(t, 10, questions[9].ID)

	_, err = env.service.Submit(ctx, "kate", []domain.Answer{})
	require.NoError(t, err)

	_, _, err = env.service.QuestionsForUser(ctx, "kate")
	require.ErrorIs(t, err, domain.ErrAlreadyPlayed)

	_, _, err = env.service.QuestionsForUser(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	status, err := env.service.Status(ctx, "leo")
	require.NoError(t, err)
	assert.Equal(t, domain.DailyStatus{DayIndex: 1, Username: "leo", Played: false}, status)

	_, err = env.service.Submit(ctx, "leo", []domain.Answer{})
	require.NoError(t, err)

	status, err = env.service.Status(ctx, "leo")
	require.NoError(t, err)
	assert.True(t, status.Played)
}

func TestResetAttemptAllowsReplay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.service.Submit(ctx, "mia", []domain.Answer{{QuestionID: 1, Selected: "B"}})
	require.NoError(t, err)

	summary, err := env.service.ResetAttempt(ctx, "mia", 1)
	require.NoError(t, err)
	assert.True(t, summary.Removed())

	result, err := env.service.Submit(ctx, "mia", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)

	_, err = env.service.ResetAttempt(ctx, "mia", 0)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDayRolloverServesNewSet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.service.Submit(ctx, "nick", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)

	env.now.Store(launch.Add(24 * time.Hour).UnixNano())
	assert.Equal(t, 2, env.service.DayIndex())

	// Pool is 10 wide, so day two wraps back to the same ids but the attempt key is new.
	result, err := env.service.Submit(ctx, "nick", []domain.Answer{{QuestionID: 1, Selected: "A"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DayIndex)
}

type testEnv struct {
	now     *atomic.Int64
	clock   schedule.Clock
	cache   *memory.QuestionCache
	store   *memory.AttemptStore
	service *app.TriviaService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := &atomic.Int64{}
	now.Store(launch.Add(2 * time.Hour).UnixNano())
	clock := schedule.Clock{Epoch: launch, Now: func() time.Time { return time.Unix(0, now.Load()).UTC() }}

	cache := memory.NewQuestionCache(memory.NewStaticQuestionLoader(sampleQuestions()), schedule.Rotation{PoolSize: 10, PerDay: 10})
	store := memory.NewAttemptStore()
	env := &testEnv{now: now, clock: clock, cache: cache, store: store}
	env.service = env.withStore(store)
	return env
}

func (e *testEnv) withStore(store app.AttemptStore) *app.TriviaService {
	return app.NewTriviaService(e.cache, store, app.NewBroadcaster(), app.Options{Clock: e.clock, LeaderboardSize: 20})
}

func sampleQuestions() []domain.Question {
	questions := []domain.Question{
		{ID: 1, Text: "One?", OptionA: "yes", OptionB: "no", OptionC: "maybe", OptionD: "never", CorrectOption: domain.OptionA, Explanation: "one is A"},
		{ID: 2, Text: "Two?", OptionA: "no", OptionB: "yes", OptionC: "maybe", OptionD: "never", CorrectOption: domain.OptionB, Explanation: "two is B"},
	}
	for id := 3; id <= 10; id++ {
		questions = append(questions, domain.Question{
			ID: id, Text: fmt.Sprintf("Q%d?", id), OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: domain.OptionC,
		})
	}
	return questions
}

// submitScore answers questions 3..(2+score) correctly; questions 3-10 are all C.
func submitScore(t *testing.T, service *app.TriviaService, user string, score int) {
	t.Helper()
	answers := []domain.Answer{}
	for i := 0; i < score && i < 8; i++ {
		answers = append(answers, domain.Answer{QuestionID: 3 + i, Selected: domain.OptionC})
	}
	if score > 8 {
		answers = append(answers, domain.Answer{QuestionID: 1, Selected: domain.OptionA})
	}
	result, err := service.Submit(context.Background(), user, answers)
	require.NoError(t, err)
	require.Equal(t, score, result.Score)
}

// faultyStore injects failures into the transaction of a real store.
type faultyStore struct {
	app.AttemptStore
	failReserve error
	failScore   error
	scoreTaken  bool
	checkCtx    bool
}

func (f *faultyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	return f.AttemptStore.RunInTx(ctx, func(ctx context.Context, tx app.AttemptTx) error {
		return fn(ctx, &faultyTx{AttemptTx: tx, store: f})
	})
}

type faultyTx struct {
	app.AttemptTx
	store *faultyStore
}

func (t *faultyTx) ReserveAttempt(ctx context.Context, username string, dayIndex int) (bool, error) {
	if t.store.checkCtx && ctx.Err() != nil {
		return false, ctx.Err()
	}
	if t.store.failReserve != nil {
		return false, t.store.failReserve
	}
	return t.AttemptTx.ReserveAttempt(ctx, username, dayIndex)
}

func (t *faultyTx) InsertScore(ctx context.Context, score domain.Score) (bool, error) {
	if t.store.failScore != nil {
		return false, t.store.failScore
	}
	if t.store.scoreTaken {
		return false, nil
	}
	return t.AttemptTx.InsertScore(ctx, score)
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, domain.Leaderboard) error {
	return errors.New("push down")
}
