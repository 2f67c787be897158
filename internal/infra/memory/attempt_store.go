package memory

import (
	"context"
	"sort"
	"sync"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
)

type attemptKey struct {
	username string
	dayIndex int
}

// AttemptStore is an in-memory implementation of app.AttemptStore.
// A reservation holds the key as pending, so a concurrent transaction sees
// it as taken while readers do not; commit promotes it and rollback releases
// it. Submissions and scores become visible only on commit.
type AttemptStore struct {
	mu          sync.Mutex
	attempts    map[attemptKey]struct{}
	pending     map[attemptKey]struct{}
	submissions []domain.Submission
	scores      map[attemptKey]int
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[attemptKey]struct{}),
		pending:  make(map[attemptKey]struct{}),
		scores:   make(map[attemptKey]int),
	}
}

func (s *AttemptStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.AttemptTx) error) (err error) {
	tx := &memoryTx{store: s}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *AttemptStore) HasPlayed(_ context.Context, username string, dayIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attempts[attemptKey{username, dayIndex}]
	return ok, nil
}

func (s *AttemptStore) TopScores(_ context.Context, dayIndex, limit int) ([]domain.Score, error) {
	s.mu.Lock()
	scores := make([]domain.Score, 0, len(s.scores))
	for key, score := range s.scores {
		if key.dayIndex == dayIndex {
			scores = append(scores, domain.Score{Username: key.username, DayIndex: dayIndex, Score: score})
		}
	}
	s.mu.Unlock()

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Username < scores[j].Username
	})
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

func (s *AttemptStore) ResetAttempt(_ context.Context, username string, dayIndex int) (domain.ResetSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey{username, dayIndex}
	summary := domain.ResetSummary{Username: username, DayIndex: dayIndex}
	if _, ok := s.attempts[key]; ok {
		delete(s.attempts, key)
		summary.Attempts = 1
	}
	if _, ok := s.scores[key]; ok {
		delete(s.scores, key)
		summary.Scores = 1
	}
	kept := s.submissions[:0]
	for _, sub := range s.submissions {
		if sub.Username == username && sub.DayIndex == dayIndex {
			summary.Submissions++
			continue
		}
		kept = append(kept, sub)
	}
	s.submissions = kept
	return summary, nil
}

// Submissions returns committed submissions of a user for a day.
func (s *AttemptStore) Submissions(username string, dayIndex int) []domain.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Submission
	for _, sub := range s.submissions {
		if sub.Username == username && sub.DayIndex == dayIndex {
			out = append(out, sub)
		}
	}
	return out
}

// Score returns the committed score of a user for a day.
func (s *AttemptStore) Score(username string, dayIndex int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[attemptKey{username, dayIndex}]
	return score, ok
}

// ScoreCount returns the number of committed score rows for a day.
func (s *AttemptStore) ScoreCount(dayIndex int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.scores {
		if key.dayIndex == dayIndex {
			n++
		}
	}
	return n
}

type memoryTx struct {
	store       *AttemptStore
	reserved    []attemptKey
	submissions []domain.Submission
	scores      map[attemptKey]int
}

func (t *memoryTx) ReserveAttempt(_ context.Context, username string, dayIndex int) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	key := attemptKey{username, dayIndex}
	if _, taken := t.store.attempts[key]; taken {
		return false, nil
	}
	if _, taken := t.store.pending[key]; taken {
		return false, nil
	}
	t.store.pending[key] = struct{}{}
	t.reserved = append(t.reserved, key)
	return true, nil
}

func (t *memoryTx) InsertSubmissions(_ context.Context, submissions []domain.Submission) error {
	t.submissions = append(t.submissions, submissions...)
	return nil
}

func (t *memoryTx) InsertScore(_ context.Context, score domain.Score) (bool, error) {
	key := attemptKey{score.Username, score.DayIndex}
	t.store.mu.Lock()
	_, committed := t.store.scores[key]
	t.store.mu.Unlock()
	if committed {
		return false, nil
	}
	if _, staged := t.scores[key]; staged {
		return false, nil
	}
	if t.scores == nil {
		t.scores = make(map[attemptKey]int)
	}
	t.scores[key] = score.Score
	return true, nil
}

func (t *memoryTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, key := range t.reserved {
		delete(t.store.pending, key)
		t.store.attempts[key] = struct{}{}
	}
	t.store.submissions = append(t.store.submissions, t.submissions...)
	for key, score := range t.scores {
		t.store.scores[key] = score
	}
	t.reserved = nil
}

func (t *memoryTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, key := range t.reserved {
		delete(t.store.pending, key)
	}
	t.reserved = nil
	t.submissions = nil
	t.scores = nil
}
