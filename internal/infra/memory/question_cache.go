package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
	"daily-trivia-service/internal/schedule"
	"golang.org/x/sync/singleflight"
)

// QuestionCache keeps the current day's questions in process memory.
// The entry is swapped as a whole on day change; readers never see a mix
// of two days.
type QuestionCache struct {
	loader   app.QuestionLoader
	rotation schedule.Rotation
	sf       singleflight.Group
	current  atomic.Pointer[domain.DailyQuestionSet]
}

func NewQuestionCache(loader app.QuestionLoader, rotation schedule.Rotation) *QuestionCache {
	return &QuestionCache{loader: loader, rotation: rotation}
}

// ForDay returns the cached set for dayIndex, loading it on a miss.
// A failed load leaves the previous entry in place.
func (c *QuestionCache) ForDay(ctx context.Context, dayIndex int) (domain.DailyQuestionSet, error) {
	if entry := c.current.Load(); entry != nil && entry.DayIndex == dayIndex {
		return *entry, nil
	}

	// Waiters share one load; it must not die with the caller that started it.
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := c.sf.Do(strconv.Itoa(dayIndex), func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if entry := c.current.Load(); entry != nil && entry.DayIndex == dayIndex {
			return entry, nil
		}

		ids := c.rotation.QuestionIDs(dayIndex)
		questions, err := c.loader.LoadQuestions(loadCtx, ids)
		if err != nil {
			return nil, fmt.Errorf("load questions for day %d: %w", dayIndex, err)
		}

		entry := buildDailySet(dayIndex, ids, questions)
		c.current.Store(entry)
		return entry, nil
	})
	if err != nil {
		return domain.DailyQuestionSet{}, err
	}
	return *result.(*domain.DailyQuestionSet), nil
}

// Current returns the cached entry, if any.
func (c *QuestionCache) Current() (domain.DailyQuestionSet, bool) {
	entry := c.current.Load()
	if entry == nil {
		return domain.DailyQuestionSet{}, false
	}
	return *entry, true
}

func buildDailySet(dayIndex int, ids []int, found map[int]domain.Question) *domain.DailyQuestionSet {
	entry := &domain.DailyQuestionSet{
		DayIndex:       dayIndex,
		QuestionIDs:    append([]int(nil), ids...),
		Questions:      make([]domain.Question, 0, len(ids)),
		CorrectAnswers: make(map[int]domain.Option, len(ids)),
		Explanations:   make(map[int]string, len(ids)),
	}
	for _, id := range ids {
		q, ok := found[id]
		if !ok {
			continue
		}
		if _, dup := entry.CorrectAnswers[id]; dup {
			continue
		}
		entry.Questions = append(entry.Questions, q)
		entry.CorrectAnswers[id] = q.CorrectOption
		entry.Explanations[id] = q.Explanation
	}
	return entry
}

// StaticQuestionLoader serves questions from a map (useful for tests/demos).
type StaticQuestionLoader struct {
	questions map[int]domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	byID := make(map[int]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &StaticQuestionLoader{questions: byID}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, ids []int) (map[int]domain.Question, error) {
	out := make(map[int]domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := l.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

// Size returns the number of questions held.
func (l *StaticQuestionLoader) Size() int {
	return len(l.questions)
}
