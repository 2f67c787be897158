package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader is a read-through Redis tier in front of the question store,
// shared by every replica. Each question is stored as JSON:
// SET trivia:question:{id} {json} EX ttl
// Redis failures fall back to the source; they never fail a load on their own.
type QuestionLoader struct {
	client *redis.Client
	source app.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	logger *zap.Logger
}

func NewQuestionLoader(client *redis.Client, source app.QuestionLoader, ttl time.Duration, logger *zap.Logger) *QuestionLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionLoader{client: client, source: source, ttl: ttl, logger: logger}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, ids []int) (map[int]domain.Question, error) {
	out := make(map[int]domain.Question, len(ids))
	missing := l.fromCache(ctx, ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	result, err, _ := l.sf.Do(flightKey(missing), func() (interface{}, error) {
		// Re-check cache in case another replica or goroutine filled it.
		loaded := make(map[int]domain.Question, len(missing))
		stillMissing := l.fromCache(ctx, missing, loaded)
		if len(stillMissing) == 0 {
			return loaded, nil
		}

		fresh, err := l.source.LoadQuestions(ctx, stillMissing)
		if err != nil {
			return nil, err
		}
		l.fill(ctx, fresh)
		for id, q := range fresh {
			loaded[id] = q
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	for id, q := range result.(map[int]domain.Question) {
		out[id] = q
	}
	return out, nil
}

// fromCache copies cached questions into out and returns the ids not found.
func (l *QuestionLoader) fromCache(ctx context.Context, ids []int, out map[int]domain.Question) []int {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = questionKey(id)
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		l.logger.Warn("question cache read failed", zap.Error(err))
		return append([]int(nil), ids...)
	}

	var missing []int
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil || q.ID != ids[i] {
			missing = append(missing, ids[i])
			continue
		}
		out[q.ID] = q
	}
	return missing
}

func (l *QuestionLoader) fill(ctx context.Context, questions map[int]domain.Question) {
	if len(questions) == 0 {
		return
	}
	ttl := l.ttlWithJitter()
	pipe := l.client.Pipeline()
	for id, q := range questions {
		payload, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, questionKey(id), payload, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("question cache fill failed", zap.Error(err))
	}
}

// ttlWithJitter adds up to 10% so replicas do not expire together.
func (l *QuestionLoader) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	jitterMax := int64(l.ttl) / 10
	return l.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

func questionKey(id int) string {
	return "trivia:question:" + strconv.Itoa(id)
}

func flightKey(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
