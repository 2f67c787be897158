package cli

import (
	"context"
	"fmt"
	"time"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/config"
	"daily-trivia-service/internal/infra/memory"
	"daily-trivia-service/internal/infra/postgres"
	redisinfra "daily-trivia-service/internal/infra/redis"
	"daily-trivia-service/internal/schedule"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runtime holds the wired service and whatever must be closed on shutdown.
type runtime struct {
	service *app.TriviaService
	hub     *app.Broadcaster
	bus     *redisinfra.LeaderboardBus
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRuntime picks Postgres when postgres.url is set and the in-memory
// store otherwise; Redis adds the shared question tier and cross-replica push.
func buildRuntime(ctx context.Context, cfg config.Config, log *zap.Logger) (*runtime, error) {
	epoch, err := cfg.EpochTime()
	if err != nil {
		return nil, err
	}
	rt := &runtime{hub: app.NewBroadcaster()}

	var (
		loader   app.QuestionLoader
		store    app.AttemptStore
		resetter app.Resetter
	)
	if cfg.Postgres.URL != "" {
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)

		db := postgres.OpenBun(cfg.Postgres.URL)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		admin := postgres.NewAdmin(db)

		timeout := config.TTLDuration(cfg.Postgres.Timeout, 5*time.Second)
		loader = postgres.NewQuestionLoader(pool, timeout)
		store = postgres.NewAttemptStore(pool, timeout, log)
		resetter = admin

		if n, err := admin.QuestionCount(ctx); err != nil {
			log.Warn("could not count questions", zap.Error(err))
		} else if n < cfg.Quiz.PoolSize {
			log.Warn("question pool smaller than quiz.pool_size, some days will serve fewer questions",
				zap.Int("rows", n), zap.Int("pool_size", cfg.Quiz.PoolSize))
		}
	} else {
		bank, err := postgres.BankQuestions()
		if err != nil {
			return nil, err
		}
		log.Warn("postgres url not configured, using in-memory store", zap.Int("questions", len(bank)))
		loader = memory.NewStaticQuestionLoader(bank)
		store = memory.NewAttemptStore()
	}

	var notifier app.Notifier
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		loader = redisinfra.NewQuestionLoader(client, loader, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), log)
		rt.bus = redisinfra.NewLeaderboardBus(client, cfg.Redis.Channel, log)
		notifier = rt.bus
	}

	cache := memory.NewQuestionCache(loader, schedule.Rotation{
		PoolSize: cfg.Quiz.PoolSize,
		PerDay:   cfg.Quiz.QuestionsPerDay,
	})
	rt.service = app.NewTriviaService(cache, store, rt.hub, app.Options{
		Clock:           schedule.NewClock(epoch),
		LeaderboardSize: cfg.Quiz.LeaderboardSize,
		Notifier:        notifier,
		Resetter:        resetter,
		Logger:          log,
	})
	return rt, nil
}
