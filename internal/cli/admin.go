package cli

import (
	"fmt"
	"strings"

	"daily-trivia-service/internal/config"
	"daily-trivia-service/internal/infra/postgres"
	"daily-trivia-service/internal/logger"
	"daily-trivia-service/internal/schedule"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd fills an empty questions table from the embedded bank.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the question pool if it is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Env)
			defer func() { _ = log.Sync() }()

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()

			n, err := postgres.NewSeeder(db).SeedQuestions(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				log.Info("questions table already populated, nothing seeded")
				return nil
			}
			log.Info("questions seeded", zap.Int("count", n))
			return nil
		},
	}
}

// NewResetCmd removes a player's attempt so they can play the day again.
func NewResetCmd(configPath *string) *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "reset <username>",
		Short: "Reset a player's attempt for a day (defaults to today)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			if day == 0 {
				epoch, err := cfg.EpochTime()
				if err != nil {
					return err
				}
				day = schedule.NewClock(epoch).Today()
			}
			if day < 1 {
				return fmt.Errorf("day must be positive, got %d", day)
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()

			summary, err := postgres.NewAdmin(db).ResetAttempt(cmd.Context(), username, day)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !summary.Removed() {
				fmt.Fprintf(out, "nothing to reset for %q on day %d\n", username, day)
				return nil
			}
			fmt.Fprintf(out, "reset %q on day %d: attempts=%d submissions=%d scores=%d\n",
				username, day, summary.Attempts, summary.Submissions, summary.Scores)
			return nil
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "day index to reset (default today)")
	return cmd
}

// NewRotationCmd prints the question ids served on a day.
func NewRotationCmd(configPath *string) *cobra.Command {
	var day int
	cmd := &cobra.Command{
		Use:   "rotation",
		Short: "Show the question ids of a day (defaults to today)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			epoch, err := cfg.EpochTime()
			if err != nil {
				return err
			}
			if day == 0 {
				day = schedule.NewClock(epoch).Today()
			}
			rotation := schedule.Rotation{PoolSize: cfg.Quiz.PoolSize, PerDay: cfg.Quiz.QuestionsPerDay}
			fmt.Fprintf(cmd.OutOrStdout(), "day %d: %v\n", day, rotation.QuestionIDs(day))
			return nil
		},
	}
	cmd.Flags().IntVar(&day, "day", 0, "day index (default today)")
	return cmd
}
