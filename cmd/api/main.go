package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/api"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/notify"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/service"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/cleanup"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/config"
	jwtservice "github.com/RomaniumSSS/My-antipanic-bot/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	cfg := config.New()
	dbCfg := repository.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}

	usersRepo := repository.NewUsersRepo(&dbCfg)
	goalsRepo := repository.NewGoalsRepo(&dbCfg)
	stagesRepo := repository.NewStagesRepo(&dbCfg)
	stepsRepo := repository.NewStepsRepo(&dbCfg)
	dailyLogsRepo := repository.NewDailyLogsRepo(&dbCfg)

	dailyLogService := service.NewDailyLogService(dailyLogsRepo)
	progression := service.NewProgressionService(goalsRepo, stagesRepo, stepsRepo, usersRepo, dailyLogService)
	if min := cfg.GetInt("MIN_STEPS_FOR_AUTO_COMPLETE", 0); min > 0 {
		progression.SetMinStepsForAutoComplete(min)
	}

	gateway := ai.NewGateway(newGenerator(cfg), dailyLogService)
	goalService := service.NewGoalsService(goalsRepo, stagesRepo, usersRepo, progression, dailyLogService, gateway)
	sessionService := service.NewSessionService(
		service.NewSessionStore(),
		goalsRepo,
		usersRepo,
		progression,
		dailyLogService,
		gateway,
		service.AllowAllPaywall{},
	)

	notifier := newNotifier(cfg)
	reminderService := service.NewReminderService(usersRepo, notifier)
	userService := service.NewUserService(usersRepo, dailyLogService, reminderService)
	quizService := service.NewQuizService(usersRepo, gateway)

	stopSweeper := startReminderSweeper(reminderService, cfg.GetInt("REMINDER_SWEEP_SECONDS", 60))
	cleanup.Register(&cleanup.Job{Name: "reminder sweeper", F: func() error {
		stopSweeper()
		return nil
	}})
	defer cleanup.CleanUp()

	serv := api.New(&api.ServicesList{
		UserService:     userService,
		GoalService:     goalService,
		Progression:     progression,
		SessionService:  sessionService,
		ReminderService: reminderService,
		QuizService:     quizService,
		JwtService:      jwtservice.New(cfg.GetString("JWT_SECRET")),
		CronToken:       cfg.GetString("CRON_TOKEN"),
	})
	err := serv.Run(cfg.GetString("API_ADDRESS"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
}

func newGenerator(cfg *config.Config) ai.Generator {
	switch cfg.GetString("AI_PROVIDER") {
	case "openai":
		return ai.NewOpenAIGenerator(
			cfg.GetString("OPENAI_API_KEY"),
			cfg.GetString("OPENAI_MODEL"),
			cfg.GetString("OPENAI_ENDPOINT"),
		)
	default:
		return ai.NewAnthropicGenerator(
			cfg.GetString("ANTHROPIC_API_KEY"),
			cfg.GetString("ANTHROPIC_MODEL"),
			cfg.GetString("ANTHROPIC_ENDPOINT"),
		)
	}
}

func newNotifier(cfg *config.Config) notify.Notifier {
	token := cfg.GetString("MAX_BOT_TOKEN")
	if token == "" {
		slog.Info("no messenger token, notifications go to the log")
		return notify.NewLogNotifier()
	}
	notifier, err := notify.NewMaxNotifier(token)
	if err != nil {
		log.Fatal("creating messenger notifier error: " + err.Error())
	}
	return notifier
}

// startReminderSweeper runs periodic reminder sweeps until the returned
// stop function is called. The external /cron/tick endpoint stays usable
// as a manual trigger alongside it.
func startReminderSweeper(reminders *service.ReminderService, intervalSeconds int) func() {
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				stats, err := reminders.Sweep(ctx)
				cancel()
				if err != nil {
					slog.Error("reminder sweep failed", slog.String("error", err.Error()))
					continue
				}
				if stats.MorningSent > 0 || stats.EveningSent > 0 {
					slog.Info("reminder sweep finished",
						slog.Int("morning_sent", stats.MorningSent),
						slog.Int("evening_sent", stats.EveningSent),
					)
				}
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
