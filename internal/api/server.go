package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/service"
)

type Server struct {
	mx              *chi.Mux
	userService     service.UserServiceI
	goalService     service.GoalServiceI
	progression     service.ProgressionServiceI
	sessionService  *service.SessionService
	reminderService *service.ReminderService
	quizService     service.QuizServiceI
	jwtService      JWTServiceI
	cronToken       string
}

type ServicesList struct {
	UserService     service.UserServiceI
	GoalService     service.GoalServiceI
	Progression     service.ProgressionServiceI
	SessionService  *service.SessionService
	ReminderService *service.ReminderService
	QuizService     service.QuizServiceI
	JwtService      JWTServiceI
	CronToken       string
}

func New(servicesOptions *ServicesList) *Server {
	return &Server{
		mx:              chi.NewMux(),
		userService:     servicesOptions.UserService,
		goalService:     servicesOptions.GoalService,
		progression:     servicesOptions.Progression,
		sessionService:  servicesOptions.SessionService,
		reminderService: servicesOptions.ReminderService,
		quizService:     servicesOptions.QuizService,
		jwtService:      servicesOptions.JwtService,
		cronToken:       servicesOptions.CronToken,
	}
}

func (s *Server) Run(address string) error {
	s.mx.Use(s.RequestIDMiddleware)
	s.mx.Use(s.SettingUpLoggerMiddleware)

	s.mx.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)
		r.Post("/auth/external", s.ExternalAuth)
		r.Post("/cron/tick", s.CronTick)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Use(s.LoggerExtensionMiddleware)

			r.Get("/me/stats", s.GetStats)
			r.Get("/me/history", s.GetHistory)
			r.Put("/me/reminders", s.UpdateReminderPrefs)
			r.Delete("/me", s.DeleteAccount)

			r.Get("/quiz", s.GetQuiz)
			r.Post("/quiz", s.SubmitQuiz)

			r.Post("/goals", s.CreateGoal)
			r.Get("/goals", s.ListGoals)

			r.Post("/days/plan", s.AssignDailySteps)
			r.Post("/days/rating", s.RateDay)
			r.Post("/steps/{id}/outcome", s.RecordStepOutcome)

			r.Post("/sessions", s.StartSession)
			r.Post("/sessions/topic", s.SelectSessionTopic)
			r.Post("/sessions/tension", s.RateTension)
			r.Post("/sessions/body/done", s.CompleteBodyAction)
			r.Post("/sessions/task/done", s.CompleteTaskAction)
			r.Post("/sessions/deepen", s.Deepen)
			r.Delete("/sessions", s.CancelSession)

			r.Post("/unblock", s.UnblockSuggestions)
		})
	})

	server := &http.Server{
		Addr:              address,
		Handler:           s.mx,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
