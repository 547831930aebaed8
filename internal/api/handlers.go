package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/service"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/httputil"
)

type RegisterRequest struct {
	Name       string `json:"name"`
	Password   string `json:"password"`
	ExternalID int64  `json:"external_id"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type ExternalAuthRequest struct {
	ExternalID int64 `json:"external_id"`
}

type ReminderPrefsRequest struct {
	Morning        string `json:"morning"`
	Evening        string `json:"evening"`
	TimezoneOffset int    `json:"timezone_offset"`
	Enabled        bool   `json:"enabled"`
}

type CreateGoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"desc"`
	Deadline    string `json:"deadline"`
}

type CreateGoalResponse struct {
	Goal   *entity.Goal    `json:"goal"`
	Stages []*entity.Stage `json:"stages"`
}

type DailyPlanRequest struct {
	Energy int    `json:"energy"`
	Mood   string `json:"mood"`
}

type RateDayRequest struct {
	Rating string `json:"rating"`
}

type StepOutcomeRequest struct {
	Outcome    string `json:"outcome"`
	SkipReason string `json:"skip_reason,omitempty"`
}

type SelectTopicRequest struct {
	GoalID string `json:"goal_id"`
}

type RateTensionRequest struct {
	Tension int `json:"tension"`
}

type UnblockRequest struct {
	Blocker string `json:"blocker"`
	Details string `json:"details,omitempty"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type QuizSubmitRequest struct {
	Answers []int `json:"answers"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req RegisterRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("registering error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.Register(ctx, &service.RegisterRequest{
		Name:       req.Name,
		Password:   req.Password,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserExists) {
			logger.Error("registering error: existed user")
			httputil.WriteErrorResponse(w, http.StatusConflict, "user with such name already exists", nil)
			return
		}
		logger.Error("registering error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during registration", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, map[string]any{
		"uid": user.ID.String(),
	})
	logger.Info("successful registration")
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req LoginRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("login error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.Login(ctx, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrWrongCredentials):
			logger.Error("login error: wrong credentials")
			httputil.WriteErrorResponse(w, http.StatusForbidden, "invalid username or password", nil)
			return
		default:
			logger.Error("login error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during login", nil)
			return
		}
	}
	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		logger.Error("login error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating token", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"uid":   user.ID.String(),
		"token": token,
	})
	logger.Info("successful login")
}

// ExternalAuth logs a user in by their messenger id, creating the profile
// on first contact. Meant for the bot frontend which already verified the
// id against the messenger.
func (s *Server) ExternalAuth(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req ExternalAuthRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.ExternalID == 0 {
		logger.Error("external auth error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.EnsureProfile(ctx, req.ExternalID)
	if err != nil {
		logger.Error("external auth error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during external auth", nil)
		return
	}
	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		logger.Error("external auth error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating token", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"uid":   user.ID.String(),
		"token": token,
	})
	logger.Info("external auth succeeded")
}

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("stats error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	stats, err := s.userService.Stats(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			logger.Error("stats error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
			return
		}
		logger.Error("stats error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while getting stats", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, stats)
	logger.Info("stats provided")
}

// GetHistory folds the recent daily logs through the reflection rules:
// per-day counts plus the window's aggregate and closing line.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("history error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 || days > 31 {
			logger.Error("history error: days out of range")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "days must be within 1-31", nil)
			return
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	history, err := s.userService.History(ctx, uid, days)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			logger.Error("history error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
			return
		}
		logger.Error("history error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while getting history", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, history)
	logger.Info("history provided")
}

// GetQuiz hands out the avoidance quiz catalog so the client can render it.
func (s *Server) GetQuiz(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"questions": domain.QuizQuestions,
	})
	logger.Info("quiz questions provided")
}

// SubmitQuiz grades the answers and returns the verdict. The verdict screen
// leads into the trial session start.
func (s *Server) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("quiz error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req QuizSubmitRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil || len(req.Answers) == 0 {
		logger.Error("quiz error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	verdict, err := s.quizService.Submit(ctx, uid, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("quiz error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
		default:
			logger.Error("quiz error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "couldn't grade the quiz: "+err.Error(), nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, verdict)
	logger.Info("quiz graded")
}

func (s *Server) UpdateReminderPrefs(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("reminder prefs error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req ReminderPrefsRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("reminder prefs error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	user, err := s.userService.UpdateReminderPrefs(ctx, uid, &service.ReminderPrefsRequest{
		Morning:        req.Morning,
		Evening:        req.Evening,
		TimezoneOffset: req.TimezoneOffset,
		Enabled:        req.Enabled,
	})
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("reminder prefs error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
		default:
			logger.Error("reminder prefs error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "couldn't update reminder preferences: "+err.Error(), nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"morning":          user.ReminderMorning,
		"evening":          user.ReminderEvening,
		"timezone_offset":  user.TimezoneOffset,
		"enabled":          user.RemindersEnabled,
		"next_morning_utc": user.NextMorningReminderAt,
		"next_evening_utc": user.NextEveningReminderAt,
	})
	logger.Info("reminder preferences updated")
}

func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("account deletion error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req DeleteAccountRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("account deletion error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err = s.userService.DeleteAccount(ctx, uid, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("account deletion error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
		case errors.Is(err, errorvalues.ErrWrongCredentials):
			logger.Error("account deletion error: wrong password")
			httputil.WriteErrorResponse(w, http.StatusForbidden, "wrong password", nil)
		default:
			logger.Error("account deletion error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while deleting account", nil)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logger.Info("account deleted")
}

func (s *Server) CreateGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("create goal error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req CreateGoalRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("create goal error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		logger.Error("create goal error: invalid deadline")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "deadline must be YYYY-MM-DD", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	goal, stages, err := s.goalService.CreateGoal(ctx, uid, req.Title, req.Description, deadline)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("create goal error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
		default:
			logger.Error("create goal error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "couldn't create goal: "+err.Error(), nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, CreateGoalResponse{Goal: goal, Stages: stages})
	logger.Info("goal created")
}

func (s *Server) ListGoals(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("list goals error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	goals, err := s.goalService.ListActive(ctx, uid)
	if err != nil {
		logger.Error("list goals error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while getting goals list", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"goals": goals})
	logger.Info("goals provided")
}

func (s *Server) AssignDailySteps(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("daily plan error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req DailyPlanRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("daily plan error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Energy < 1 || req.Energy > 10 {
		logger.Error("daily plan error: energy out of range")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "energy must be within 1-10", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	plan, err := s.goalService.AssignDailySteps(ctx, uid, req.Energy, req.Mood)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrGoalNotFound):
			logger.Error("daily plan error: no active goal")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "no active goal", nil)
		case errors.Is(err, errorvalues.ErrGoalComplete):
			logger.Info("daily plan: goal already complete")
			httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"goal_complete": true})
		default:
			logger.Error("daily plan error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while planning the day", nil)
		}
		return
	}
	if plan.RateLimited {
		logger.Info("daily plan: generation limit reached")
		httputil.WriteRateLimited(w, "daily generation limit reached", plan.ResetAt)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, plan)
	logger.Info("daily plan assigned")
}

func (s *Server) RateDay(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("rate day error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req RateDayRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Rating == "" {
		logger.Error("rate day error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err = s.goalService.RateDay(ctx, uid, req.Rating); err != nil {
		logger.Error("rate day error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while rating the day", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logger.Info("day rated")
}

func (s *Server) RecordStepOutcome(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("step outcome error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	stepID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		logger.Error("step outcome error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid step id in path value", nil)
		return
	}
	var req StepOutcomeRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("step outcome error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	outcome := service.StepOutcome(req.Outcome)
	if outcome != service.OutcomeCompleted && outcome != service.OutcomeSkipped {
		logger.Error("step outcome error: unknown outcome")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "outcome must be completed or skipped", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	result, err := s.progression.RecordStepOutcome(ctx, uid, stepID, outcome, req.SkipReason)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrStepNotFound):
			logger.Error("step outcome error: unexist step")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "step doesn't exist", nil)
		default:
			logger.Error("step outcome error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while recording outcome", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, result)
	logger.Info("step outcome recorded")
}

func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("session start error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	var view *service.SessionView
	if r.URL.Query().Get("trial") == "true" {
		view, err = s.sessionService.StartTrial(ctx, uid, s.goalService)
	} else {
		view, err = s.sessionService.Start(ctx, uid)
	}
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrGoalNotFound):
			logger.Error("session start error: no active goal")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "no active goal to work on", nil)
		default:
			logger.Error("session start error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while starting session", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, view)
	logger.Info("session started")
}

func (s *Server) SelectSessionTopic(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("session topic error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req SelectTopicRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("session topic error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	goalID, err := uuid.Parse(req.GoalID)
	if err != nil {
		logger.Error("session topic error: invalid goal id")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid goal id", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	view, err := s.sessionService.SelectTopic(ctx, uid, goalID)
	if err != nil {
		s.writeSessionError(w, logger, "session topic", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, view)
	logger.Info("session topic selected")
}

// RateTension serves both rating points of the run: the state machine
// decides whether the value lands before or after the actions.
func (s *Server) RateTension(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("session tension error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req RateTensionRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("session tension error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	view, err := s.sessionService.RateTensionBefore(ctx, uid, req.Tension)
	if errors.Is(err, errorvalues.ErrWrongSessionState) {
		view, err = s.sessionService.RateTensionAfter(ctx, uid, req.Tension)
	}
	if err != nil {
		s.writeSessionError(w, logger, "session tension", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, view)
	logger.Info("tension rated")
}

func (s *Server) CompleteBodyAction(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("body action error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	view, err := s.sessionService.CompleteBodyAction(ctx, uid)
	if err != nil {
		s.writeSessionError(w, logger, "body action", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, view)
	logger.Info("body action completed")
}

func (s *Server) CompleteTaskAction(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("task action error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	view, err := s.sessionService.CompleteTaskAction(ctx, uid)
	if err != nil {
		s.writeSessionError(w, logger, "task action", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, view)
	logger.Info("task action completed")
}

func (s *Server) Deepen(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("deepen error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	view, err := s.sessionService.Deepen(ctx, uid)
	if err != nil {
		s.writeSessionError(w, logger, "deepen", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, view)
	logger.Info("deepening step issued")
}

func (s *Server) CancelSession(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("session cancel error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	s.sessionService.Cancel(r.Context(), uid)
	w.WriteHeader(http.StatusNoContent)
	logger.Info("session cancelled")
}

func (s *Server) UnblockSuggestions(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("unblock error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req UnblockRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("unblock error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	result, err := s.sessionService.UnblockSuggestions(ctx, uid, req.Blocker, req.Details)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrGoalNotFound):
			logger.Error("unblock error: no active goal")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "no active goal to work on", nil)
		default:
			logger.Error("unblock error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while generating suggestions", nil)
		}
		return
	}
	if result.RateLimited {
		logger.Info("unblock: generation limit reached")
		httputil.WriteRateLimited(w, "unblock generation limit reached", result.ResetAt)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, result)
	logger.Info("unblock suggestions provided")
}

// CronTick runs one reminder sweep. Meant to be hit by an external
// scheduler; guarded by a shared token instead of user auth.
func (s *Server) CronTick(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	if s.cronToken == "" || r.Header.Get("X-Cron-Token") != s.cronToken {
		logger.Error("cron tick error: bad token")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()
	stats, err := s.reminderService.Sweep(ctx)
	if err != nil {
		logger.Error("cron tick error: sweep failed", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "reminder sweep failed", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, stats)
	logger.Info("reminder sweep finished",
		slog.Int("morning_sent", stats.MorningSent),
		slog.Int("evening_sent", stats.EveningSent),
	)
}

func (s *Server) writeSessionError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, errorvalues.ErrNoActiveSession):
		logger.Error(op + " error: no active session")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "no active session", nil)
	case errors.Is(err, errorvalues.ErrWrongSessionState):
		logger.Error(op + " error: wrong session state")
		httputil.WriteErrorResponse(w, http.StatusConflict, "action doesn't match session state", nil)
	case errors.Is(err, errorvalues.ErrGoalNotFound):
		logger.Error(op + " error: goal is gone")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "goal doesn't exist anymore, start over", nil)
	case errors.Is(err, errorvalues.ErrGoalComplete):
		logger.Info(op + ": goal already complete")
		httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"goal_complete": true})
	default:
		logger.Error(op+" error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during session", nil)
	}
}
