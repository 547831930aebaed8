package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

const (
	bodyStepMinutes = 2
	bodyStepReward  = 3
	microStepReward = 5

	deepenMinMinutes = 15
	deepenMaxMinutes = 30
)

// SessionView is what each transition hands back to the caller surface.
type SessionView struct {
	State       SessionState   `json:"state"`
	Goals       []*entity.Goal `json:"goals,omitempty"`
	ActionText  string         `json:"action_text,omitempty"`
	Step        *entity.Step   `json:"step,omitempty"`
	OfferDeepen bool           `json:"offer_deepen,omitempty"`
	RateLimited bool           `json:"rate_limited,omitempty"`
	ResetAt     time.Time      `json:"reset_at,omitempty"`
	Paywalled   bool           `json:"paywalled,omitempty"`
	Finished    bool           `json:"finished,omitempty"`
}

// SessionService drives the guided unblock run: tension rating, one body
// action, one task micro action, re-rating, then deepen or stop.
type SessionService struct {
	store       *SessionStore
	goalsRepo   repository.GoalsRepositoryI
	usersRepo   repository.UsersRepositoryI
	progression ProgressionServiceI
	dailyLogs   DailyLogServiceI
	gateway     GatewayI
	paywall     PaywallGate
	now         func() time.Time
}

func NewSessionService(
	store *SessionStore,
	goalsRepo repository.GoalsRepositoryI,
	usersRepo repository.UsersRepositoryI,
	progression ProgressionServiceI,
	dailyLogs DailyLogServiceI,
	gateway GatewayI,
	paywall PaywallGate,
) *SessionService {
	if store == nil || goalsRepo == nil || usersRepo == nil || progression == nil || dailyLogs == nil || gateway == nil {
		log.Fatal("on session service provided nil dependencies")
	}
	if paywall == nil {
		paywall = AllowAllPaywall{}
	}
	return &SessionService{
		store:       store,
		goalsRepo:   goalsRepo,
		usersRepo:   usersRepo,
		progression: progression,
		dailyLogs:   dailyLogs,
		gateway:     gateway,
		paywall:     paywall,
		now:         time.Now,
	}
}

// Start opens a session. With a single active goal the topic is
// auto-selected; with several the caller chooses first.
func (serv *SessionService) Start(ctx context.Context, userID uuid.UUID) (*SessionView, error) {
	goals, err := serv.goalsRepo.ListByStatus(ctx, userID, entity.GoalActive)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	if len(goals) == 0 {
		return nil, errorvalues.ErrGoalNotFound
	}
	if len(goals) > 1 {
		serv.store.Put(&Session{UserID: userID, State: StateSelectingTopic})
		return &SessionView{State: StateSelectingTopic, Goals: goals}, nil
	}
	serv.store.Put(&Session{UserID: userID, State: StateRatingTensionBefore, GoalID: goals[0].ID})
	return &SessionView{State: StateRatingTensionBefore}, nil
}

// StartTrial is the post-diagnosis short-circuit: it skips topic selection
// and seeds (or reuses) the short-lived onboarding goal.
func (serv *SessionService) StartTrial(ctx context.Context, userID uuid.UUID, goals GoalServiceI) (*SessionView, error) {
	goal, err := goals.EnsureTrialGoal(ctx, userID)
	if err != nil {
		return nil, err
	}
	serv.store.Put(&Session{UserID: userID, State: StateRatingTensionBefore, GoalID: goal.ID, Trial: true})
	return &SessionView{State: StateRatingTensionBefore}, nil
}

func (serv *SessionService) SelectTopic(ctx context.Context, userID, goalID uuid.UUID) (*SessionView, error) {
	s, err := serv.sessionIn(userID, StateSelectingTopic)
	if err != nil {
		return nil, err
	}
	goal, err := serv.loadGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	s.GoalID = goal.ID
	s.State = StateRatingTensionBefore
	serv.store.Put(s)
	return &SessionView{State: StateRatingTensionBefore}, nil
}

// RateTensionBefore stores the 0-10 rating and hands out the body action:
// a deterministic catalog pick, materialized as a small easy step.
func (serv *SessionService) RateTensionBefore(ctx context.Context, userID uuid.UUID, tension int) (*SessionView, error) {
	s, err := serv.sessionIn(userID, StateRatingTensionBefore)
	if err != nil {
		return nil, err
	}
	if tension < 0 || tension > 10 {
		return nil, errors.New("tension must be within 0-10")
	}
	goal, err := serv.loadGoal(ctx, userID, s.GoalID)
	if err != nil {
		return nil, err
	}
	s.TensionBefore = &tension

	actionText := domain.BodyActionFor(userID)
	energy := domain.EnergyFromTension(s.TensionBefore)
	step, err := serv.progression.CreateStep(ctx, userID, goal, StepPlan{
		Title:      actionText,
		Difficulty: entity.DifficultyEasy,
		Minutes:    bodyStepMinutes,
		Reward:     bodyStepReward,
		EnergyHint: &energy,
		MoodHint:   "body_action",
	})
	if err != nil {
		return nil, err
	}
	s.BodyStepID = step.ID
	s.State = StateDoingBodyAction
	serv.store.Put(s)
	return &SessionView{State: StateDoingBodyAction, ActionText: actionText, Step: step}, nil
}

// CompleteBodyAction finishes the body step and requests the task micro
// action from the gateway. An exhausted quota degrades to a generic
// deterministic action so the run keeps moving.
func (serv *SessionService) CompleteBodyAction(ctx context.Context, userID uuid.UUID) (*SessionView, error) {
	s, err := serv.sessionIn(userID, StateDoingBodyAction)
	if err != nil {
		return nil, err
	}
	goal, err := serv.loadGoal(ctx, userID, s.GoalID)
	if err != nil {
		return nil, err
	}
	if _, err := serv.progression.RecordStepOutcome(ctx, userID, s.BodyStepID, OutcomeCompleted, ""); err != nil {
		return nil, err
	}

	stage, err := serv.progression.EnsureActiveStage(ctx, goal)
	if err != nil {
		return nil, err
	}
	tctx, err := serv.toneContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	energy := domain.EnergyFromTension(s.TensionBefore)
	gen, err := serv.gateway.MicroStep(ctx, tctx, stage.Title, energy, "getting moving through a micro step")
	if err != nil {
		return nil, err
	}
	view := &SessionView{State: StateDoingTaskMicroAction}
	title := gen.Text
	if gen.RateLimited {
		title = "Open the task and do the smallest visible piece. 2 minutes."
		view.RateLimited = true
		view.ResetAt = gen.ResetAt
	}
	step, err := serv.progression.CreateStep(ctx, userID, goal, StepPlan{
		Title:      title,
		Difficulty: entity.DifficultyEasy,
		Minutes:    domain.MaxStepMinutes(energy, true),
		Reward:     microStepReward,
		EnergyHint: &energy,
		MoodHint:   "task_micro_action",
	})
	if err != nil {
		return nil, err
	}
	s.TaskStepID = step.ID
	s.State = StateDoingTaskMicroAction
	serv.store.Put(s)
	view.ActionText = title
	view.Step = step
	return view, nil
}

func (serv *SessionService) CompleteTaskAction(ctx context.Context, userID uuid.UUID) (*SessionView, error) {
	s, err := serv.sessionIn(userID, StateDoingTaskMicroAction)
	if err != nil {
		return nil, err
	}
	if _, err := serv.progression.RecordStepOutcome(ctx, userID, s.TaskStepID, OutcomeCompleted, ""); err != nil {
		return nil, err
	}
	s.State = StateRatingTensionAfter
	serv.store.Put(s)
	return &SessionView{State: StateRatingTensionAfter}, nil
}

// RateTensionAfter compares against the before rating and either offers
// deepening or finishes the run.
func (serv *SessionService) RateTensionAfter(ctx context.Context, userID uuid.UUID, tension int) (*SessionView, error) {
	s, err := serv.sessionIn(userID, StateRatingTensionAfter)
	if err != nil {
		return nil, err
	}
	if tension < 0 || tension > 10 {
		return nil, errors.New("tension must be within 0-10")
	}
	s.TensionAfter = &tension
	if domain.ShouldOfferDeepening(s.TensionBefore, s.TensionAfter) {
		s.State = StateOfferedDeepen
		serv.store.Put(s)
		return &SessionView{State: StateOfferedDeepen, OfferDeepen: true}, nil
	}
	serv.store.Delete(userID)
	return &SessionView{Finished: true}, nil
}

// Deepen asks for a 15-30 minute follow-up, taking the first candidate
// that fits the budget, else the first candidate, else a generic step.
// Trial sessions pass through the paywall gate first.
func (serv *SessionService) Deepen(ctx context.Context, userID uuid.UUID) (*SessionView, error) {
	s, err := serv.sessionIn(userID, StateOfferedDeepen)
	if err != nil {
		return nil, err
	}
	if s.Trial && !serv.paywall.Allow(userID) {
		serv.store.Delete(userID)
		return &SessionView{Paywalled: true, Finished: true}, nil
	}
	goal, err := serv.loadGoal(ctx, userID, s.GoalID)
	if err != nil {
		return nil, err
	}
	stage, err := serv.progression.EnsureActiveStage(ctx, goal)
	if err != nil {
		return nil, err
	}
	tctx, err := serv.toneContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	energy := domain.EnergyFromTension(s.TensionAfter)
	gen, err := serv.gateway.DailySteps(ctx, tctx, stage.Title, energy, "ready for a short sprint")
	if err != nil {
		return nil, err
	}
	view := &SessionView{State: StateDeepening}
	plan := pickDeepenPlan(gen.Plans)
	if gen.RateLimited {
		plan = ai.StepPlan{Title: "Do one solid chunk of the current stage", Difficulty: "medium", Minutes: deepenMaxMinutes}
		view.RateLimited = true
		view.ResetAt = gen.ResetAt
	}
	difficulty := entity.Difficulty(plan.Difficulty)
	if difficulty != entity.DifficultyEasy && difficulty != entity.DifficultyMedium && difficulty != entity.DifficultyHard {
		difficulty = entity.DifficultyMedium
	}
	step, err := serv.progression.CreateStep(ctx, userID, goal, StepPlan{
		Title:      plan.Title,
		Difficulty: difficulty,
		Minutes:    plan.Minutes,
		Reward:     domain.RewardFor(difficulty, plan.Minutes),
		EnergyHint: &energy,
		MoodHint:   "deepening",
	})
	if err != nil {
		return nil, err
	}
	s.DeepenStepID = step.ID
	s.State = StateDeepening
	serv.store.Put(s)
	view.ActionText = step.Title
	view.Step = step
	return view, nil
}

// Finish closes the session from any state. Steps already created stay in
// the backlog on purpose.
func (serv *SessionService) Finish(ctx context.Context, userID uuid.UUID) (*SessionView, error) {
	serv.store.Delete(userID)
	return &SessionView{Finished: true}, nil
}

// Cancel is Finish under a clearer name for mid-flow abandonment.
func (serv *SessionService) Cancel(ctx context.Context, userID uuid.UUID) {
	serv.store.Delete(userID)
}

// UnblockSuggestions is the quick stuck-help path: it does not require a
// live session and returns 2-3 alternative micro moves for the blocker.
func (serv *SessionService) UnblockSuggestions(ctx context.Context, userID uuid.UUID, rawBlocker, details string) (*ai.SuggestionsResult, error) {
	goals, err := serv.goalsRepo.ListByStatus(ctx, userID, entity.GoalActive)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	if len(goals) == 0 {
		return nil, errorvalues.ErrGoalNotFound
	}
	stage, err := serv.progression.EnsureActiveStage(ctx, goals[0])
	if err != nil {
		return nil, err
	}
	tctx, err := serv.toneContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	blocker := domain.NormalizeBlocker(rawBlocker)
	count := domain.SuggestionCount(details != "")
	result, err := serv.gateway.UnblockSuggestions(ctx, tctx, stage.Title, blocker, details, count)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// sessionIn fetches the live session and asserts its state.
func (serv *SessionService) sessionIn(userID uuid.UUID, want SessionState) (*Session, error) {
	s, ok := serv.store.Get(userID)
	if !ok {
		return nil, errorvalues.ErrNoActiveSession
	}
	if s.State != want {
		return nil, errorvalues.ErrWrongSessionState
	}
	return s, nil
}

// loadGoal fails soft on dangling references: the session is cleared and
// the caller gets a "goal not found" it can answer with "start over".
func (serv *SessionService) loadGoal(ctx context.Context, userID, goalID uuid.UUID) (*entity.Goal, error) {
	goal, err := serv.goalsRepo.GetByID(ctx, goalID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrGoalNotFound) {
			serv.store.Delete(userID)
			return nil, err
		}
		return nil, errors.New("repository error: " + err.Error())
	}
	if goal.UserID != userID {
		serv.store.Delete(userID)
		return nil, errorvalues.ErrGoalNotFound
	}
	return goal, nil
}

func (serv *SessionService) toneContext(ctx context.Context, userID uuid.UUID) (ai.ToneContext, error) {
	user, err := serv.usersRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return ai.ToneContext{}, err
		}
		return ai.ToneContext{}, errors.New("repository error: " + err.Error())
	}
	completedToday := 0
	today := serv.today()
	if dlog, err := serv.dailyLogs.Get(ctx, userID, today); err == nil {
		completedToday = len(dlog.CompletedStepIDs)
	}
	return ai.ToneContext{
		UserID:         userID,
		StreakDays:     user.StreakDays,
		CompletedToday: completedToday,
		TimezoneOffset: user.TimezoneOffset,
	}, nil
}

func (serv *SessionService) today() time.Time {
	n := serv.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func pickDeepenPlan(plans []ai.StepPlan) ai.StepPlan {
	for _, p := range plans {
		if p.Minutes >= deepenMinMinutes && p.Minutes <= deepenMaxMinutes {
			return p
		}
	}
	if len(plans) > 0 {
		return plans[0]
	}
	return ai.StepPlan{Title: "Do one solid chunk of the current stage", Difficulty: "medium", Minutes: deepenMaxMinutes}
}
