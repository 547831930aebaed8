package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/service"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

type sessionFixture struct {
	users   *memUsersRepo
	goals   *memGoalsRepo
	stages  *memStagesRepo
	steps   *memStepsRepo
	logs    *memDailyLogsRepo
	gateway *fakeGateway
	serv    *service.SessionService
	user    *entity.UserProfile
}

type denyAllPaywall struct{}

func (denyAllPaywall) Allow(uuid.UUID) bool { return false }

func newSessionFixture(paywall service.PaywallGate) *sessionFixture {
	f := &sessionFixture{
		users:   newMemUsersRepo(),
		goals:   newMemGoalsRepo(),
		stages:  newMemStagesRepo(),
		steps:   newMemStepsRepo(),
		logs:    newMemDailyLogsRepo(),
		gateway: &fakeGateway{},
	}
	dlserv := service.NewDailyLogService(f.logs)
	progression := service.NewProgressionService(f.goals, f.stages, f.steps, f.users, dlserv)
	f.serv = service.NewSessionService(service.NewSessionStore(), f.goals, f.users, progression, dlserv, f.gateway, paywall)
	f.user = f.users.add(&entity.UserProfile{Name: "runner", ExternalID: 7})
	return f
}

// activeGoal seeds a regular goal whose live stage already holds planned
// work, so session steps land next to it instead of saturating the stage.
func (f *sessionFixture) activeGoal() *entity.Goal {
	goal := f.goals.add(&entity.Goal{UserID: f.user.ID, Title: "finish thesis", Status: entity.GoalActive})
	stage := f.stages.add(&entity.Stage{GoalID: goal.ID, Title: "draft", Order: 1, Status: entity.StageActive})
	f.steps.add(&entity.Step{StageID: stage.ID, Title: "outline chapter", Difficulty: entity.DifficultyMedium, EstimatedMinutes: 25, RewardPoints: 20, Status: entity.StepPending})
	f.steps.add(&entity.Step{StageID: stage.ID, Title: "collect sources", Difficulty: entity.DifficultyEasy, EstimatedMinutes: 15, RewardPoints: 10, Status: entity.StepPending})
	return goal
}

func TestSessionHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	f.activeGoal()

	view, err := f.serv.Start(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, service.StateRatingTensionBefore, view.State)

	view, err = f.serv.RateTensionBefore(ctx, f.user.ID, 8)
	assert.NoError(t, err)
	assert.Equal(t, service.StateDoingBodyAction, view.State)
	assert.Equal(t, domain.BodyActionFor(f.user.ID), view.ActionText)
	assert.NotNil(t, view.Step)
	bodyStep := view.Step

	view, err = f.serv.CompleteBodyAction(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, service.StateDoingTaskMicroAction, view.State)
	assert.NotNil(t, view.Step)
	assert.Equal(t, 1, f.gateway.microCalls)

	done, _ := f.steps.GetByID(ctx, bodyStep.ID)
	assert.Equal(t, entity.StepCompleted, done.Status)

	view, err = f.serv.CompleteTaskAction(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, service.StateRatingTensionAfter, view.State)

	view, err = f.serv.RateTensionAfter(ctx, f.user.ID, 4)
	assert.NoError(t, err)
	assert.True(t, view.OfferDeepen)
	assert.Equal(t, service.StateOfferedDeepen, view.State)

	f.gateway.stepPlans = []ai.StepPlan{
		{Title: "short one", Difficulty: "easy", Minutes: 5},
		{Title: "solid chunk", Difficulty: "medium", Minutes: 25},
	}
	view, err = f.serv.Deepen(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, service.StateDeepening, view.State)
	assert.Equal(t, "solid chunk", view.Step.Title)
	assert.Equal(t, 25, view.Step.EstimatedMinutes)

	view, err = f.serv.Finish(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.True(t, view.Finished)
}

func TestSessionNoDeepeningOffer(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	f.activeGoal()

	_, err := f.serv.Start(ctx, f.user.ID)
	assert.NoError(t, err)
	_, err = f.serv.RateTensionBefore(ctx, f.user.ID, 6)
	assert.NoError(t, err)
	_, err = f.serv.CompleteBodyAction(ctx, f.user.ID)
	assert.NoError(t, err)
	_, err = f.serv.CompleteTaskAction(ctx, f.user.ID)
	assert.NoError(t, err)

	view, err := f.serv.RateTensionAfter(ctx, f.user.ID, 8)
	assert.NoError(t, err)
	assert.True(t, view.Finished)
	assert.False(t, view.OfferDeepen)

	_, err = f.serv.Deepen(ctx, f.user.ID)
	assert.ErrorIs(t, err, errorvalues.ErrNoActiveSession)
}

func TestSessionTopicSelection(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	first := f.activeGoal()
	second := f.goals.add(&entity.Goal{UserID: f.user.ID, Title: "get fit", Status: entity.GoalActive})
	f.stages.add(&entity.Stage{GoalID: second.ID, Title: "start moving", Order: 1, Status: entity.StageActive})

	view, err := f.serv.Start(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, service.StateSelectingTopic, view.State)
	assert.Len(t, view.Goals, 2)

	view, err = f.serv.SelectTopic(ctx, f.user.ID, first.ID)
	assert.NoError(t, err)
	assert.Equal(t, service.StateRatingTensionBefore, view.State)
}

func TestSessionStateGuards(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	f.activeGoal()

	t.Run("no session yet", func(t *testing.T) {
		_, err := f.serv.CompleteBodyAction(ctx, f.user.ID)
		assert.ErrorIs(t, err, errorvalues.ErrNoActiveSession)
	})
	t.Run("wrong order", func(t *testing.T) {
		_, err := f.serv.Start(ctx, f.user.ID)
		assert.NoError(t, err)
		_, err = f.serv.CompleteTaskAction(ctx, f.user.ID)
		assert.ErrorIs(t, err, errorvalues.ErrWrongSessionState)
	})
	t.Run("tension out of range", func(t *testing.T) {
		_, err := f.serv.RateTensionBefore(ctx, f.user.ID, 11)
		assert.Error(t, err)
	})
	t.Run("no goals at all", func(t *testing.T) {
		empty := newSessionFixture(nil)
		_, err := empty.serv.Start(ctx, empty.user.ID)
		assert.ErrorIs(t, err, errorvalues.ErrGoalNotFound)
	})
}

func TestSessionDanglingGoal(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	goal := f.activeGoal()

	_, err := f.serv.Start(ctx, f.user.ID)
	assert.NoError(t, err)

	err = f.goals.Delete(ctx, goal.ID)
	assert.NoError(t, err)

	_, err = f.serv.RateTensionBefore(ctx, f.user.ID, 5)
	assert.ErrorIs(t, err, errorvalues.ErrGoalNotFound)

	// Session is cleared, so the user can start over once a goal exists.
	_, err = f.serv.CompleteBodyAction(ctx, f.user.ID)
	assert.ErrorIs(t, err, errorvalues.ErrNoActiveSession)
}

func TestSessionCancelKeepsSteps(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	f.activeGoal()

	_, err := f.serv.Start(ctx, f.user.ID)
	assert.NoError(t, err)
	view, err := f.serv.RateTensionBefore(ctx, f.user.ID, 7)
	assert.NoError(t, err)
	bodyStep := view.Step

	f.serv.Cancel(ctx, f.user.ID)

	kept, err := f.steps.GetByID(ctx, bodyStep.ID)
	assert.NoError(t, err)
	assert.Equal(t, entity.StepPending, kept.Status)
}

func TestSessionTrialPaywall(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(denyAllPaywall{})
	goalsService := service.NewGoalsService(
		f.goals, f.stages, f.users,
		service.NewProgressionService(f.goals, f.stages, f.steps, f.users, service.NewDailyLogService(f.logs)),
		service.NewDailyLogService(f.logs),
		f.gateway,
	)

	view, err := f.serv.StartTrial(ctx, f.user.ID, goalsService)
	assert.NoError(t, err)
	assert.Equal(t, service.StateRatingTensionBefore, view.State)

	_, err = f.serv.RateTensionBefore(ctx, f.user.ID, 9)
	assert.NoError(t, err)
	_, err = f.serv.CompleteBodyAction(ctx, f.user.ID)
	assert.NoError(t, err)
	_, err = f.serv.CompleteTaskAction(ctx, f.user.ID)
	assert.NoError(t, err)
	offered, err := f.serv.RateTensionAfter(ctx, f.user.ID, 3)
	assert.NoError(t, err)
	assert.True(t, offered.OfferDeepen)

	view, err = f.serv.Deepen(ctx, f.user.ID)
	assert.NoError(t, err)
	assert.True(t, view.Paywalled)
	assert.True(t, view.Finished)
}

func TestUnblockSuggestions(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(nil)
	f.activeGoal()

	t.Run("without details two options", func(t *testing.T) {
		result, err := f.serv.UnblockSuggestions(ctx, f.user.ID, "fear", "")
		assert.NoError(t, err)
		assert.Len(t, result.Suggestions, 2)
	})
	t.Run("with details three options", func(t *testing.T) {
		result, err := f.serv.UnblockSuggestions(ctx, f.user.ID, "unclear", "the brief is vague")
		assert.NoError(t, err)
		assert.Len(t, result.Suggestions, 3)
	})
	t.Run("works without a live session", func(t *testing.T) {
		result, err := f.serv.UnblockSuggestions(ctx, f.user.ID, "made up blocker", "")
		assert.NoError(t, err)
		assert.NotEmpty(t, result.Suggestions)
	})
}
