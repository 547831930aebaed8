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
	trialGoalTitle = "Trial sprint"
	trialGoalDays  = 7
	maxGoalStages  = 4
)

type GoalsService struct {
	goalsRepo   repository.GoalsRepositoryI
	stagesRepo  repository.StagesRepositoryI
	usersRepo   repository.UsersRepositoryI
	progression ProgressionServiceI
	dailyLogs   DailyLogServiceI
	gateway     GatewayI
	now         func() time.Time
}

func NewGoalsService(
	goalsRepo repository.GoalsRepositoryI,
	stagesRepo repository.StagesRepositoryI,
	usersRepo repository.UsersRepositoryI,
	progression ProgressionServiceI,
	dailyLogs DailyLogServiceI,
	gateway GatewayI,
) *GoalsService {
	if goalsRepo == nil || stagesRepo == nil || usersRepo == nil || progression == nil || dailyLogs == nil || gateway == nil {
		log.Fatal("on goals service provided nil dependencies")
	}
	return &GoalsService{
		goalsRepo:   goalsRepo,
		stagesRepo:  stagesRepo,
		usersRepo:   usersRepo,
		progression: progression,
		dailyLogs:   dailyLogs,
		gateway:     gateway,
		now:         time.Now,
	}
}

// CreateGoal stores the goal and slices the time to deadline into 2-4
// generated stages. A failed decomposition degrades to one stage covering
// the whole period, so a goal always comes out workable.
func (serv *GoalsService) CreateGoal(ctx context.Context, userID uuid.UUID, title, description string, deadline time.Time) (*entity.Goal, []*entity.Stage, error) {
	today := serv.today()
	if deadline.Before(today) {
		return nil, nil, errors.New("deadline must not be in the past")
	}
	goal := &entity.Goal{
		UserID:      userID,
		Title:       title,
		Description: description,
		StartDate:   &today,
		Deadline:    &deadline,
		Status:      entity.GoalActive,
	}
	id, err := serv.goalsRepo.Create(ctx, goal)
	if err != nil {
		if errors.Is(err, errorvalues.ErrOwnerNotFound) {
			return nil, nil, errorvalues.ErrUserNotFound
		}
		return nil, nil, errors.New("repository error: " + err.Error())
	}
	goal.ID = id

	tctx, err := serv.toneContext(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	plans := serv.gateway.DecomposeGoal(ctx, tctx, title, deadline, today)
	if len(plans) > maxGoalStages {
		plans = plans[:maxGoalStages]
	}

	stages := make([]*entity.Stage, 0, len(plans))
	cursor := today
	for i, plan := range plans {
		days := plan.Days
		if days < 1 {
			days = 1
		}
		end := cursor.AddDate(0, 0, days)
		if end.After(deadline) {
			end = deadline
		}
		stage := &entity.Stage{
			GoalID:    goal.ID,
			Title:     plan.Title,
			Order:     i + 1,
			StartDate: cursor,
			EndDate:   end,
			Status:    entity.StagePending,
		}
		if i == 0 {
			stage.Status = entity.StageActive
		}
		sid, err := serv.stagesRepo.Create(ctx, stage)
		if err != nil {
			return nil, nil, errors.New("repository error: " + err.Error())
		}
		stage.ID = sid
		stages = append(stages, stage)
		cursor = end
	}
	return goal, stages, nil
}

// EnsureTrialGoal finds the live onboarding goal or seeds a fresh one with
// a single open stage. Onboarding goals are exempt from auto-completion.
func (serv *GoalsService) EnsureTrialGoal(ctx context.Context, userID uuid.UUID) (*entity.Goal, error) {
	existing, err := serv.goalsRepo.ListByStatus(ctx, userID, entity.GoalOnboarding)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	today := serv.today()
	deadline := today.AddDate(0, 0, trialGoalDays)
	goal := &entity.Goal{
		UserID:    userID,
		Title:     trialGoalTitle,
		StartDate: &today,
		Deadline:  &deadline,
		Status:    entity.GoalOnboarding,
	}
	id, err := serv.goalsRepo.Create(ctx, goal)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	goal.ID = id
	_, err = serv.stagesRepo.Create(ctx, &entity.Stage{
		GoalID:    goal.ID,
		Title:     "First moves",
		Order:     1,
		StartDate: today,
		EndDate:   deadline,
		Status:    entity.StageActive,
	})
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	return goal, nil
}

func (serv *GoalsService) ListActive(ctx context.Context, userID uuid.UUID) ([]*entity.Goal, error) {
	goals, err := serv.goalsRepo.ListByStatus(ctx, userID, entity.GoalActive)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	return goals, nil
}

// AssignDailySteps runs the morning flow: generate today's plan for the
// live stage, bounded by energy, and materialize each step with an
// assignment record.
func (serv *GoalsService) AssignDailySteps(ctx context.Context, userID uuid.UUID, energy int, mood string) (*DailyPlanResult, error) {
	goals, err := serv.goalsRepo.ListByStatus(ctx, userID, entity.GoalActive)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	if len(goals) == 0 {
		return nil, errorvalues.ErrGoalNotFound
	}
	goal := goals[0]
	stage, err := serv.progression.EnsureActiveStage(ctx, goal)
	if err != nil {
		return nil, err
	}
	tctx, err := serv.toneContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	gen, err := serv.gateway.DailySteps(ctx, tctx, stage.Title, energy, mood)
	if err != nil {
		return nil, err
	}
	if gen.RateLimited {
		return &DailyPlanResult{RateLimited: true, ResetAt: gen.ResetAt}, nil
	}

	limit := domain.StepsCountByEnergy(energy)
	maxMinutes := domain.MaxStepMinutes(energy, false)
	steps := make([]*entity.Step, 0, limit)
	for _, plan := range gen.Plans {
		if len(steps) >= limit {
			break
		}
		minutes := plan.Minutes
		if minutes < 1 || minutes > maxMinutes {
			minutes = maxMinutes
		}
		difficulty := entity.Difficulty(plan.Difficulty)
		if difficulty != entity.DifficultyEasy && difficulty != entity.DifficultyMedium && difficulty != entity.DifficultyHard {
			difficulty = domain.SelectDifficulty(energy)
		}
		step, err := serv.progression.CreateStep(ctx, userID, goal, StepPlan{
			Title:      plan.Title,
			Difficulty: difficulty,
			Minutes:    minutes,
			Reward:     domain.RewardFor(difficulty, minutes),
			EnergyHint: &energy,
			MoodHint:   mood,
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return &DailyPlanResult{Steps: steps}, nil
}

// RateDay records the evening rating on today's log.
func (serv *GoalsService) RateDay(ctx context.Context, userID uuid.UUID, rating string) error {
	_, err := serv.dailyLogs.SetDayRating(ctx, userID, serv.today(), rating)
	return err
}

func (serv *GoalsService) toneContext(ctx context.Context, userID uuid.UUID) (ai.ToneContext, error) {
	user, err := serv.usersRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return ai.ToneContext{}, err
		}
		return ai.ToneContext{}, errors.New("repository error: " + err.Error())
	}
	completedToday := 0
	if dlog, err := serv.dailyLogs.Get(ctx, userID, serv.today()); err == nil {
		completedToday = len(dlog.CompletedStepIDs)
	}
	return ai.ToneContext{
		UserID:         userID,
		StreakDays:     user.StreakDays,
		CompletedToday: completedToday,
		TimezoneOffset: user.TimezoneOffset,
	}, nil
}

func (serv *GoalsService) today() time.Time {
	n := serv.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
