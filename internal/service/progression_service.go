package service

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

// DefaultMinStepsForAutoComplete guards a stage from auto-closing off the
// back of a couple of micro actions. Tunable via config.
const DefaultMinStepsForAutoComplete = 4

const defaultStageTitle = "Getting started"

type ProgressionService struct {
	goalsRepo  repository.GoalsRepositoryI
	stagesRepo repository.StagesRepositoryI
	stepsRepo  repository.StepsRepositoryI
	usersRepo  repository.UsersRepositoryI
	dailyLogs  DailyLogServiceI

	minStepsForAutoComplete int
	now                     func() time.Time
}

func NewProgressionService(
	goalsRepo repository.GoalsRepositoryI,
	stagesRepo repository.StagesRepositoryI,
	stepsRepo repository.StepsRepositoryI,
	usersRepo repository.UsersRepositoryI,
	dailyLogs DailyLogServiceI,
) *ProgressionService {
	if goalsRepo == nil || stagesRepo == nil || stepsRepo == nil || usersRepo == nil || dailyLogs == nil {
		log.Fatal("on progression service provided nil dependencies")
	}
	return &ProgressionService{
		goalsRepo:               goalsRepo,
		stagesRepo:              stagesRepo,
		stepsRepo:               stepsRepo,
		usersRepo:               usersRepo,
		dailyLogs:               dailyLogs,
		minStepsForAutoComplete: DefaultMinStepsForAutoComplete,
		now:                     time.Now,
	}
}

// SetMinStepsForAutoComplete overrides the auto-completion threshold.
func (serv *ProgressionService) SetMinStepsForAutoComplete(n int) {
	if n > 0 {
		serv.minStepsForAutoComplete = n
	}
}

// EnsureActiveStage selects the goal's live stage, treating "active" as a
// derived value recomputed on every read. Repeated calls with no
// intervening writes return the same stage and perform no writes.
func (serv *ProgressionService) EnsureActiveStage(ctx context.Context, goal *entity.Goal) (*entity.Stage, error) {
	if goal == nil {
		return nil, errorvalues.ErrGoalNotFound
	}
	actives, err := serv.stagesRepo.ListByGoalAndStatus(ctx, goal.ID, entity.StageActive)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	var current *entity.Stage
	if len(actives) > 0 {
		// Ordered by (order, id) descending: the head wins the tie-break.
		current = actives[0]
	}
	if len(actives) > 1 {
		slog.Warn("multiple active stages detected, keeping the latest",
			slog.String("goal_id", goal.ID.String()),
			slog.Int("active_count", len(actives)),
		)
		stale := make([]uuid.UUID, 0, len(actives)-1)
		for _, s := range actives[1:] {
			stale = append(stale, s.ID)
		}
		if err := serv.stagesRepo.DemoteToPending(ctx, stale); err != nil {
			return nil, errors.New("repository error: " + err.Error())
		}
	}

	if current != nil && current.Progress >= 100 {
		// Onboarding goals keep accumulating steps in their single stage
		// instead of closing it after the first micro action.
		if goal.Status != entity.GoalOnboarding {
			if err := serv.stagesRepo.UpdateStatus(ctx, current.ID, entity.StageCompleted); err != nil {
				return nil, errors.New("repository error: " + err.Error())
			}
			current = nil
		}
	}

	if current != nil {
		return current, nil
	}

	all, err := serv.stagesRepo.ListByGoal(ctx, goal.ID)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	for _, s := range all {
		if s.Status == entity.StagePending {
			if err := serv.stagesRepo.UpdateStatus(ctx, s.ID, entity.StageActive); err != nil {
				return nil, errors.New("repository error: " + err.Error())
			}
			s.Status = entity.StageActive
			return s, nil
		}
	}

	if len(all) == 0 {
		return serv.synthesizeDefaultStage(ctx, goal)
	}

	completed := 0
	for _, s := range all {
		if s.Status == entity.StageCompleted {
			completed++
		}
	}
	if completed == len(all) && goal.Status != entity.GoalOnboarding {
		if err := serv.goalsRepo.UpdateStatus(ctx, goal.ID, entity.GoalCompleted); err != nil {
			return nil, errors.New("repository error: " + err.Error())
		}
		return nil, errorvalues.ErrGoalComplete
	}
	return nil, errorvalues.ErrStageNotFound
}

// A goal that lost its stage data still has to move forward: fabricate a
// single active stage spanning the goal's whole period.
func (serv *ProgressionService) synthesizeDefaultStage(ctx context.Context, goal *entity.Goal) (*entity.Stage, error) {
	slog.Warn("goal has no stages, creating default active stage", slog.String("goal_id", goal.ID.String()))
	start := serv.today()
	if goal.StartDate != nil {
		start = *goal.StartDate
	}
	end := start
	if goal.Deadline != nil {
		end = *goal.Deadline
	}
	stage := &entity.Stage{
		GoalID:    goal.ID,
		Title:     defaultStageTitle,
		Order:     1,
		StartDate: start,
		EndDate:   end,
		Progress:  0,
		Status:    entity.StageActive,
	}
	id, err := serv.stagesRepo.Create(ctx, stage)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	stage.ID = id
	return stage, nil
}

// RecordStepOutcome finishes a step one-way and cascades: stage progress
// recompute, auto-completion policy, reward and streak crediting. It does
// not chain into the next stage; the next EnsureActiveStage call does.
func (serv *ProgressionService) RecordStepOutcome(ctx context.Context, userID, stepID uuid.UUID, outcome StepOutcome, skipReason string) (*StepOutcomeResult, error) {
	step, err := serv.stepsRepo.GetByID(ctx, stepID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrStepNotFound) {
			return nil, err
		}
		return nil, errors.New("repository error: " + err.Error())
	}

	finishedAt := serv.now().UTC()
	switch outcome {
	case OutcomeCompleted:
		err = serv.stepsRepo.MarkCompleted(ctx, stepID, finishedAt)
	case OutcomeSkipped:
		err = serv.stepsRepo.MarkSkipped(ctx, stepID)
	default:
		return nil, errors.New("unknown step outcome: " + string(outcome))
	}
	if err != nil {
		if errors.Is(err, errorvalues.ErrStepFinished) {
			// Concurrent duplicate or a repeated tap: exactly one caller
			// credited the reward, this one mutates nothing further.
			return &StepOutcomeResult{Step: step, AlreadyFinished: true}, nil
		}
		if errors.Is(err, errorvalues.ErrStepNotFound) {
			return nil, err
		}
		return nil, errors.New("repository error: " + err.Error())
	}
	step.Status = entity.StepStatus(outcome)
	if outcome == OutcomeCompleted {
		step.CompletedAt = &finishedAt
	}

	progress, stageCompleted, err := serv.updateStageProgress(ctx, step.StageID)
	if err != nil {
		return nil, err
	}

	result := &StepOutcomeResult{
		Step:           step,
		StageProgress:  progress,
		StageCompleted: stageCompleted,
	}
	today := serv.today()

	if outcome == OutcomeSkipped {
		if _, err := serv.dailyLogs.LogSkip(ctx, userID, today, stepID, skipReason); err != nil {
			return nil, err
		}
		return result, nil
	}

	user, err := serv.usersRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository error: " + err.Error())
	}
	newStreak, increased := domain.ComputeStreak(user.StreakDays, user.StreakLastDate, today)
	totalXP := user.XP + step.RewardPoints
	level := domain.ComputeLevel(totalXP)
	streakLastDate := user.StreakLastDate
	if increased {
		streakLastDate = &today
	}
	if err := serv.usersRepo.UpdateStats(ctx, userID, totalXP, level, newStreak, streakLastDate); err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	if _, err := serv.dailyLogs.LogCompletion(ctx, userID, today, stepID, step.RewardPoints); err != nil {
		return nil, err
	}

	result.RewardEarned = step.RewardPoints
	result.TotalXP = totalXP
	result.Level = level
	result.StreakDays = newStreak
	result.StreakIncreased = increased
	return result, nil
}

// updateStageProgress recomputes progress over every step ever attached
// to the stage, then applies the auto-completion policy.
func (serv *ProgressionService) updateStageProgress(ctx context.Context, stageID uuid.UUID) (int, bool, error) {
	steps, err := serv.stepsRepo.ListByStage(ctx, stageID)
	if err != nil {
		return 0, false, errors.New("repository error: " + err.Error())
	}
	total := len(steps)
	if total == 0 {
		slog.Warn("stage has no steps, skipping progress update", slog.String("stage_id", stageID.String()))
		return 0, false, nil
	}
	completedCount := 0
	finishedCount := 0
	for _, s := range steps {
		switch s.Status {
		case entity.StepCompleted:
			completedCount++
			finishedCount++
		case entity.StepSkipped:
			finishedCount++
		}
	}
	progress := int(math.Round(100 * float64(completedCount) / float64(total)))

	stage, err := serv.stagesRepo.GetByID(ctx, stageID)
	if err != nil {
		return 0, false, errors.New("repository error: " + err.Error())
	}
	goal, err := serv.goalsRepo.GetByID(ctx, stage.GoalID)
	if err != nil {
		return 0, false, errors.New("repository error: " + err.Error())
	}

	status := stage.Status
	stageCompleted := false
	if finishedCount == total && completedCount > 0 {
		if goal.Status != entity.GoalOnboarding && total >= serv.minStepsForAutoComplete {
			status = entity.StageCompleted
			stageCompleted = true
		} else {
			// Too few steps or an onboarding goal: keep the stage open.
			status = entity.StageActive
		}
	} else if stage.Status == entity.StagePending && completedCount > 0 {
		status = entity.StageActive
	}

	if err := serv.stagesRepo.UpdateProgress(ctx, stageID, progress, status); err != nil {
		return 0, false, errors.New("repository error: " + err.Error())
	}
	return progress, stageCompleted, nil
}

// CreateStep materializes a planned step under the goal's live stage and
// records the assignment in today's log.
func (serv *ProgressionService) CreateStep(ctx context.Context, userID uuid.UUID, goal *entity.Goal, plan StepPlan) (*entity.Step, error) {
	stage, err := serv.EnsureActiveStage(ctx, goal)
	if err != nil {
		return nil, err
	}
	today := serv.today()
	step := &entity.Step{
		StageID:          stage.ID,
		Title:            plan.Title,
		Difficulty:       plan.Difficulty,
		EstimatedMinutes: plan.Minutes,
		RewardPoints:     plan.Reward,
		ScheduledDate:    &today,
		Status:           entity.StepPending,
	}
	id, err := serv.stepsRepo.Create(ctx, step)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	step.ID = id
	if _, err := serv.dailyLogs.LogAssignment(ctx, userID, today, id, plan.EnergyHint, plan.MoodHint); err != nil {
		return nil, err
	}
	return step, nil
}

func (serv *ProgressionService) today() time.Time {
	n := serv.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
