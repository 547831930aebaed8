package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

// How many times a mutation retries around the (user, date) create race
// before giving up with a generic failure.
const dailyLogRaceRetries = 3

type DailyLogService struct {
	repo repository.DailyLogsRepositoryI
}

func NewDailyLogService(logsRepo repository.DailyLogsRepositoryI) *DailyLogService {
	if logsRepo == nil {
		log.Fatal("on daily log service provided nil repo")
	}
	return &DailyLogService{
		repo: logsRepo,
	}
}

// getOrCreate relies on the storage unique index on (user, date): a lost
// create race surfaces as ErrDailyLogExists and is answered by re-reading
// the winner's row.
func (serv *DailyLogService) getOrCreate(ctx context.Context, userID uuid.UUID, date time.Time) (*entity.DailyLog, error) {
	for attempt := 0; attempt < dailyLogRaceRetries; attempt++ {
		dlog, err := serv.repo.Get(ctx, userID, date)
		if err == nil {
			return dlog, nil
		}
		if !errors.Is(err, errorvalues.ErrDailyLogNotFound) {
			return nil, errors.New("repository error: " + err.Error())
		}
		_, err = serv.repo.Create(ctx, &entity.DailyLog{
			UserID: userID,
			Date:   date,
		})
		if err != nil && !errors.Is(err, errorvalues.ErrDailyLogExists) {
			return nil, errors.New("repository error: " + err.Error())
		}
	}
	return nil, errors.New("daily log create race didn't settle, try again")
}

// mutate runs patch over the current row and writes it back, retrying the
// whole read-patch-write when the guarded write loses to a concurrent
// writer or the row disappeared mid-flight.
func (serv *DailyLogService) mutate(ctx context.Context, userID uuid.UUID, date time.Time, patch func(*entity.DailyLog)) (*entity.DailyLog, error) {
	var lastErr error
	for attempt := 0; attempt < dailyLogRaceRetries; attempt++ {
		dlog, err := serv.getOrCreate(ctx, userID, date)
		if err != nil {
			return nil, err
		}
		patch(dlog)
		err = serv.repo.Update(ctx, dlog)
		if err == nil {
			return dlog, nil
		}
		if !errors.Is(err, errorvalues.ErrDailyLogNotFound) {
			return nil, errors.New("repository error: " + err.Error())
		}
		lastErr = err
	}
	return nil, errors.New("daily log update didn't settle: " + lastErr.Error())
}

// LogAssignment adds the step to today's assigned set. Energy and mood are
// first-writer-wins for the day.
func (serv *DailyLogService) LogAssignment(ctx context.Context, userID uuid.UUID, date time.Time, stepID uuid.UUID, energyHint *int, moodHint string) (*entity.DailyLog, error) {
	return serv.mutate(ctx, userID, date, func(dlog *entity.DailyLog) {
		if !dlog.HasAssigned(stepID) {
			dlog.AssignedStepIDs = append(dlog.AssignedStepIDs, stepID)
		}
		if dlog.EnergyLevel == nil && energyHint != nil {
			dlog.EnergyLevel = energyHint
		}
		if dlog.MoodText == "" && moodHint != "" {
			dlog.MoodText = moodHint
		}
	})
}

// LogCompletion credits the reward only when the step id is not yet in the
// completed set, so retried calls and duplicate taps count once.
func (serv *DailyLogService) LogCompletion(ctx context.Context, userID uuid.UUID, date time.Time, stepID uuid.UUID, reward int) (*entity.DailyLog, error) {
	return serv.mutate(ctx, userID, date, func(dlog *entity.DailyLog) {
		if dlog.HasCompleted(stepID) {
			return
		}
		if !dlog.HasAssigned(stepID) {
			dlog.AssignedStepIDs = append(dlog.AssignedStepIDs, stepID)
		}
		dlog.CompletedStepIDs = append(dlog.CompletedStepIDs, stepID)
		dlog.RewardEarned += reward
	})
}

func (serv *DailyLogService) LogSkip(ctx context.Context, userID uuid.UUID, date time.Time, stepID uuid.UUID, reason string) (*entity.DailyLog, error) {
	return serv.mutate(ctx, userID, date, func(dlog *entity.DailyLog) {
		if dlog.SkipReasons == nil {
			dlog.SkipReasons = map[uuid.UUID]string{}
		}
		dlog.SkipReasons[stepID] = reason
	})
}

func (serv *DailyLogService) SetDayRating(ctx context.Context, userID uuid.UUID, date time.Time, rating string) (*entity.DailyLog, error) {
	return serv.mutate(ctx, userID, date, func(dlog *entity.DailyLog) {
		dlog.DayRating = rating
	})
}

func (serv *DailyLogService) Get(ctx context.Context, userID uuid.UUID, date time.Time) (*entity.DailyLog, error) {
	dlog, err := serv.repo.Get(ctx, userID, date)
	if err != nil {
		if errors.Is(err, errorvalues.ErrDailyLogNotFound) {
			return nil, err
		}
		return nil, errors.New("repository error: " + err.Error())
	}
	return dlog, nil
}

func (serv *DailyLogService) ListRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*entity.DailyLog, error) {
	logs, err := serv.repo.ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, errors.New("repository error: " + err.Error())
	}
	return logs, nil
}

// TakeQuota backs the gateway's per-day counters with the daily log row.
func (serv *DailyLogService) TakeQuota(ctx context.Context, userID uuid.UUID, kind ai.QuotaKind, limit int, localDate time.Time) (bool, error) {
	allowed := false
	_, err := serv.mutate(ctx, userID, localDate, func(dlog *entity.DailyLog) {
		switch kind {
		case ai.QuotaUnblock:
			if dlog.UnblockCalls < limit {
				dlog.UnblockCalls++
				allowed = true
			} else {
				allowed = false
			}
		default:
			if dlog.MorningCalls < limit {
				dlog.MorningCalls++
				allowed = true
			} else {
				allowed = false
			}
		}
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}
