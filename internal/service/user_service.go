package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

const (
	defaultMorningTime = "09:00"
	defaultEveningTime = "21:00"
)

type UserService struct {
	repo      repository.UsersRepositoryI
	dailyLogs DailyLogServiceI
	reminders *ReminderService
	now       func() time.Time
}

func NewUserService(usersRepo repository.UsersRepositoryI, dailyLogs DailyLogServiceI, reminders *ReminderService) *UserService {
	if usersRepo == nil || dailyLogs == nil || reminders == nil {
		log.Fatal("on user service provided nil dependencies")
	}
	return &UserService{
		repo:      usersRepo,
		dailyLogs: dailyLogs,
		reminders: reminders,
		now:       time.Now,
	}
}

func Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (us *UserService) Register(ctx context.Context, req *RegisterRequest) (*entity.UserProfile, error) {
	err := validate.Struct(*req)
	if err != nil {
		if validationError, ok := err.(validator.ValidationErrors); ok {
			err = errors.New("validation error: ")
			for _, fieldErr := range validationError {
				err = errors.Join(err, fieldErr)
			}
			return nil, err
		}
		return nil, errors.New("validation unexpected error: " + err.Error())
	}
	passwordHash, err := Hash(req.Password)
	if err != nil {
		return nil, errors.New("hashing password error: " + err.Error())
	}
	err = us.repo.Create(ctx, &entity.UserProfile{
		Name:             req.Name,
		PasswordHash:     passwordHash,
		ExternalID:       req.ExternalID,
		ReminderMorning:  defaultMorningTime,
		ReminderEvening:  defaultEveningTime,
		RemindersEnabled: true,
	})
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserExists) {
			return nil, errors.New("user with such name already exists")
		}
		return nil, errors.New("repository creating error: " + err.Error())
	}
	user, err := us.repo.FindByName(ctx, req.Name)
	if err != nil {
		return nil, errors.New("repository searching error: " + err.Error())
	}
	return user, nil
}

func (us *UserService) Login(ctx context.Context, name, password string) (*entity.UserProfile, error) {
	user, err := us.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, errorvalues.ErrWrongCredentials
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errorvalues.ErrWrongCredentials
	}
	return user, nil
}

func (us *UserService) GetByID(ctx context.Context, id uuid.UUID) (*entity.UserProfile, error) {
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	return user, nil
}

// EnsureProfile resolves a messenger id to a profile, creating one on first
// contact. A lost creation race resolves by re-reading the winner's row.
func (us *UserService) EnsureProfile(ctx context.Context, externalID int64) (*entity.UserProfile, error) {
	user, err := us.repo.FindByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errorvalues.ErrUserNotFound) {
		return nil, errors.New("repository searching error: " + err.Error())
	}
	err = us.repo.Create(ctx, &entity.UserProfile{
		Name:             fmt.Sprintf("user_%d", externalID),
		ExternalID:       externalID,
		ReminderMorning:  defaultMorningTime,
		ReminderEvening:  defaultEveningTime,
		RemindersEnabled: true,
	})
	if err != nil && !errors.Is(err, errorvalues.ErrUserExists) {
		return nil, errors.New("repository creating error: " + err.Error())
	}
	user, err = us.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, errors.New("repository searching error: " + err.Error())
	}
	if setupErr := us.reminders.SetupReminders(ctx, user); setupErr != nil {
		return nil, setupErr
	}
	return user, nil
}

func (us *UserService) UpdateReminderPrefs(ctx context.Context, id uuid.UUID, req *ReminderPrefsRequest) (*entity.UserProfile, error) {
	err := validate.Struct(*req)
	if err != nil {
		if validationError, ok := err.(validator.ValidationErrors); ok {
			err = errors.New("validation error: ")
			for _, fieldErr := range validationError {
				err = errors.Join(err, fieldErr)
			}
			return nil, err
		}
		return nil, errors.New("validation unexpected error: " + err.Error())
	}
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	user.ReminderMorning = req.Morning
	user.ReminderEvening = req.Evening
	user.TimezoneOffset = req.TimezoneOffset
	user.RemindersEnabled = req.Enabled
	if err = us.repo.Update(ctx, user); err != nil {
		return nil, errors.New("repository updating error: " + err.Error())
	}
	if err = us.reminders.SetupReminders(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Stats combines profile totals with today's log readout. A missing log
// reads as an empty day.
func (us *UserService) Stats(ctx context.Context, id uuid.UUID) (*UserStats, error) {
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	stats := &UserStats{
		XP:         user.XP,
		Level:      user.Level,
		StreakDays: user.StreakDays,
	}
	n := us.now().UTC()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	dlog, err := us.dailyLogs.Get(ctx, id, today)
	if err != nil {
		if errors.Is(err, errorvalues.ErrDailyLogNotFound) {
			return stats, nil
		}
		return nil, err
	}
	stats.AssignedToday = len(dlog.AssignedStepIDs)
	stats.CompletedToday = len(dlog.CompletedStepIDs)
	stats.RewardToday = dlog.RewardEarned
	return stats, nil
}

// History reads the last days of logs and folds them through the reflection
// rules. Days without a log simply do not appear in the readout.
func (us *UserService) History(ctx context.Context, id uuid.UUID, days int) (*HistoryResult, error) {
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("repository searching error: " + err.Error())
	}
	n := us.now().UTC()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))
	logs, err := us.dailyLogs.ListRange(ctx, id, from, today)
	if err != nil {
		return nil, err
	}
	result := &HistoryResult{
		Days:              make([]DayHistory, 0, len(logs)),
		StreakDays:        user.StreakDays,
		StreakCelebration: domain.ShouldCelebrateStreak(user.StreakDays),
	}
	for _, dlog := range logs {
		result.Days = append(result.Days, DayHistory{
			Date:      dlog.Date,
			DayRating: dlog.DayRating,
			Progress:  domain.DailyProgress(dlog),
		})
	}
	result.Week = domain.ReflectWeek(logs)
	result.Motivation = domain.MotivationFor(result.Week.CompletionRate)
	return result, nil
}

func (us *UserService) DeleteAccount(ctx context.Context, id uuid.UUID, password string) error {
	user, err := us.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return err
		}
		return errors.New("repository searching error: " + err.Error())
	}
	// Profiles created from the messenger carry no password hash; their
	// token from the external auth path is the only credential.
	if user.PasswordHash != "" {
		if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return errorvalues.ErrWrongCredentials
		}
	}
	if err = us.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return err
		}
		return errors.New("repository deletion error: " + err.Error())
	}
	return nil
}
