package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/notify"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/repository"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

const (
	morningReminderText = "Morning check-in. Energy, mood, and today's steps. Go."
	eveningReminderText = "Evening wrap-up. Rate the day and close it out."
)

type SweepStats struct {
	MorningSent int `json:"morning_sent"`
	EveningSent int `json:"evening_sent"`
}

type ReminderService struct {
	usersRepo repository.UsersRepositoryI
	notifier  notify.Notifier
	now       func() time.Time
}

func NewReminderService(usersRepo repository.UsersRepositoryI, notifier notify.Notifier) *ReminderService {
	if usersRepo == nil || notifier == nil {
		log.Fatal("on reminder service provided nil dependencies")
	}
	return &ReminderService{
		usersRepo: usersRepo,
		notifier:  notifier,
		now:       time.Now,
	}
}

// NextReminderAt converts a local wall-clock time into the next UTC instant
// it occurs at. A time already past in the user's local day lands on
// tomorrow.
func NextReminderAt(localHHMM string, offsetHours int, now time.Time) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(localHHMM, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, errors.New("bad clock value: " + localHHMM)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, errors.New("bad clock value: " + localHHMM)
	}
	offset := time.Duration(offsetHours) * time.Hour
	local := now.UTC().Add(offset)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, time.UTC)
	if !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at.Add(-offset), nil
}

// SetupReminders recomputes both stored instants from the profile's current
// preferences. Disabled reminders clear the instants so the sweep never
// picks the user up.
func (serv *ReminderService) SetupReminders(ctx context.Context, user *entity.UserProfile) error {
	if !user.RemindersEnabled {
		user.NextMorningReminderAt = nil
		user.NextEveningReminderAt = nil
		if err := serv.usersRepo.UpdateReminderInstants(ctx, user.ID, nil, nil); err != nil {
			return errors.New("repository error: " + err.Error())
		}
		return nil
	}
	now := serv.now()
	morning, err := NextReminderAt(user.ReminderMorning, user.TimezoneOffset, now)
	if err != nil {
		return err
	}
	evening, err := NextReminderAt(user.ReminderEvening, user.TimezoneOffset, now)
	if err != nil {
		return err
	}
	user.NextMorningReminderAt = &morning
	user.NextEveningReminderAt = &evening
	if err := serv.usersRepo.UpdateReminderInstants(ctx, user.ID, &morning, &evening); err != nil {
		return errors.New("repository error: " + err.Error())
	}
	return nil
}

// Sweep delivers every due reminder once and advances its instant one day.
// The advance happens whether or not the send succeeded: a broken chat must
// not wedge the schedule, and a missed tick catches up on the next pass.
func (serv *ReminderService) Sweep(ctx context.Context) (SweepStats, error) {
	now := serv.now().UTC()
	stats := SweepStats{}

	morning, err := serv.sweepKind(ctx, now, false)
	if err != nil {
		return stats, err
	}
	stats.MorningSent = morning

	evening, err := serv.sweepKind(ctx, now, true)
	if err != nil {
		return stats, err
	}
	stats.EveningSent = evening
	return stats, nil
}

func (serv *ReminderService) sweepKind(ctx context.Context, now time.Time, evening bool) (int, error) {
	users, err := serv.usersRepo.FindDueReminders(ctx, now, evening)
	if err != nil {
		return 0, errors.New("repository error: " + err.Error())
	}
	sent := 0
	for _, user := range users {
		due := user.NextMorningReminderAt
		text := morningReminderText
		if evening {
			due = user.NextEveningReminderAt
			text = eveningReminderText
		}
		if due == nil || due.After(now) {
			continue
		}
		if err := serv.notifier.Send(ctx, user.ExternalID, text); err != nil {
			slog.Error("reminder send failed",
				slog.Int64("external_id", user.ExternalID),
				slog.Bool("evening", evening),
				slog.String("error", err.Error()),
			)
		} else {
			sent++
		}
		// Only the swept column is written. The other instant may have moved
		// under us since the row was read and must keep its stored value.
		next := due.AddDate(0, 0, 1)
		if err := serv.usersRepo.AdvanceReminderInstant(ctx, user.ID, evening, &next); err != nil {
			slog.Error("reminder advance failed",
				slog.Int64("external_id", user.ExternalID),
				slog.String("error", err.Error()),
			)
		}
	}
	return sent, nil
}
