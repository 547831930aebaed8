package entity

import (
	"time"

	"github.com/google/uuid"
)

type GoalStatus string

const (
	GoalActive     GoalStatus = "active"
	GoalOnboarding GoalStatus = "onboarding"
	GoalPaused     GoalStatus = "paused"
	GoalCompleted  GoalStatus = "completed"
	GoalAbandoned  GoalStatus = "abandoned"
)

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// UserProfile holds identity, gamification totals and reminder preferences.
// Reminder times are local HH:MM; the precomputed next instants are UTC.
type UserProfile struct {
	ID             uuid.UUID  `json:"id"`
	ExternalID     int64      `json:"external_id"`
	Name           string     `json:"name"`
	PasswordHash   string     `json:"-"`
	XP             int        `json:"xp"`
	Level          int        `json:"level"`
	StreakDays     int        `json:"streak_days"`
	StreakLastDate *time.Time `json:"streak_last_date,omitempty"`
	// Avoidance quiz result, 0-100. Zero until the quiz is taken.
	DependencyScore int `json:"dependency_score"`

	ReminderMorning       string     `json:"reminder_morning"`
	ReminderEvening       string     `json:"reminder_evening"`
	TimezoneOffset        int        `json:"timezone_offset"`
	RemindersEnabled      bool       `json:"reminders_enabled"`
	NextMorningReminderAt *time.Time `json:"next_morning_reminder_at,omitempty"`
	NextEveningReminderAt *time.Time `json:"next_evening_reminder_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Goal struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"uid"`
	Title       string     `json:"title"`
	Description string     `json:"desc,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      GoalStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Stage struct {
	ID        uuid.UUID   `json:"id"`
	GoalID    uuid.UUID   `json:"goal_id"`
	Title     string      `json:"title"`
	Order     int         `json:"order"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
	Progress  int         `json:"progress"`
	Status    StageStatus `json:"status"`
}

type Step struct {
	ID               uuid.UUID  `json:"id"`
	StageID          uuid.UUID  `json:"stage_id"`
	Title            string     `json:"title"`
	Difficulty       Difficulty `json:"difficulty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	RewardPoints     int        `json:"reward_points"`
	ScheduledDate    *time.Time `json:"scheduled_date,omitempty"`
	Status           StepStatus `json:"status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// DailyLog is unique per (user, date). Step ids are weak references: a
// deleted step leaves a dangling id that readers must tolerate.
type DailyLog struct {
	ID               uuid.UUID            `json:"id"`
	UserID           uuid.UUID            `json:"uid"`
	Date             time.Time            `json:"date"`
	EnergyLevel      *int                 `json:"energy_level,omitempty"`
	MoodText         string               `json:"mood_text,omitempty"`
	AssignedStepIDs  []uuid.UUID          `json:"assigned_step_ids"`
	CompletedStepIDs []uuid.UUID          `json:"completed_step_ids"`
	SkipReasons      map[uuid.UUID]string `json:"skip_reasons"`
	DayRating        string               `json:"day_rating,omitempty"`
	RewardEarned     int                  `json:"reward_earned"`
	MorningCalls     int                  `json:"morning_calls"`
	UnblockCalls     int                  `json:"unblock_calls"`
	CreatedAt        time.Time            `json:"created_at"`
	// Row version for the read-patch-write cycle. Set by the database.
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *DailyLog) HasAssigned(stepID uuid.UUID) bool {
	for _, id := range l.AssignedStepIDs {
		if id == stepID {
			return true
		}
	}
	return false
}

func (l *DailyLog) HasCompleted(stepID uuid.UUID) bool {
	for _, id := range l.CompletedStepIDs {
		if id == stepID {
			return true
		}
	}
	return false
}
