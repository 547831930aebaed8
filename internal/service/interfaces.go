package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/RomaniumSSS/My-antipanic-bot/internal/ai"
	"github.com/RomaniumSSS/My-antipanic-bot/internal/domain"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

type RegisterRequest struct {
	Name       string `validate:"required,alphanum_underscore,min=3,max=100"`
	Password   string `validate:"required,min=8,max=72"`
	ExternalID int64  `validate:"required"`
}

type ReminderPrefsRequest struct {
	Morning        string `validate:"required,clock_hhmm"`
	Evening        string `validate:"required,clock_hhmm"`
	TimezoneOffset int    `validate:"min=-12,max=14"`
	Enabled        bool
}

type UserServiceI interface {
	// Validates credentials, creates new profile. Returns profile with ID
	Register(ctx context.Context, req *RegisterRequest) (*entity.UserProfile, error)
	// Compares given credentials. If ok, gives back profile with ID
	Login(ctx context.Context, name, password string) (*entity.UserProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.UserProfile, error)
	// Returns the profile for a messenger id, creating it on first contact
	EnsureProfile(ctx context.Context, externalID int64) (*entity.UserProfile, error)
	// Updates reminder preferences and recomputes the next instants
	UpdateReminderPrefs(ctx context.Context, id uuid.UUID, req *ReminderPrefsRequest) (*entity.UserProfile, error)
	// Profile totals plus today's log readout
	Stats(ctx context.Context, id uuid.UUID) (*UserStats, error)
	// Day-by-day readout of the recent window plus the week's aggregate
	History(ctx context.Context, id uuid.UUID, days int) (*HistoryResult, error)
	DeleteAccount(ctx context.Context, id uuid.UUID, password string) error
}

type DayHistory struct {
	Date      time.Time          `json:"date"`
	DayRating string             `json:"day_rating,omitempty"`
	Progress  domain.DayProgress `json:"progress"`
}

type HistoryResult struct {
	Days              []DayHistory     `json:"days"`
	Week              domain.WeekStats `json:"week"`
	Motivation        string           `json:"motivation"`
	StreakDays        int              `json:"streak_days"`
	StreakCelebration bool             `json:"streak_celebration"`
}

type UserStats struct {
	XP             int `json:"xp"`
	Level          int `json:"level"`
	StreakDays     int `json:"streak_days"`
	AssignedToday  int `json:"assigned_today"`
	CompletedToday int `json:"completed_today"`
	RewardToday    int `json:"reward_today"`
}

type StepOutcome string

const (
	OutcomeCompleted StepOutcome = "completed"
	OutcomeSkipped   StepOutcome = "skipped"
)

type StepOutcomeResult struct {
	Step            *entity.Step `json:"step"`
	AlreadyFinished bool         `json:"already_finished"`
	StageProgress   int          `json:"stage_progress"`
	StageCompleted  bool         `json:"stage_completed"`
	RewardEarned    int          `json:"reward_earned"`
	TotalXP         int          `json:"total_xp"`
	Level           int          `json:"level"`
	StreakDays      int          `json:"streak_days"`
	StreakIncreased bool         `json:"streak_increased"`
}

type ProgressionServiceI interface {
	// Returns the goal's live stage, repairing inconsistencies on read.
	// ErrGoalComplete signals a fully finished goal
	EnsureActiveStage(ctx context.Context, goal *entity.Goal) (*entity.Stage, error)
	// One-way step transition with stage progress recompute and reward
	// crediting. Idempotent: a repeat call reports AlreadyFinished
	RecordStepOutcome(ctx context.Context, userID, stepID uuid.UUID, outcome StepOutcome, skipReason string) (*StepOutcomeResult, error)
	// Creates a step under the goal's live stage and logs the assignment
	CreateStep(ctx context.Context, userID uuid.UUID, goal *entity.Goal, plan StepPlan) (*entity.Step, error)
}

// StepPlan is a step to materialize under the live stage.
type StepPlan struct {
	Title      string
	Difficulty entity.Difficulty
	Minutes    int
	Reward     int
	EnergyHint *int
	MoodHint   string
}

// QuizServiceI is the pre-goal avoidance quiz: grading, verdict and score
// persistence. The verdict screen leads into the trial session start.
type QuizServiceI interface {
	Submit(ctx context.Context, userID uuid.UUID, answers []int) (*QuizVerdict, error)
}

type QuizVerdict struct {
	Score         int    `json:"score"`
	AboveBaseline int    `json:"above_baseline"`
	Diagnosis     string `json:"diagnosis"`
}

type DailyLogServiceI interface {
	LogAssignment(ctx context.Context, userID uuid.UUID, date time.Time, stepID uuid.UUID, energyHint *int, moodHint string) (*entity.DailyLog, error)
	LogCompletion(ctx context.Context, userID uuid.UUID, date time.Time, stepID uuid.UUID, reward int) (*entity.DailyLog, error)
	LogSkip(ctx context.Context, userID uuid.UUID, date time.Time, stepID uuid.UUID, reason string) (*entity.DailyLog, error)
	SetDayRating(ctx context.Context, userID uuid.UUID, date time.Time, rating string) (*entity.DailyLog, error)
	Get(ctx context.Context, userID uuid.UUID, date time.Time) (*entity.DailyLog, error)
	// Logs with date in [from, to], oldest first
	ListRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*entity.DailyLog, error)
	// Implements the gateway's per-user-per-day counter
	TakeQuota(ctx context.Context, userID uuid.UUID, kind ai.QuotaKind, limit int, localDate time.Time) (bool, error)
}

// GatewayI mirrors the content generation gateway surface the flows use.
type GatewayI interface {
	DecomposeGoal(ctx context.Context, tctx ai.ToneContext, goalTitle string, deadline, today time.Time) []ai.StagePlan
	DailySteps(ctx context.Context, tctx ai.ToneContext, stageTitle string, energy int, mood string) (ai.StepsResult, error)
	MicroStep(ctx context.Context, tctx ai.ToneContext, stageTitle string, energy int, mood string) (ai.TextResult, error)
	UnblockSuggestions(ctx context.Context, tctx ai.ToneContext, stepTitle string, blocker domain.BlockerType, details string, count int) (ai.SuggestionsResult, error)
	Diagnosis(ctx context.Context, tctx ai.ToneContext, answersSummary string, score float64) ai.TextResult
}

type GoalServiceI interface {
	// Creates a goal and decomposes it into stages spread to the deadline
	CreateGoal(ctx context.Context, userID uuid.UUID, title, description string, deadline time.Time) (*entity.Goal, []*entity.Stage, error)
	// Finds or seeds the short-lived trial goal used before a real one exists
	EnsureTrialGoal(ctx context.Context, userID uuid.UUID) (*entity.Goal, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]*entity.Goal, error)
	// Morning flow: generates and materializes today's steps
	AssignDailySteps(ctx context.Context, userID uuid.UUID, energy int, mood string) (*DailyPlanResult, error)
	// Evening flow: records the day rating
	RateDay(ctx context.Context, userID uuid.UUID, rating string) error
}

type DailyPlanResult struct {
	Steps       []*entity.Step `json:"steps"`
	RateLimited bool           `json:"rate_limited"`
	ResetAt     time.Time      `json:"reset_at,omitempty"`
}

// PaywallGate is the billing decision point. Billing itself lives outside
// this service; the default gate admits everyone.
type PaywallGate interface {
	Allow(userID uuid.UUID) bool
}

type AllowAllPaywall struct{}

func (AllowAllPaywall) Allow(uuid.UUID) bool { return true }
