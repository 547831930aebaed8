package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

type UsersRepositoryI interface {
	// Creates new profile in database
	Create(ctx context.Context, user *entity.UserProfile) error
	// Looks up profile by messenger id. Used on every incoming interaction
	FindByExternalID(ctx context.Context, externalID int64) (*entity.UserProfile, error)
	// Looks up profile by uid
	FindByID(ctx context.Context, uid uuid.UUID) (*entity.UserProfile, error)
	// Looks up profile by account name. Used for companion-client login
	FindByName(ctx context.Context, name string) (*entity.UserProfile, error)
	// Updates whole profile row
	Update(ctx context.Context, user *entity.UserProfile) error
	// Updates only gamification totals
	UpdateStats(ctx context.Context, uid uuid.UUID, xp, level, streakDays int, streakLastDate *time.Time) error
	// Updates only the two precomputed reminder instants
	UpdateReminderInstants(ctx context.Context, uid uuid.UUID, morning, evening *time.Time) error
	// Writes one reminder instant, leaving the other column untouched
	AdvanceReminderInstant(ctx context.Context, uid uuid.UUID, evening bool, at *time.Time) error
	// Lists profiles whose morning (or evening) reminder instant is due
	FindDueReminders(ctx context.Context, now time.Time, evening bool) ([]*entity.UserProfile, error)
	// Stores the avoidance quiz score on the profile
	UpdateDependencyScore(ctx context.Context, uid uuid.UUID, score int) error
	// Deletes profile, cascading to owned goals and logs
	Delete(ctx context.Context, uid uuid.UUID) error
}

type GoalsRepositoryI interface {
	Create(ctx context.Context, goal *entity.Goal) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Goal, error)
	// Lists goals with given status owned by user, ordered by creation
	ListByStatus(ctx context.Context, uid uuid.UUID, status entity.GoalStatus) ([]*entity.Goal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.GoalStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type StagesRepositoryI interface {
	Create(ctx context.Context, stage *entity.Stage) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Stage, error)
	// All stages of a goal ordered by (order, id)
	ListByGoal(ctx context.Context, goalID uuid.UUID) ([]*entity.Stage, error)
	// Stages with given status ordered by (order, id) descending
	ListByGoalAndStatus(ctx context.Context, goalID uuid.UUID, status entity.StageStatus) ([]*entity.Stage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.StageStatus) error
	// Writes both progress and status in one statement
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, status entity.StageStatus) error
	// Demotes a set of stages to pending. Used by active-stage repair
	DemoteToPending(ctx context.Context, ids []uuid.UUID) error
}

type StepsRepositoryI interface {
	Create(ctx context.Context, step *entity.Step) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Step, error)
	ListByStage(ctx context.Context, stageID uuid.UUID) ([]*entity.Step, error)
	// Transitions pending -> completed. ErrStepFinished if already terminal
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	// Transitions pending -> skipped. ErrStepFinished if already terminal
	MarkSkipped(ctx context.Context, id uuid.UUID) error
}

type DailyLogsRepositoryI interface {
	// Inserts a fresh log row. ErrDailyLogExists on the (user, date) unique index
	Create(ctx context.Context, log *entity.DailyLog) (uuid.UUID, error)
	Get(ctx context.Context, uid uuid.UUID, date time.Time) (*entity.DailyLog, error)
	// Logs with date in [from, to] ordered by date ascending
	ListRange(ctx context.Context, uid uuid.UUID, from, to time.Time) ([]*entity.DailyLog, error)
	// Writes all mutable fields of the fetched row back. The row version
	// read by Get guards the write: a concurrent update in between makes
	// this report ErrDailyLogNotFound so the caller re-reads and re-applies
	Update(ctx context.Context, log *entity.DailyLog) error
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
