package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/cleanup"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

type DailyLogsRepository struct {
	conn PgConnection
}

func NewDailyLogsRepo(cfg DBConfig) *DailyLogsRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for dailyLogsRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for dailyLogsRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &DailyLogsRepository{
		conn: pool,
	}
}

func NewDailyLogsRepoWithConn(conn PgConnection) *DailyLogsRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for dailyLogsRepo: " + err.Error())
	}
	return &DailyLogsRepository{
		conn: conn,
	}
}

// Create inserts a fresh daily log row. The unique index on (user_id, date)
// turns a concurrent duplicate insert into ErrDailyLogExists, which callers
// answer by re-fetching the winner's row.
func (dr *DailyLogsRepository) Create(ctx context.Context, dlog *entity.DailyLog) (uuid.UUID, error) {
	assigned, completed, skips, err := marshalLogSets(dlog)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	row := dr.conn.QueryRow(ctx, `INSERT INTO daily_logs
		(user_id, date, energy_level, mood_text, assigned_step_ids, completed_step_ids, skip_reasons, day_rating, reward_earned, morning_calls, unblock_calls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id;`,
		dlog.UserID,
		dlog.Date,
		dlog.EnergyLevel,
		dlog.MoodText,
		assigned,
		completed,
		skips,
		dlog.DayRating,
		dlog.RewardEarned,
		dlog.MorningCalls,
		dlog.UnblockCalls,
	)
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// Unique violation on (user_id, date)
			case "23505":
				return uuid.UUID{}, errorvalues.ErrDailyLogExists
			// FK violation
			case "23503":
				return uuid.UUID{}, errorvalues.ErrUserNotFound
			}
		}
		return uuid.UUID{}, errors.New("creating daily log db error: " + err.Error())
	}
	return id, nil
}

const dailyLogColumns = `id, user_id, date, energy_level, mood_text, assigned_step_ids, completed_step_ids, skip_reasons, day_rating, reward_earned, morning_calls, unblock_calls, created_at, updated_at`

func (dr *DailyLogsRepository) scanLog(row pgx.Row, dlog *entity.DailyLog, assigned, completed, skips *[]byte) error {
	return row.Scan(
		&dlog.ID,
		&dlog.UserID,
		&dlog.Date,
		&dlog.EnergyLevel,
		&dlog.MoodText,
		assigned,
		completed,
		skips,
		&dlog.DayRating,
		&dlog.RewardEarned,
		&dlog.MorningCalls,
		&dlog.UnblockCalls,
		&dlog.CreatedAt,
		&dlog.UpdatedAt,
	)
}

func (dr *DailyLogsRepository) Get(ctx context.Context, uid uuid.UUID, date time.Time) (*entity.DailyLog, error) {
	var (
		dlog      entity.DailyLog
		assigned  []byte
		completed []byte
		skips     []byte
	)
	row := dr.conn.QueryRow(ctx, `SELECT `+dailyLogColumns+`
		FROM daily_logs WHERE user_id = $1 AND date = $2;`, uid, date)
	err := dr.scanLog(row, &dlog, &assigned, &completed, &skips)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrDailyLogNotFound
		}
		return nil, errors.New("getting daily log error: " + err.Error())
	}
	if err := unmarshalLogSets(&dlog, assigned, completed, skips); err != nil {
		return nil, err
	}
	return &dlog, nil
}

func (dr *DailyLogsRepository) ListRange(ctx context.Context, uid uuid.UUID, from, to time.Time) ([]*entity.DailyLog, error) {
	rows, err := dr.conn.Query(ctx, `SELECT `+dailyLogColumns+`
		FROM daily_logs WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date;`, uid, from, to)
	if err != nil {
		return nil, errors.New("listing daily logs error: " + err.Error())
	}
	defer rows.Close()
	logs := make([]*entity.DailyLog, 0)
	for rows.Next() {
		var (
			dlog      entity.DailyLog
			assigned  []byte
			completed []byte
			skips     []byte
		)
		if err := dr.scanLog(rows, &dlog, &assigned, &completed, &skips); err != nil {
			return nil, errors.New("unmarshalling daily log error: " + err.Error())
		}
		if err := unmarshalLogSets(&dlog, assigned, completed, skips); err != nil {
			return nil, err
		}
		logs = append(logs, &dlog)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning daily logs: " + rows.Err().Error())
	}
	return logs, nil
}

// Update writes the row back, guarded by the updated_at read alongside it.
// A concurrent writer bumps updated_at and makes this match zero rows, which
// maps to ErrDailyLogNotFound so the caller re-reads and re-applies its patch.
func (dr *DailyLogsRepository) Update(ctx context.Context, dlog *entity.DailyLog) error {
	assigned, completed, skips, err := marshalLogSets(dlog)
	if err != nil {
		return err
	}
	ct, err := dr.conn.Exec(ctx, `UPDATE daily_logs SET
		energy_level = $1, mood_text = $2, assigned_step_ids = $3, completed_step_ids = $4,
		skip_reasons = $5, day_rating = $6, reward_earned = $7, morning_calls = $8, unblock_calls = $9,
		updated_at = now()
		WHERE id = $10 AND updated_at = $11;`,
		dlog.EnergyLevel,
		dlog.MoodText,
		assigned,
		completed,
		skips,
		dlog.DayRating,
		dlog.RewardEarned,
		dlog.MorningCalls,
		dlog.UnblockCalls,
		dlog.ID,
		dlog.UpdatedAt,
	)
	if err != nil {
		return errors.New("updating daily log error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrDailyLogNotFound
	}
	return nil
}

// Step id sets and skip reasons live in JSONB columns.
func marshalLogSets(dlog *entity.DailyLog) ([]byte, []byte, []byte, error) {
	if dlog.AssignedStepIDs == nil {
		dlog.AssignedStepIDs = []uuid.UUID{}
	}
	if dlog.CompletedStepIDs == nil {
		dlog.CompletedStepIDs = []uuid.UUID{}
	}
	if dlog.SkipReasons == nil {
		dlog.SkipReasons = map[uuid.UUID]string{}
	}
	assigned, err := sonic.Marshal(dlog.AssignedStepIDs)
	if err != nil {
		return nil, nil, nil, errors.New("marshalling assigned ids error: " + err.Error())
	}
	completed, err := sonic.Marshal(dlog.CompletedStepIDs)
	if err != nil {
		return nil, nil, nil, errors.New("marshalling completed ids error: " + err.Error())
	}
	skips, err := sonic.Marshal(dlog.SkipReasons)
	if err != nil {
		return nil, nil, nil, errors.New("marshalling skip reasons error: " + err.Error())
	}
	return assigned, completed, skips, nil
}

func unmarshalLogSets(dlog *entity.DailyLog, assigned, completed, skips []byte) error {
	if err := sonic.Unmarshal(assigned, &dlog.AssignedStepIDs); err != nil {
		return errors.New("unmarshalling assigned ids error: " + err.Error())
	}
	if err := sonic.Unmarshal(completed, &dlog.CompletedStepIDs); err != nil {
		return errors.New("unmarshalling completed ids error: " + err.Error())
	}
	if err := sonic.Unmarshal(skips, &dlog.SkipReasons); err != nil {
		return errors.New("unmarshalling skip reasons error: " + err.Error())
	}
	return nil
}
