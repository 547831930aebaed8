package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/cleanup"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

type UsersRepository struct {
	conn PgConnection
}

func NewUsersRepo(cfg DBConfig) *UsersRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for usersRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for usersRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &UsersRepository{
		conn: pool,
	}
}

func NewUsersRepoWithConn(conn PgConnection) *UsersRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for usersRepo: " + err.Error())
	}
	return &UsersRepository{
		conn: conn,
	}
}

const userColumns = `id, external_id, name, password_hash, xp, level, streak_days, streak_last_date,
	dependency_score, reminder_morning, reminder_evening, timezone_offset, reminders_enabled,
	next_morning_reminder_at, next_evening_reminder_at, created_at`

func (ur *UsersRepository) Create(ctx context.Context, user *entity.UserProfile) error {
	if user == nil {
		return errors.New("user is nil")
	}
	_, err := ur.conn.Exec(ctx, `INSERT INTO users
		(external_id, name, password_hash, reminder_morning, reminder_evening, timezone_offset, reminders_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		user.ExternalID,
		user.Name,
		user.PasswordHash,
		user.ReminderMorning,
		user.ReminderEvening,
		user.TimezoneOffset,
		user.RemindersEnabled,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// Unique violation
			case "23505":
				return errorvalues.ErrUserExists
			}
		}
		return errors.New("creating user db error: " + err.Error())
	}
	return nil
}

func (ur *UsersRepository) scanUser(row pgx.Row) (*entity.UserProfile, error) {
	var user entity.UserProfile
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Name,
		&user.PasswordHash,
		&user.XP,
		&user.Level,
		&user.StreakDays,
		&user.StreakLastDate,
		&user.DependencyScore,
		&user.ReminderMorning,
		&user.ReminderEvening,
		&user.TimezoneOffset,
		&user.RemindersEnabled,
		&user.NextMorningReminderAt,
		&user.NextEveningReminderAt,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ur *UsersRepository) FindByExternalID(ctx context.Context, externalID int64) (*entity.UserProfile, error) {
	row := ur.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1;`, externalID)
	user, err := ur.scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("searching user by external id error: " + err.Error())
	}
	return user, nil
}

func (ur *UsersRepository) FindByID(ctx context.Context, uid uuid.UUID) (*entity.UserProfile, error) {
	row := ur.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, uid)
	user, err := ur.scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("searching user by id error: " + err.Error())
	}
	return user, nil
}

func (ur *UsersRepository) FindByName(ctx context.Context, name string) (*entity.UserProfile, error) {
	row := ur.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1;`, name)
	user, err := ur.scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("searching user by name error: " + err.Error())
	}
	return user, nil
}

func (ur *UsersRepository) Update(ctx context.Context, user *entity.UserProfile) error {
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET
		name = $1, password_hash = $2, reminder_morning = $3, reminder_evening = $4,
		timezone_offset = $5, reminders_enabled = $6 WHERE id = $7;`,
		user.Name,
		user.PasswordHash,
		user.ReminderMorning,
		user.ReminderEvening,
		user.TimezoneOffset,
		user.RemindersEnabled,
		user.ID,
	)
	if err != nil {
		return errors.New("updating user error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}

func (ur *UsersRepository) UpdateStats(ctx context.Context, uid uuid.UUID, xp, level, streakDays int, streakLastDate *time.Time) error {
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET xp = $1, level = $2, streak_days = $3, streak_last_date = $4 WHERE id = $5;`,
		xp, level, streakDays, streakLastDate, uid,
	)
	if err != nil {
		return errors.New("updating user stats error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}

func (ur *UsersRepository) UpdateReminderInstants(ctx context.Context, uid uuid.UUID, morning, evening *time.Time) error {
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET next_morning_reminder_at = $1, next_evening_reminder_at = $2 WHERE id = $3;`,
		morning, evening, uid,
	)
	if err != nil {
		return errors.New("updating reminder instants error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}

func (ur *UsersRepository) AdvanceReminderInstant(ctx context.Context, uid uuid.UUID, evening bool, at *time.Time) error {
	column := "next_morning_reminder_at"
	if evening {
		column = "next_evening_reminder_at"
	}
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET `+column+` = $1 WHERE id = $2;`, at, uid)
	if err != nil {
		return errors.New("advancing reminder instant error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}

func (ur *UsersRepository) UpdateDependencyScore(ctx context.Context, uid uuid.UUID, score int) error {
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET dependency_score = $1 WHERE id = $2;`, score, uid)
	if err != nil {
		return errors.New("updating dependency score error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}

func (ur *UsersRepository) FindDueReminders(ctx context.Context, now time.Time, evening bool) ([]*entity.UserProfile, error) {
	column := "next_morning_reminder_at"
	if evening {
		column = "next_evening_reminder_at"
	}
	rows, err := ur.conn.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE reminders_enabled = TRUE AND `+column+` IS NOT NULL AND `+column+` <= $1;`, now)
	if err != nil {
		return nil, errors.New("listing due reminders error: " + err.Error())
	}
	defer rows.Close()
	users := make([]*entity.UserProfile, 0)
	for rows.Next() {
		user, err := ur.scanUser(rows)
		if err != nil {
			return nil, errors.New("unmarshalling due user error: " + err.Error())
		}
		users = append(users, user)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning due users: " + rows.Err().Error())
	}
	return users, nil
}

func (ur *UsersRepository) Delete(ctx context.Context, uid uuid.UUID) error {
	ct, err := ur.conn.Exec(ctx, `DELETE FROM users WHERE id = $1;`, uid)
	if err != nil {
		return errors.New("deleting user error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}
