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

type StepsRepository struct {
	conn PgConnection
}

func NewStepsRepo(cfg DBConfig) *StepsRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for stepsRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for stepsRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &StepsRepository{
		conn: pool,
	}
}

func NewStepsRepoWithConn(conn PgConnection) *StepsRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for stepsRepo: " + err.Error())
	}
	return &StepsRepository{
		conn: conn,
	}
}

func (str *StepsRepository) Create(ctx context.Context, step *entity.Step) (uuid.UUID, error) {
	var id uuid.UUID
	row := str.conn.QueryRow(ctx, `INSERT INTO steps (stage_id, title, difficulty, estimated_minutes, reward_points, scheduled_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id;`,
		step.StageID,
		step.Title,
		step.Difficulty,
		step.EstimatedMinutes,
		step.RewardPoints,
		step.ScheduledDate,
		step.Status,
	)
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return uuid.UUID{}, errorvalues.ErrStageNotFound
			}
		}
		return uuid.UUID{}, errors.New("creating step db error: " + err.Error())
	}
	return id, nil
}

func (str *StepsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Step, error) {
	var step entity.Step
	step.ID = id
	row := str.conn.QueryRow(ctx, `SELECT stage_id, title, difficulty, estimated_minutes, reward_points, scheduled_date, status, completed_at
		FROM steps WHERE id = $1;`, id)
	if err := row.Scan(&step.StageID, &step.Title, &step.Difficulty, &step.EstimatedMinutes, &step.RewardPoints, &step.ScheduledDate, &step.Status, &step.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrStepNotFound
		}
		return nil, errors.New("getting step by id error: " + err.Error())
	}
	return &step, nil
}

func (str *StepsRepository) ListByStage(ctx context.Context, stageID uuid.UUID) ([]*entity.Step, error) {
	rows, err := str.conn.Query(ctx, `SELECT id, stage_id, title, difficulty, estimated_minutes, reward_points, scheduled_date, status, completed_at
		FROM steps WHERE stage_id = $1 ORDER BY id;`, stageID)
	if err != nil {
		return nil, errors.New("listing steps error: " + err.Error())
	}
	defer rows.Close()
	steps := make([]*entity.Step, 0)
	for rows.Next() {
		s := entity.Step{}
		err = rows.Scan(&s.ID, &s.StageID, &s.Title, &s.Difficulty, &s.EstimatedMinutes, &s.RewardPoints, &s.ScheduledDate, &s.Status, &s.CompletedAt)
		if err != nil {
			return nil, errors.New("unmarshalling step error: " + err.Error())
		}
		steps = append(steps, &s)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning steps: " + rows.Err().Error())
	}
	return steps, nil
}

// MarkCompleted transitions only pending steps, so two concurrent callers
// resolve to exactly one successful transition.
func (str *StepsRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	ct, err := str.conn.Exec(ctx, `UPDATE steps SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'pending';`, at, id)
	if err != nil {
		return errors.New("completing step error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return str.classifyNoTransition(ctx, id)
	}
	return nil
}

func (str *StepsRepository) MarkSkipped(ctx context.Context, id uuid.UUID) error {
	ct, err := str.conn.Exec(ctx, `UPDATE steps SET status = 'skipped' WHERE id = $1 AND status = 'pending';`, id)
	if err != nil {
		return errors.New("skipping step error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return str.classifyNoTransition(ctx, id)
	}
	return nil
}

// Zero rows affected means either the step is gone or another caller
// already finished it. Distinguish the two for the service layer.
func (str *StepsRepository) classifyNoTransition(ctx context.Context, id uuid.UUID) error {
	var status entity.StepStatus
	row := str.conn.QueryRow(ctx, `SELECT status FROM steps WHERE id = $1;`, id)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorvalues.ErrStepNotFound
		}
		return errors.New("classifying step transition error: " + err.Error())
	}
	return errorvalues.ErrStepFinished
}
