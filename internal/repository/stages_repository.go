package repository

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	errorvalues "github.com/RomaniumSSS/My-antipanic-bot/internal/error_values"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/cleanup"
	"github.com/RomaniumSSS/My-antipanic-bot/pkg/entity"
)

type StagesRepository struct {
	conn PgConnection
}

func NewStagesRepo(cfg DBConfig) *StagesRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for stagesRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for stagesRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &StagesRepository{
		conn: pool,
	}
}

func NewStagesRepoWithConn(conn PgConnection) *StagesRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for stagesRepo: " + err.Error())
	}
	return &StagesRepository{
		conn: conn,
	}
}

func (sr *StagesRepository) Create(ctx context.Context, stage *entity.Stage) (uuid.UUID, error) {
	var id uuid.UUID
	row := sr.conn.QueryRow(ctx, `INSERT INTO stages (goal_id, title, ord, start_date, end_date, progress, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id;`,
		stage.GoalID,
		stage.Title,
		stage.Order,
		stage.StartDate,
		stage.EndDate,
		stage.Progress,
		stage.Status,
	)
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return uuid.UUID{}, errorvalues.ErrGoalNotFound
			}
		}
		return uuid.UUID{}, errors.New("creating stage db error: " + err.Error())
	}
	return id, nil
}

func (sr *StagesRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Stage, error) {
	var stage entity.Stage
	stage.ID = id
	row := sr.conn.QueryRow(ctx, `SELECT goal_id, title, ord, start_date, end_date, progress, status
		FROM stages WHERE id = $1;`, id)
	if err := row.Scan(&stage.GoalID, &stage.Title, &stage.Order, &stage.StartDate, &stage.EndDate, &stage.Progress, &stage.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrStageNotFound
		}
		return nil, errors.New("getting stage by id error: " + err.Error())
	}
	return &stage, nil
}

func (sr *StagesRepository) scanStages(rows pgx.Rows) ([]*entity.Stage, error) {
	defer rows.Close()
	stages := make([]*entity.Stage, 0)
	for rows.Next() {
		s := entity.Stage{}
		err := rows.Scan(&s.ID, &s.GoalID, &s.Title, &s.Order, &s.StartDate, &s.EndDate, &s.Progress, &s.Status)
		if err != nil {
			return nil, errors.New("unmarshalling stage error: " + err.Error())
		}
		stages = append(stages, &s)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning stages: " + rows.Err().Error())
	}
	return stages, nil
}

func (sr *StagesRepository) ListByGoal(ctx context.Context, goalID uuid.UUID) ([]*entity.Stage, error) {
	rows, err := sr.conn.Query(ctx, `SELECT id, goal_id, title, ord, start_date, end_date, progress, status
		FROM stages WHERE goal_id = $1 ORDER BY ord, id;`, goalID)
	if err != nil {
		return nil, errors.New("listing stages error: " + err.Error())
	}
	return sr.scanStages(rows)
}

func (sr *StagesRepository) ListByGoalAndStatus(ctx context.Context, goalID uuid.UUID, status entity.StageStatus) ([]*entity.Stage, error) {
	rows, err := sr.conn.Query(ctx, `SELECT id, goal_id, title, ord, start_date, end_date, progress, status
		FROM stages WHERE goal_id = $1 AND status = $2 ORDER BY ord DESC, id DESC;`, goalID, status)
	if err != nil {
		return nil, errors.New("listing stages by status error: " + err.Error())
	}
	return sr.scanStages(rows)
}

func (sr *StagesRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.StageStatus) error {
	ct, err := sr.conn.Exec(ctx, `UPDATE stages SET status = $1 WHERE id = $2;`, status, id)
	if err != nil {
		return errors.New("updating stage status error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrStageNotFound
	}
	return nil
}

func (sr *StagesRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, status entity.StageStatus) error {
	ct, err := sr.conn.Exec(ctx, `UPDATE stages SET progress = $1, status = $2 WHERE id = $3;`, progress, status, id)
	if err != nil {
		return errors.New("updating stage progress error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrStageNotFound
	}
	return nil
}

func (sr *StagesRepository) DemoteToPending(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := sr.conn.Exec(ctx, `UPDATE stages SET status = 'pending' WHERE id = ANY($1);`, ids)
	if err != nil {
		return errors.New("demoting stages error: " + err.Error())
	}
	return nil
}
