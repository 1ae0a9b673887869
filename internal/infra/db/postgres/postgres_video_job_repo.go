package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
)

var _ repository.VideoJobRepository = (*VideoJobRepo)(nil)

type VideoJobRepo struct {
	pool *pgxpool.Pool
}

func NewVideoJobRepo(pool *pgxpool.Pool) *VideoJobRepo {
	return &VideoJobRepo{pool: pool}
}

const jobColumns = `id, payload, state, title, summary, folder, auto_generated, has_result, error, polls, submitted_at, updated_at`

func (r *VideoJobRepo) Save(ctx context.Context, qx any, j *model.Job) error {
	const q = `
INSERT INTO video_jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  payload = CASE WHEN EXCLUDED.payload = '' THEN video_jobs.payload ELSE EXCLUDED.payload END,
  state = EXCLUDED.state,
  title = EXCLUDED.title,
  summary = EXCLUDED.summary,
  folder = EXCLUDED.folder,
  auto_generated = EXCLUDED.auto_generated,
  has_result = EXCLUDED.has_result,
  error = EXCLUDED.error,
  polls = EXCLUDED.polls,
  updated_at = EXCLUDED.updated_at;`
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	var res model.JobResult
	if j.Result != nil {
		res = *j.Result
	}
	_, err = ex.Exec(ctx, q, j.ID, j.Payload, string(j.State), res.Title, res.Summary, res.Folder,
		res.AutoGenerated, j.Result != nil, j.Error, j.Polls, j.SubmittedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *VideoJobRepo) FindByID(ctx context.Context, qx any, id string) (*model.Job, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	j, err := scanJob(ex.QueryRow(ctx, `SELECT `+jobColumns+` FROM video_jobs WHERE id=$1;`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *VideoJobRepo) ListRecent(ctx context.Context, qx any, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+jobColumns+` FROM video_jobs ORDER BY updated_at DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j         model.Job
		state     string
		res       model.JobResult
		hasResult bool
	)
	err := row.Scan(&j.ID, &j.Payload, &state, &res.Title, &res.Summary, &res.Folder,
		&res.AutoGenerated, &hasResult, &j.Error, &j.Polls, &j.SubmittedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.State = model.JobState(state)
	if hasResult {
		res.VideoID = j.ID
		j.Result = &res
	}
	return &j, nil
}
