package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"vidiwise/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*NotificationLogRepo)(nil)

type NotificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) *NotificationLogRepo {
	return &NotificationLogRepo{pool: pool}
}

func (r *NotificationLogRepo) Save(ctx context.Context, tx repository.Tx, jobID, channel, kind string) error {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO job_notifications (job_id, channel, kind)
VALUES ($1,$2,$3)
ON CONFLICT (job_id, channel, kind) DO NOTHING;`
	if _, err := ex.Exec(ctx, q, jobID, channel, kind); err != nil {
		return fmt.Errorf("save notification log: %w", err)
	}
	return nil
}

func (r *NotificationLogRepo) Exists(ctx context.Context, tx repository.Tx, jobID, channel, kind string) (bool, error) {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `SELECT EXISTS (SELECT 1 FROM job_notifications WHERE job_id=$1 AND channel=$2 AND kind=$3);`
	var ok bool
	if err := ex.QueryRow(ctx, q, jobID, channel, kind).Scan(&ok); err != nil {
		return false, fmt.Errorf("check notification log: %w", err)
	}
	return ok, nil
}
