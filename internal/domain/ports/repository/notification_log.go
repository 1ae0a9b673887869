package repository

import "context"

// NotificationLogRepository remembers which job notifications went out, so
// a job is announced at most once per channel and kind.
type NotificationLogRepository interface {
	Save(ctx context.Context, tx Tx, jobID, channel, kind string) error
	Exists(ctx context.Context, tx Tx, jobID, channel, kind string) (bool, error)
}
