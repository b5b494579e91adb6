package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"filevault/internal/dbx"
	"filevault/internal/server/queue"
)

// Entry statuses. pending entries are visible to consumers, running entries
// are claimed, done/failed entries are terminal.
const (
	statusPending = "pending"
	statusRunning = "running"
	statusDone    = "done"
	statusFailed  = "failed"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Enqueue(ctx context.Context, queueName string, job queue.Job) error {

	query :=
		`INSERT INTO jobs (queue, user_id, file_id, status)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, queueName, job.UserID, job.FileID, statusPending)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Dequeue claims the oldest pending entry inside a transaction: the SELECT
// locks the row (SKIP LOCKED keeps concurrent consumers from blocking on it)
// and the UPDATE flips it to running before the claim becomes visible.
func (r *PostgresRepository) Dequeue(ctx context.Context, queueName string) (*queue.QueuedJob, error) {

	var claimed *queue.QueuedJob

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {

		query :=
			`SELECT id, user_id, file_id, attempts FROM jobs
			 WHERE queue = $1 AND status = $2
			 ORDER BY id
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED
			 `

		j := &queue.QueuedJob{Queue: queueName}
		err := tx.QueryRowContext(ctx, query, queueName, statusPending).
			Scan(&j.ID, &j.Job.UserID, &j.Job.FileID, &j.Attempts)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("db error: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = $2, attempts = attempts + 1, updated_at = now() WHERE id = $1`,
			j.ID, statusRunning)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		j.Attempts++
		claimed = j
		return nil
	})

	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (r *PostgresRepository) Ack(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1`,
		id, statusDone)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Fail(ctx context.Context, id int64, cause error, maxAttempts int) error {

	// Below the attempt cap the entry goes back to pending for redelivery;
	// at the cap it is parked as failed, never silently dropped.
	query :=
		`UPDATE jobs
		 SET status = CASE WHEN attempts < $2 THEN $3 ELSE $4 END,
		     last_error = $5,
		     updated_at = now()
		 WHERE id = $1
		 `

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	_, err := r.db.ExecContext(ctx, query, id, maxAttempts, statusPending, statusFailed, msg)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {

	query :=
		`UPDATE jobs SET status = $1, updated_at = now()
		 WHERE status = $2 AND updated_at < $3
		 `

	res, err := r.db.ExecContext(ctx, query, statusPending, statusRunning, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	return n, nil
}
