package jobs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"filevault/internal/server/queue"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestEnqueue_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+jobs`).
		WithArgs(queue.ThumbnailQueue, "u1", "f1", "pending").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Enqueue(context.Background(), queue.ThumbnailQueue, queue.Job{UserID: "u1", FileID: "f1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDequeue_ClaimsOldestPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT id, user_id, file_id, attempts FROM jobs.*FOR UPDATE SKIP LOCKED`).
		WithArgs(queue.ThumbnailQueue, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "file_id", "attempts"}).
			AddRow(int64(7), "u1", "f1", 0))
	mock.ExpectExec(`UPDATE jobs SET status = \$2, attempts = attempts \+ 1`).
		WithArgs(int64(7), "running").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	j, err := repo.Dequeue(context.Background(), queue.ThumbnailQueue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j == nil || j.ID != 7 || j.Job.FileID != "f1" || j.Attempts != 1 {
		t.Fatalf("unexpected claim: %+v", j)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDequeue_EmptyQueueReturnsNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, user_id, file_id, attempts FROM jobs`).
		WithArgs(queue.ThumbnailQueue, "pending").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	j, err := repo.Dequeue(context.Background(), queue.ThumbnailQueue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != nil {
		t.Fatalf("want nil claim on empty queue, got %+v", j)
	}
}

func TestDequeue_RollsBackOnUpdateError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, user_id, file_id, attempts FROM jobs`).
		WithArgs(queue.ThumbnailQueue, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "file_id", "attempts"}).
			AddRow(int64(7), "u1", "f1", 0))
	mock.ExpectExec(`UPDATE jobs SET status`).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	_, err := repo.Dequeue(context.Background(), queue.ThumbnailQueue)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAck(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE jobs SET status = \$2`).
		WithArgs(int64(7), "done").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Ack(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFail_RecordsCauseAndAttemptCap(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE jobs.*SET status = CASE WHEN attempts < \$2 THEN \$3 ELSE \$4 END`).
		WithArgs(int64(7), 3, "pending", "failed", "File not found").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Fail(context.Background(), 7, errors.New("File not found"), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRequeueStale(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE jobs SET status = \$1`).
		WithArgs("pending", "running", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.RequeueStale(context.Background(), 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 requeued, got %d", n)
	}
}
