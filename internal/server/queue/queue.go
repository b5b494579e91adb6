// Package queue defines the durable job-queue contract between the upload
// path (producer) and the thumbnail worker (consumer).
//
// Channel identity is part of the contract: both sides MUST address the queue
// through the same named constant. Delivery is at-least-once, so consumers
// must be idempotent.
package queue

import (
	"context"
	"time"
)

// ThumbnailQueue is the single channel carrying derivative-generation jobs.
// The producer and the consumer both reference this constant; addressing the
// queue by a literal string elsewhere is a bug.
const ThumbnailQueue = "thumbnails"

// Job is the payload carried on the queue. It deliberately holds nothing but
// the identities needed to re-read current state at processing time.
type Job struct {
	UserID string `json:"userId"`
	FileID string `json:"fileId"`
}

// QueuedJob is a claimed queue entry.
type QueuedJob struct {
	ID       int64
	Queue    string
	Job      Job
	Attempts int
}

// Queue is a durable, at-least-once FIFO channel.
type Queue interface {
	// Enqueue appends job to the named channel.
	Enqueue(ctx context.Context, queue string, job Job) error

	// Dequeue claims the oldest pending entry of the named channel, or
	// returns (nil, nil) when the channel is empty. A claimed entry stays
	// invisible to other consumers until Ack, Fail or RequeueStale.
	Dequeue(ctx context.Context, queue string) (*QueuedJob, error)

	// Ack marks a claimed entry as done.
	Ack(ctx context.Context, id int64) error

	// Fail records cause for a claimed entry and returns it to the channel
	// while its attempt count is below maxAttempts; afterwards the entry is
	// parked as failed and never redelivered.
	Fail(ctx context.Context, id int64, cause error, maxAttempts int) error

	// RequeueStale returns entries claimed longer than olderThan ago back to
	// the channel. Covers consumers that died mid-job.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
