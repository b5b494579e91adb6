package thumbs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"filevault/internal/common"
	"filevault/internal/logging"
	"filevault/internal/server/blob"
	"filevault/internal/server/queue"
	"filevault/internal/server/repositories/files"
)

// errQueueEmpty drives the poll backoff; it never escapes Run.
var errQueueEmpty = errors.New("queue empty")

// Options bounds the worker's polling and failure behavior.
type Options struct {
	// PollInterval is the base delay between polls of an empty queue; the
	// delay backs off exponentially up to PollMaxInterval.
	PollInterval    time.Duration
	PollMaxInterval time.Duration

	// MaxAttempts caps redeliveries of a failing job before it is parked.
	MaxAttempts int

	// DerivativeTimeout bounds the generation of a single derivative.
	DerivativeTimeout time.Duration

	// StaleAfter is how long a claimed job may sit before it is assumed
	// abandoned and returned to the queue.
	StaleAfter time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PollInterval <= 0 {
		out.PollInterval = time.Second
	}
	if out.PollMaxInterval <= 0 {
		out.PollMaxInterval = 10 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.DerivativeTimeout <= 0 {
		out.DerivativeTimeout = 30 * time.Second
	}
	if out.StaleAfter <= 0 {
		out.StaleAfter = 5 * time.Minute
	}
	return out
}

// Worker consumes thumbnail jobs and regenerates the derivative set. Any
// number of workers may run against the same queue; jobs for distinct files
// touch disjoint blobs.
type Worker struct {
	queue  queue.Queue
	files  files.Repository
	blobs  blob.Store
	logger logging.Logger
	opts   Options
}

func NewWorker(q queue.Queue, repo files.Repository, blobs blob.Store, logger logging.Logger, opts Options) *Worker {
	return &Worker{
		queue:  q,
		files:  repo,
		blobs:  blobs,
		logger: logger.With("module", "thumbnail_worker"),
		opts:   opts.withDefaults(),
	}
}

// Run consumes jobs until ctx is cancelled. Each job is processed to
// completion before the next claim; job failures are recorded on the queue,
// never fatal to the worker.
func (w *Worker) Run(ctx context.Context) error {

	go w.requeueLoop(ctx)

	for {
		job, err := w.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := w.process(ctx, job.Job); err != nil {
			w.logger.Error(ctx, "job failed", "jobId", job.ID, "fileId", job.Job.FileID, "attempt", job.Attempts, "error", err)
			if ferr := w.queue.Fail(ctx, job.ID, err, w.opts.MaxAttempts); ferr != nil {
				w.logger.Error(ctx, "job failure not recorded", "jobId", job.ID, "error", ferr)
			}
			continue
		}

		if err := w.queue.Ack(ctx, job.ID); err != nil {
			// The job is done but stays claimed; the stale requeue will
			// redeliver it and regeneration is idempotent.
			w.logger.Error(ctx, "job ack failed", "jobId", job.ID, "error", err)
		}
	}
}

// next polls the queue, backing off while it is empty, until a job is
// claimed or ctx is cancelled.
func (w *Worker) next(ctx context.Context) (*queue.QueuedJob, error) {
	var job *queue.QueuedJob

	backoff := retry.WithCappedDuration(w.opts.PollMaxInterval, retry.NewExponential(w.opts.PollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		j, err := w.queue.Dequeue(ctx, queue.ThumbnailQueue)
		if err != nil {
			w.logger.Warn(ctx, "dequeue failed", "error", err)
			return retry.RetryableError(err)
		}
		if j == nil {
			return retry.RetryableError(errQueueEmpty)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (w *Worker) requeueLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.StaleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.RequeueStale(ctx, w.opts.StaleAfter)
			if err != nil {
				w.logger.Warn(ctx, "stale requeue failed", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Info(ctx, "requeued stale jobs", "count", n)
			}
		}
	}
}

// process regenerates the full derivative set for one job. The three widths
// run concurrently and the job succeeds only when all three blobs are
// written; any failure fails the job as a whole.
func (w *Worker) process(ctx context.Context, job queue.Job) error {

	if job.FileID == "" {
		return errors.New("Missing fileId")
	}
	if job.UserID == "" {
		return errors.New("Missing userId")
	}

	file, err := w.files.GetByIDAndOwner(ctx, job.FileID, job.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errors.New("File not found")
		}
		return fmt.Errorf("file lookup: %w", err)
	}

	body, err := w.blobs.Open(ctx, file.StorageKey)
	if err != nil {
		return fmt.Errorf("primary blob: %w", err)
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("primary blob: %w", err)
	}

	img, format, err := decodeImage(data)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, width := range blob.DerivativeWidths {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, w.opts.DerivativeTimeout)
			defer cancel()

			thumb, err := w.renderWithin(tctx, img, width, format)
			if err != nil {
				return fmt.Errorf("derivative (width %d): %w", width, err)
			}

			key := blob.DerivativeKey(file.StorageKey, width)
			if err := w.blobs.Save(tctx, key, thumb); err != nil {
				return fmt.Errorf("derivative (width %d): %w", width, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// renderWithin bounds one render with ctx. The render itself cannot be
// interrupted mid-resize; on timeout its result is discarded and the
// derivative counts as failed.
func (w *Worker) renderWithin(ctx context.Context, img image.Image, width int, format imaging.Format) ([]byte, error) {
	type rendered struct {
		data []byte
		err  error
	}

	done := make(chan rendered, 1)
	go func() {
		data, err := renderThumbnail(img, width, format)
		done <- rendered{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}
