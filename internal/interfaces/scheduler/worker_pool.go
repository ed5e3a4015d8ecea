package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const jobTimeout = 5 * time.Minute

// ErrPoolClosed is returned by Submit once shutdown has begun.
var ErrPoolClosed = errors.New("worker pool closed")

var (
	jobTracer          = otel.Tracer("balancebook/scheduler")
	jobMeter           = otel.Meter("balancebook/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Jobs executed, by outcome"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs rejected because the queue was full"))
)

// WorkerPool runs jobs on a fixed number of goroutines, optionally pausing
// between jobs to stay under provider rate limits.
type WorkerPool struct {
	workers int
	delay   time.Duration
	queue   chan Job

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func NewWorkerPool(workers int, delay time.Duration, queueSize int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: max(workers, 1),
		delay:   delay,
		queue:   make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  slog.Default().With(slog.String("component", "worker_pool")),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.wg.Add(wp.workers)
	for i := range wp.workers {
		go wp.run(i + 1)
	}
}

func (wp *WorkerPool) run(id int) {
	defer wp.wg.Done()
	for job := range wp.queue {
		if wp.ctx.Err() != nil {
			return
		}
		wp.execute(id, job)
		if !wp.pause() {
			return
		}
	}
}

// pause waits out the configured delay; false means the pool was cancelled.
func (wp *WorkerPool) pause() bool {
	if wp.delay <= 0 {
		return true
	}
	t := time.NewTimer(wp.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

func (wp *WorkerPool) execute(worker int, job Job) {
	ctx, cancel := context.WithTimeout(wp.ctx, jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute", trace.WithAttributes(
		attribute.Int("worker.id", worker),
		attribute.String("job.description", job.Description()),
		attribute.String("job.subject", job.Subject()),
	))
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	jobDuration.Record(ctx, elapsed.Seconds())
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", outcome)))

	attrs := []any{
		slog.Int("worker", worker),
		slog.String("job", job.Description()),
		slog.String("subject", job.Subject()),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		wp.logger.Error("job failed", append(attrs, slog.Any("error", err))...)
		return
	}
	wp.logger.Info("job completed", attrs...)
}

// Submit queues a job without blocking. A full queue rejects the job.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.queue <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return fmt.Errorf("job queue full, dropping %s", job.Description())
	}
}

// SubmitBatch queues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	accepted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.logger.Warn("job not submitted", slog.String("subject", job.Subject()), slog.Any("error", err))
			continue
		}
		accepted++
	}
	wp.logger.Info("jobs submitted", slog.Int("submitted", accepted), slog.Int("total", len(jobs)))
	return accepted
}

// ShutdownWithTimeout stops accepting jobs and waits for queued ones to
// drain. Jobs still running after timeout have their context cancelled.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.queue)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		wp.logger.Warn("timeout reached, cancelling running jobs")
	}
	wp.cancel()
}
