package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ScheduleTime is a time of day at which a schedule fires.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}
	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}
	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// JobProvider builds the jobs for one run of a schedule.
type JobProvider func(ctx context.Context) ([]Job, error)

// Schedule names a job provider and the times of day it runs.
type Schedule struct {
	Name  string
	Times []string
	Jobs  JobProvider
}

type schedule struct {
	name    string
	times   []ScheduleTime
	jobs    JobProvider
	lastRun string
}

// Scheduler runs every configured schedule at its times of day, feeding the
// produced jobs into a shared worker pool.
type Scheduler struct {
	workerPool   *WorkerPool
	schedules    []*schedule
	runOnStartup bool
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// Config holds configuration for the scheduler.
type Config struct {
	Schedules    []Schedule
	WorkerCount  int
	JobDelay     time.Duration
	QueueSize    int
	RunOnStartup bool
}

// New creates a scheduler; every schedule needs a provider and at least one
// valid time.
func New(cfg Config) (*Scheduler, error) {
	if len(cfg.Schedules) == 0 {
		return nil, errors.New("at least one schedule is required")
	}

	logger := slog.Default().With(slog.String("component", "scheduler"))
	schedules := make([]*schedule, 0, len(cfg.Schedules))
	for _, sc := range cfg.Schedules {
		if sc.Jobs == nil {
			return nil, fmt.Errorf("schedule %q has no job provider", sc.Name)
		}
		times := make([]ScheduleTime, 0, len(sc.Times))
		for _, s := range sc.Times {
			st, err := ParseScheduleTime(s)
			if err != nil {
				return nil, fmt.Errorf("schedule %q: failed to parse time %q: %w", sc.Name, s, err)
			}
			times = append(times, st)
		}
		if len(times) == 0 {
			return nil, fmt.Errorf("schedule %q needs at least one time", sc.Name)
		}
		schedules = append(schedules, &schedule{name: sc.Name, times: times, jobs: sc.Jobs})
		logger.Info("schedule registered", slog.String("schedule", sc.Name), slog.Any("times", sc.Times))
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger.Info("worker pool configured",
		slog.Int("workers", cfg.WorkerCount),
		slog.Duration("job_delay", cfg.JobDelay),
		slog.Int("queue_size", cfg.QueueSize),
	)

	return &Scheduler{
		workerPool:   NewWorkerPool(cfg.WorkerCount, cfg.JobDelay, cfg.QueueSize),
		schedules:    schedules,
		runOnStartup: cfg.RunOnStartup,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the worker pool and the scheduling loop.
func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		s.logger.Info("running all schedules on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for _, sc := range s.schedules {
				s.run(sc)
			}
		}()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			for _, sc := range s.due(now) {
				s.logger.Info("schedule triggered", slog.String("schedule", sc.name), slog.String("at", now.Format("15:04")))
				s.run(sc)
			}
		}
	}
}

// due returns the schedules whose time matches now and which have not yet
// fired in this minute.
func (s *Scheduler) due(now time.Time) []*schedule {
	key := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*schedule
	for _, sc := range s.schedules {
		if sc.lastRun == key {
			continue
		}
		for _, st := range sc.times {
			if now.Hour() == st.Hour && now.Minute() == st.Minute {
				sc.lastRun = key
				due = append(due, sc)
				break
			}
		}
	}
	return due
}

// run asks a schedule for its jobs and submits them.
func (s *Scheduler) run(sc *schedule) {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	jobs, err := sc.jobs(ctx)
	if err != nil {
		s.logger.Error("failed to build jobs", slog.String("schedule", sc.name), slog.Any("error", err))
		return
	}
	if len(jobs) == 0 {
		s.logger.Info("no jobs to run", slog.String("schedule", sc.name))
		return
	}
	s.workerPool.SubmitBatch(jobs)
}

// TriggerNow runs the named schedule immediately.
func (s *Scheduler) TriggerNow(name string) error {
	for _, sc := range s.schedules {
		if sc.name == name {
			s.logger.Info("manual trigger", slog.String("schedule", name))
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.run(sc)
			}()
			return nil
		}
	}
	return fmt.Errorf("unknown schedule %q", name)
}

// NextRun returns the next time any schedule fires after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	var next time.Time
	for _, sc := range s.schedules {
		for _, st := range sc.times {
			t := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
			if !t.After(now) {
				t = t.AddDate(0, 0, 1)
			}
			if next.IsZero() || t.Before(next) {
				next = t
			}
		}
	}
	return next
}

// Shutdown stops the scheduling loop, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)
	s.logger.Info("scheduler stopped")
}
