package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a named unit of periodic work.
type Task struct {
	Name string
	Run  func(context.Context) error
}

// SchedulerConfig configures the periodic runner.
type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Logger     *zap.Logger
}

// Scheduler runs a fixed set of tasks on a ticker. It is used for the
// lifecycle sweeps, which are idempotent and therefore safe to re-run.
type Scheduler struct {
	tasks      []Task
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler builds a scheduler over the provided tasks.
func NewScheduler(tasks []Task, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		tasks:      tasks,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		logger:     cfg.Logger,
	}
}

// Start launches the ticker loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "tasks", len(s.tasks), "interval", s.interval)
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

// RunAll executes every task once, returning the first error encountered.
// Used by Start (when RunOnStart is set), by the ticker loop, and by the
// manual sweep endpoint.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var firstErr error
	for _, task := range s.tasks {
		if err := s.runTask(ctx, task); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	if s.runOnStart {
		if err := s.RunAll(s.ctx); err != nil {
			s.logger.Sugar().Errorw("initial sweep pass failed", "error", err)
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunAll(s.ctx); err != nil {
				s.logger.Sugar().Errorw("sweep pass failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Sugar().Errorw("task failed", "task", task.Name, "error", err)
		return err
	}
	s.logger.Sugar().Debugw("task completed", "task", task.Name, "duration", time.Since(start))
	return nil
}
