// Package scheduler runs named maintenance tasks on fixed intervals and
// exposes them for direct invocation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// TaskFunc is one unit of maintenance work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	lastRun  time.Time
}

// Scheduler owns a registry of named tasks. Run executes due tasks in a
// poll loop; RunTask triggers one by name regardless of its interval.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	poll   time.Duration
	logger *slog.Logger
}

// New creates a Scheduler. If pollInterval is <= 0, it defaults to 1m.
func New(pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Scheduler{
		tasks:  make(map[string]*task),
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Register adds a named task. Registering an existing name replaces it.
// A task with interval <= 0 never runs from the loop and is only reachable
// through RunTask.
func (s *Scheduler) Register(name string, interval time.Duration, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = &task{name: name, interval: interval, fn: fn}
}

// TaskNames returns the registered task names, sorted.
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run polls for due tasks until ctx is cancelled. A failing task is logged
// and retried on its next interval; it never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		for _, name := range s.dueTasks() {
			if err := s.RunTask(ctx, name); err != nil {
				s.logger.Error("scheduled task failed", "task", name, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.poll):
		}
	}
}

// RunTask executes one task by name and records its run time. Unknown
// names are an error.
func (s *Scheduler) RunTask(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}

	start := time.Now()
	err := t.fn(ctx)

	s.mu.Lock()
	t.lastRun = start
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("running task %q: %w", name, err)
	}
	s.logger.Debug("task complete", "task", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// dueTasks returns names of tasks whose interval has elapsed. Tasks that
// never ran are due immediately.
func (s *Scheduler) dueTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for name, t := range s.tasks {
		if t.interval <= 0 {
			continue
		}
		if time.Since(t.lastRun) >= t.interval {
			due = append(due, name)
		}
	}
	sort.Strings(due)
	return due
}
