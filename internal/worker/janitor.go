// Package worker provides the background maintenance janitor: a set of
// goroutines that run registered cleanup tasks on fixed intervals.
//
// Tasks are registered before calling Janitor.Start. Each task gets a
// dedicated ticker goroutine; a failing run is logged and retried on the
// next tick.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TaskFunc performs one cleanup run. It returns the number of rows affected
// so the janitor can log meaningful progress, and an error for a failed run.
type TaskFunc func(ctx context.Context) (int64, error)

// Task is a named cleanup operation with its run interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      TaskFunc
}

// Janitor runs registered maintenance tasks until its context is cancelled.
type Janitor struct {
	mu    sync.Mutex
	tasks []Task
}

// New creates an empty Janitor.
func New() *Janitor {
	return &Janitor{}
}

// Register adds a task. Must be called before Start.
func (j *Janitor) Register(t Task) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tasks = append(j.tasks, t)
}

// Start launches one goroutine per registered task, then blocks until ctx is
// cancelled. An in-flight run completes before its goroutine exits.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	tasks := make([]Task, len(j.tasks))
	copy(tasks, j.tasks)
	j.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			j.runTask(ctx, t)
		}(t)
	}
	wg.Wait()
	slog.Info("janitor stopped")
}

// runTask runs t on its interval until ctx is cancelled. Uses time.NewTicker
// (not time.After) to avoid timer leaks.
func (j *Janitor) runTask(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	slog.Info("janitor task started", "task", t.Name, "interval", t.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor task stopping", "task", t.Name)
			return
		case <-ticker.C:
			n, err := t.Run(ctx)
			if err != nil {
				slog.Error("janitor task failed", "task", t.Name, "error", err)
				continue
			}
			if n > 0 {
				slog.Info("janitor task completed", "task", t.Name, "rows", n)
			}
		}
	}
}
