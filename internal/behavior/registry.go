// Package behavior holds the idle behaviors run while the bot sits in the
// world, and the Registry that owns their timers for one session.
package behavior

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type TaskFunc func(ctx context.Context) error

// Task is a snapshot of a scheduled callback. Interval is zero for one-shot
// tasks.
type Task struct {
	ID         int
	Name       string
	Interval   time.Duration
	NextFireAt time.Time

	cancel context.CancelFunc
}

// Cancel stops the task. A callback already running finishes.
func (t Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Registry owns every timer of a session. CancelAll stops them all at once.
type Registry struct {
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	nextID int
	tasks  map[int]*Task
}

func NewRegistry(ctx context.Context, logger *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[int]*Task),
	}
}

// Every runs fn each interval until cancelled. The first run happens one
// interval after the call. Errors are logged and the schedule continues.
func (r *Registry) Every(name string, interval time.Duration, fn TaskFunc) (Task, bool) {
	return r.schedule(name, interval, interval, true, fn)
}

// After runs fn once after delay.
func (r *Registry) After(name string, delay time.Duration, fn TaskFunc) (Task, bool) {
	return r.schedule(name, 0, delay, false, fn)
}

// Tasks returns the pending tasks ordered by id.
func (r *Registry) Tasks() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]Task, 0, len(r.tasks))
	for id := 1; id <= r.nextID; id++ {
		if t, ok := r.tasks[id]; ok {
			tasks = append(tasks, *t)
		}
	}
	return tasks
}

// CancelAll stops every task and waits for running callbacks to return. No
// callback fires after it returns, and later Every/After calls are rejected.
// It must not be called from inside a task.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	clear(r.tasks)
	r.mu.Unlock()
}

func (r *Registry) schedule(name string, interval, first time.Duration, repeat bool, fn TaskFunc) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return Task{}, false
	}

	ctx, cancel := context.WithCancel(r.ctx)
	r.nextID++
	t := &Task{
		ID:         r.nextID,
		Name:       name,
		Interval:   interval,
		NextFireAt: time.Now().Add(first),
		cancel:     cancel,
	}
	r.tasks[t.ID] = t

	r.wg.Add(1)
	go r.run(ctx, t.ID, name, first, repeat, fn)

	return *t, true
}

func (r *Registry) run(ctx context.Context, id int, name string, delay time.Duration, repeat bool, fn TaskFunc) {
	defer r.wg.Done()
	defer r.remove(id)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// timer and ctx may be ready together
		if ctx.Err() != nil {
			return
		}

		if repeat {
			timer.Reset(delay)
			r.touch(id, delay)
		}

		if err := fn(ctx); err != nil {
			r.logger.Warn("Scheduled task failed", slog.String("task", name), slog.Any("error", err))
		}

		if !repeat {
			return
		}
	}
}

func (r *Registry) touch(id int, interval time.Duration) {
	r.mu.Lock()
	if t, ok := r.tasks[id]; ok {
		t.NextFireAt = time.Now().Add(interval)
	}
	r.mu.Unlock()
}

func (r *Registry) remove(id int) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}
