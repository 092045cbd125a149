package session

import (
	"sync"
	"time"
)

// Task is a cancellable delayed action. Arming always replaces any
// previously armed run, so the delay never stacks.
type Task struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
}

func NewTask(delay time.Duration, fn func()) *Task {
	return &Task{delay: delay, fn: fn}
}

// Start arms the task, cancelling the previous arm if it exists.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		t.fn()
	})
}

// Stop disarms the task. Safe to call whether or not it is armed; a task
// whose timer already fired is not interrupted.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Task) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Running reports whether the task is armed and has not fired yet.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
