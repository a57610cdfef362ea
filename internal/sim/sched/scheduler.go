// Package sched provides a tick-driven scheduler for delayed, cancellable
// callbacks. It is owned by the hub loop: ScheduleAt, Cancel and Advance must
// all be called from the same goroutine.
package sched

import "sort"

// Handle identifies one scheduled task. The zero Handle is never issued and
// is safe to Cancel.
type Handle uint64

type task struct {
	dueTick uint64
	fn      func()
}

type Scheduler struct {
	nextID uint64
	tasks  map[Handle]*task
}

func New() *Scheduler {
	return &Scheduler{tasks: make(map[Handle]*task)}
}

// ScheduleAt registers fn to run when Advance is called with a tick >= dueTick.
func (s *Scheduler) ScheduleAt(dueTick uint64, fn func()) Handle {
	s.nextID++
	h := Handle(s.nextID)
	s.tasks[h] = &task{dueTick: dueTick, fn: fn}
	return h
}

// Cancel removes a task before it runs. Canceling an already-fired or
// already-canceled handle is a no-op.
func (s *Scheduler) Cancel(h Handle) {
	delete(s.tasks, h)
}

// Pending reports the number of tasks that have not fired or been canceled.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// Advance runs every task due at or before nowTick, in schedule order so a
// given tick is deterministic. Tasks are removed before their callback runs;
// a callback may schedule or cancel other tasks, but anything it schedules
// for nowTick or earlier waits for the next Advance.
func (s *Scheduler) Advance(nowTick uint64) {
	if len(s.tasks) == 0 {
		return
	}
	due := make([]Handle, 0, len(s.tasks))
	for h, t := range s.tasks {
		if t.dueTick <= nowTick {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	for _, h := range due {
		t, ok := s.tasks[h]
		if !ok {
			// Canceled by an earlier callback in this batch.
			continue
		}
		delete(s.tasks, h)
		t.fn()
	}
}

// Clear drops every outstanding task without running it.
func (s *Scheduler) Clear() {
	s.tasks = make(map[Handle]*task)
}
