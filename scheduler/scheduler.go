// Package scheduler runs a fixed set of tasks on one core. The first task
// in registration order that is not sleeping runs; when every task sleeps
// the idle task runs.
//
// Two tasks that are ready at the same time always resolve in favour of the
// one registered first, so a task that never sleeps starves every task
// registered after it. This is the policy, not a defect.
//
// Tasks must be registered before Start. Registration after Start is
// rejected, since the tick handler walks the task table without locking.
package scheduler

import (
	"errors"
	"sync/atomic"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/port"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

const (
	// MaxTasks is the capacity of the task table, idle task included.
	MaxTasks = 16

	// MaxUserTasks is how many tasks AddTask accepts.
	MaxUserTasks = MaxTasks - 1

	// BootStackWords sizes the region thread mode moves onto at start.
	BootStackWords = 64

	idleIndex = 0
)

var (
	ErrNilTask       = errors.New("nil task")
	ErrTaskLimit     = errors.New("task table is full")
	ErrDuplicateTask = errors.New("task is already registered")
	ErrStarted       = errors.New("scheduler is already started")
	ErrStackOverflow = errors.New("task stack overflow")
)

type Scheduler struct {
	current *task.Task
	next    *task.Task

	port  port.Port
	tasks [MaxTasks]*task.Task
	count int
	ticks atomic.Uint64

	idle    task.Task
	boot    [BootStackWords]uint32
	started bool
}

func New(p port.Port) *Scheduler {
	s := &Scheduler{port: p}
	s.idle.Name = "idle"
	s.tasks[idleIndex] = &s.idle
	s.count = 1
	return s
}

// AddTask appends t to the task table. t must already be initialized.
func (s *Scheduler) AddTask(t *task.Task) error {
	switch {
	case t == nil:
		return ErrNilTask
	case s.started:
		return ErrStarted
	case s.Index(t) >= 0:
		return ErrDuplicateTask
	case s.count == MaxTasks:
		return ErrTaskLimit
	}

	s.tasks[s.count] = t
	s.count++
	return nil
}

// Start hands the core to the scheduler. It does not return.
func (s *Scheduler) Start() {
	if s.started {
		panic(ErrStarted)
	}

	s.port.DisableInterrupts()

	if err := s.idle.Init(s.port, task.Func0(s.idleLoop)); err != nil {
		panic(err)
	}
	s.next = &s.idle

	s.port.SetTickHandler(s.Tick)
	s.port.InstallSwitch(port.Slots{Current: &s.current, Next: &s.next})
	s.port.SetSyscallHandler(s.syscall)
	s.started = true
	s.port.EnableTick()

	// The startup context is abandoned on the boot region after the first
	// switch since there is no current task to save it into. Ports that
	// cannot return onto the new stack trap Dispatch from EnterTaskMode
	// and never come back here.
	s.port.EnterTaskMode(s.bootStackTop())
	svc.Call0(s.port, svc.Dispatch)

	for {
		s.port.WaitForInterrupt()
	}
}

// bootStackTop is the highest 8-byte aligned address within the boot region.
func (s *Scheduler) bootStackTop() uintptr {
	top := s.port.StackBase(s.boot[:]) + BootStackWords*4
	return top &^ (frame.ARMv7M.StackAlign - 1)
}

func (s *Scheduler) idleLoop() {
	for {
		s.port.WaitForInterrupt()
	}
}

// Tick is the periodic timer handler.
//
//tasker:isr
func (s *Scheduler) Tick() {
	s.ticks.Add(1)
	for i := idleIndex + 1; i < s.count; i++ {
		t := s.tasks[i]
		if n := t.SleepTicks(); n > 0 {
			t.SetSleep(n - 1)
		}
	}
	s.schedule()
}

//tasker:isr
func (s *Scheduler) schedule() {
	s.next = s.selectNext()
	if s.next != s.current {
		s.port.PendSwitch()
	}
}

//tasker:isr
func (s *Scheduler) selectNext() *task.Task {
	for i := idleIndex + 1; i < s.count; i++ {
		if t := s.tasks[i]; !t.Sleeping() {
			return t
		}
	}
	return &s.idle
}

// Sleep blocks the calling task for the given number of ticks. It returns
// once the tick handler has counted the task's sleep counter down to zero
// and the task has been selected again, which takes ticks or ticks+1 ticks
// depending on where in the current tick period it is called.
func (s *Scheduler) Sleep(ticks uint32) {
	t := s.current
	if t == nil {
		panic("sleep called outside of a task")
	}

	t.SetSleep(ticks)
	for t.Sleeping() {
		s.port.WaitForInterrupt()
	}
}

//tasker:isr
func (s *Scheduler) syscall(n svc.Number, args [svc.MaxArgs]uint32) uint32 {
	switch n {
	case svc.Dispatch:
		if s.next != s.current {
			s.port.PendSwitch()
		}
		return 0
	case svc.Yield:
		s.schedule()
		return 0
	case svc.Ticks:
		return uint32(s.ticks.Load())
	case svc.Self:
		return uint32(s.Index(s.current))
	default:
		return svc.Invalid
	}
}

// Current returns the task whose context is loaded.
func (s *Scheduler) Current() *task.Task {
	return s.current
}

// Next returns the task selected by the most recent scheduling decision.
func (s *Scheduler) Next() *task.Task {
	return s.next
}

func (s *Scheduler) Idle() *task.Task {
	return &s.idle
}

func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *Scheduler) Started() bool {
	return s.started
}

// Len returns the number of registered tasks, idle included.
func (s *Scheduler) Len() int {
	return s.count
}

func (s *Scheduler) Task(i int) *task.Task {
	if i < 0 || i >= s.count {
		return nil
	}
	return s.tasks[i]
}

// Index returns the table index of t or -1.
func (s *Scheduler) Index(t *task.Task) int {
	for i := 0; i < s.count; i++ {
		if s.tasks[i] == t {
			return i
		}
	}
	return -1
}

// CheckStacks reports the first task whose stack canary was overwritten.
func (s *Scheduler) CheckStacks() error {
	for i := 0; i < s.count; i++ {
		if i == idleIndex && !s.started {
			continue
		}
		if t := s.tasks[i]; !t.StackIntact() {
			return &StackError{Index: i, Task: t}
		}
	}
	return nil
}

type StackError struct {
	Index int
	Task  *task.Task
}

func (e *StackError) Error() string {
	return ErrStackOverflow.Error() + ": " + e.Task.String()
}

func (e *StackError) Unwrap() error {
	return ErrStackOverflow
}
