package scheduler

import (
	"errors"
	"testing"

	"omibyte.io/tasker/port"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

// fakePort records switch requests and nothing else. Stacks are placed at
// 0x20000000 plus offset.
type fakePort struct {
	pends  int
	offset uintptr
}

func (p *fakePort) SetTickHandler(func())                       {}
func (p *fakePort) EnableTick()                                 {}
func (p *fakePort) DisableTick()                                {}
func (p *fakePort) InstallSwitch(port.Slots)                    {}
func (p *fakePort) PendSwitch()                                 { p.pends++ }
func (p *fakePort) SetSyscallHandler(svc.Handler)               {}
func (p *fakePort) DisableInterrupts() uint32                   { return 0 }
func (p *fakePort) RestoreInterrupts(uint32)                    {}
func (p *fakePort) WaitForInterrupt()                           {}
func (p *fakePort) EnterTaskMode(uintptr)                       {}
func (p *fakePort) Trap(svc.Number, [svc.MaxArgs]uint32) uint32 { return 0 }
func (p *fakePort) StackBase([]uint32) uintptr                  { return 0x2000_0000 + p.offset }
func (p *fakePort) EntryAddress(task.Entry) uintptr             { return 0x0800_0001 }

func newTestScheduler(t *testing.T, n int) (*Scheduler, *fakePort, []*task.Task) {
	t.Helper()
	p := &fakePort{}
	s := New(p)
	tasks := make([]*task.Task, n)
	for i := range tasks {
		tasks[i] = &task.Task{}
		if err := tasks[i].Init(p, task.Func0(func() {})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.AddTask(tasks[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return s, p, tasks
}

func TestSelection(t *testing.T) {
	tests := []struct {
		name     string
		sleep    []uint32
		expected int
	}{
		{"no tasks", nil, 0},
		{"first ready", []uint32{0, 0, 0}, 1},
		{"skip sleeping", []uint32{3, 0, 0}, 2},
		{"last ready", []uint32{1, 1, 0}, 3},
		{"all sleeping", []uint32{1, 2}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _, tasks := newTestScheduler(t, len(tc.sleep))
			for i, d := range tc.sleep {
				tasks[i].SetSleep(d)
			}
			if got := s.selectNext(); got != s.Task(tc.expected) {
				t.Errorf("expected task %d, got %v (index %d)", tc.expected, got, s.Index(got))
			}
		})
	}
}

func TestTick(t *testing.T) {
	s, p, tasks := newTestScheduler(t, 2)
	tasks[0].SetSleep(2)
	s.current = s.Idle()

	s.Tick()
	if tasks[0].SleepTicks() != 1 {
		t.Errorf("expected 1 remaining tick, got %d", tasks[0].SleepTicks())
	}
	if s.Next() != tasks[1] || p.pends != 1 {
		t.Errorf("expected a switch to the second task, got %v with %d requests", s.Next(), p.pends)
	}

	s.current = tasks[1]
	s.Tick()
	if s.Next() != tasks[0] || p.pends != 2 {
		t.Errorf("expected a switch to the first task, got %v with %d requests", s.Next(), p.pends)
	}
	if s.Ticks() != 2 {
		t.Errorf("expected 2 ticks, got %d", s.Ticks())
	}

	// A task at zero stays at zero.
	s.current = tasks[0]
	s.Tick()
	if tasks[0].SleepTicks() != 0 || tasks[1].SleepTicks() != 0 {
		t.Errorf("expected both counters at zero, got %d and %d", tasks[0].SleepTicks(), tasks[1].SleepTicks())
	}
	if p.pends != 2 {
		t.Errorf("expected no further switch requests, got %d", p.pends)
	}
}

func TestIdleOnly(t *testing.T) {
	s, p, _ := newTestScheduler(t, 0)
	s.current = s.Idle()

	for i := 0; i < 10; i++ {
		s.Tick()
		if s.Next() != s.Idle() {
			t.Fatalf("expected idle at tick %d, got %v", i+1, s.Next())
		}
	}
	if p.pends != 0 {
		t.Errorf("expected no switch requests, got %d", p.pends)
	}
}

func TestStarvation(t *testing.T) {
	s, p, tasks := newTestScheduler(t, 2)
	s.current = tasks[0]

	for i := 0; i < 50; i++ {
		s.Tick()
		if s.Next() == tasks[1] {
			t.Fatalf("expected the second task to starve, selected at tick %d", i+1)
		}
	}
	if p.pends != 0 {
		t.Errorf("expected no switch requests, got %d", p.pends)
	}
}

func TestAddTask(t *testing.T) {
	s, _, tasks := newTestScheduler(t, 1)

	if err := s.AddTask(nil); !errors.Is(err, ErrNilTask) {
		t.Errorf("expected ErrNilTask, got %v", err)
	}
	if err := s.AddTask(tasks[0]); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
	if err := s.AddTask(s.Idle()); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask for idle, got %v", err)
	}

	for s.Len() < MaxUserTasks+1 {
		if err := s.AddTask(&task.Task{}); err != nil {
			t.Fatalf("unexpected error at %d tasks: %v", s.Len(), err)
		}
	}
	if err := s.AddTask(&task.Task{}); !errors.Is(err, ErrTaskLimit) {
		t.Errorf("expected ErrTaskLimit, got %v", err)
	}

	s.started = true
	if err := s.AddTask(&task.Task{}); !errors.Is(err, ErrStarted) {
		t.Errorf("expected ErrStarted, got %v", err)
	}
}

func TestSyscall(t *testing.T) {
	s, p, tasks := newTestScheduler(t, 2)
	s.current = tasks[1]
	s.next = tasks[1]
	s.ticks.Store(7)

	tests := []struct {
		name     string
		n        svc.Number
		expected uint32
		pends    int
	}{
		{"ticks", svc.Ticks, 7, 0},
		{"self", svc.Self, 2, 0},
		{"dispatch without change", svc.Dispatch, 0, 0},
		{"yield to earlier task", svc.Yield, 0, 1},
		{"unknown", svc.Number(200), svc.Invalid, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.syscall(tc.n, [svc.MaxArgs]uint32{}); got != tc.expected {
				t.Errorf("expected %#x, got %#x", tc.expected, got)
			}
			if p.pends != tc.pends {
				t.Errorf("expected %d switch requests, got %d", tc.pends, p.pends)
			}
		})
	}

	if s.Next() != tasks[0] {
		t.Errorf("expected yield to select the first task, got %v", s.Next())
	}
}

func TestSleepOutsideTask(t *testing.T) {
	s, _, _ := newTestScheduler(t, 0)

	defer func() {
		if recover() == nil {
			t.Error("expected sleep without a current task to panic")
		}
	}()
	s.Sleep(1)
}

func TestSleepZero(t *testing.T) {
	s, _, tasks := newTestScheduler(t, 1)
	s.current = tasks[0]

	s.Sleep(0)
	if tasks[0].Sleeping() {
		t.Error("expected the task to be awake")
	}
}

func TestCheckStacks(t *testing.T) {
	s, _, tasks := newTestScheduler(t, 3)

	if err := s.CheckStacks(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tasks[1].Name = "victim"
	tasks[1].Stack()[0] = 0

	err := s.CheckStacks()
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("expected ErrStackOverflow, got %v", err)
	}
	var se *StackError
	if !errors.As(err, &se) || se.Index != 2 || se.Task != tasks[1] {
		t.Errorf("expected the second user task at index 2, got %v", err)
	}
	if err.Error() != "task stack overflow: victim" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestBootStackTop(t *testing.T) {
	tests := []struct {
		offset   uintptr
		expected uintptr
	}{
		{0, 0x2000_0100},
		{4, 0x2000_0100},
		{8, 0x2000_0108},
		{12, 0x2000_0108},
	}

	for _, tc := range tests {
		p := &fakePort{offset: tc.offset}
		s := New(p)
		if top := s.bootStackTop(); top != tc.expected {
			t.Errorf("offset %d: expected %#x, got %#x", tc.offset, tc.expected, top)
		}
	}
}
