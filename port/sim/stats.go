package sim

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

type Stats struct {
	Ticks    uint64
	Switches uint64
	Syscalls uint64
	Cycles   uint64

	// PerTask charges every timer period to the task that was loaded when
	// the period ended.
	PerTask map[*task.Task]uint64

	// Loads counts how often each task was switched in.
	Loads map[*task.Task]uint64

	// Unowned counts periods that ended before the first context switch.
	Unowned uint64

	// Timeline holds the charged task of every period in order.
	Timeline []*task.Task
}

type EventKind uint8

const (
	EventTick EventKind = iota
	EventSwitch
	EventSyscall
	EventHalt
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventSwitch:
		return "switch"
	case EventSyscall:
		return "syscall"
	case EventHalt:
		return "halt"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind  EventKind
	Tick  uint64
	Cycle uint64
	From  *task.Task
	To    *task.Task
	Call  svc.Number
}

func (m *Machine) record(e Event) {
	e.Tick, e.Cycle = m.ticks, m.cycles
	m.trace.Put(e)
}

// Stats returns a copy of the accounting collected so far.
func (m *Machine) Stats() Stats {
	s := m.stats
	s.Ticks = m.ticks
	s.Cycles = m.cycles
	s.PerTask = maps.Clone(m.stats.PerTask)
	s.Loads = maps.Clone(m.stats.Loads)
	s.Timeline = slices.Clone(m.stats.Timeline)
	return s
}

// Trace returns the most recent events, oldest first.
func (m *Machine) Trace() []Event {
	return m.trace.Snapshot()
}
