// Package task holds the task control block and its private stack.
package task

import (
	"errors"
	"sync/atomic"

	"omibyte.io/tasker/frame"
)

// StackWords is the capacity of every task stack (1 KiB).
const StackWords = 256

// stackCanary is written to the lowest stack word. A task that runs past the
// end of its stack overwrites it first.
const stackCanary uint32 = 0x670C1A5E

var (
	ErrNoEntry = errors.New("task has no entry function")
)

type Stack [StackWords]uint32

// Binder resolves addresses on a concrete port.
type Binder interface {
	// StackBase returns the address of stack[0].
	StackBase(stack []uint32) uintptr

	// EntryAddress returns the code address control must reach to start e.
	EntryAddress(e Entry) uintptr
}

// Task is a task control block. Tasks are allocated statically and live for
// the rest of the program.
type Task struct {
	// NOTE: sp must remain the first field. The PendSV handler loads and
	// stores it at offset 0.
	sp    uintptr
	sleep atomic.Uint32

	// Priority is reserved and not consulted by the scheduler.
	Priority uint8
	Name     string

	entry Entry
	stack Stack
}

// Init seeds the stack with the initial context for e.
func (t *Task) Init(b Binder, e Entry) error {
	if e.IsZero() {
		return ErrNoEntry
	}

	t.entry = e
	t.sleep.Store(0)
	t.stack[0] = stackCanary

	base := b.StackBase(t.stack[:])
	ctx := frame.ARMv7M.Initial(b.EntryAddress(e), e.Args())
	sp, err := frame.ARMv7M.Place(t.stack[:], base, ctx)
	if err != nil {
		return err
	}
	t.sp = sp
	return nil
}

func (t *Task) Entry() Entry {
	return t.entry
}

// Stack returns the task's stack buffer.
func (t *Task) Stack() []uint32 {
	return t.stack[:]
}

// StackPointer is the address of the task's saved context. Only the
// scheduler and a port's context switch routine may use it.
func (t *Task) StackPointer() uintptr {
	return t.sp
}

func (t *Task) SetStackPointer(sp uintptr) {
	t.sp = sp
}

// SleepTicks returns the remaining ticks before the task is eligible to run.
func (t *Task) SleepTicks() uint32 {
	return t.sleep.Load()
}

func (t *Task) SetSleep(ticks uint32) {
	t.sleep.Store(ticks)
}

func (t *Task) Sleeping() bool {
	return t.sleep.Load() != 0
}

// StackIntact reports whether the canary at the bottom of the stack is
// still in place.
func (t *Task) StackIntact() bool {
	return t.stack[0] == stackCanary
}

func (t *Task) String() string {
	if t == nil {
		return "<nil>"
	}
	if len(t.Name) == 0 {
		return "task"
	}
	return t.Name
}
