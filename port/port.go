// Package port defines what the scheduler needs from the processor and the
// peripheral layer underneath it.
package port

import (
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

// Slots are the scheduler's current and next task references. The context
// switch routine reads both and writes Current.
type Slots struct {
	Current **task.Task
	Next    **task.Task
}

// Timer is the periodic tick source.
type Timer interface {
	// SetTickHandler installs fn as the periodic timer interrupt callback.
	SetTickHandler(fn func())
	EnableTick()
	DisableTick()
}

// Interrupts is the interrupt controller and core interrupt state.
type Interrupts interface {
	// InstallSwitch makes the port's context switch routine, operating on
	// slots, the handler of the lowest priority preemption interrupt.
	InstallSwitch(slots Slots)

	// PendSwitch requests the preemption interrupt. It must be called with
	// privilege, normally from another handler.
	PendSwitch()

	SetSyscallHandler(h svc.Handler)

	// DisableInterrupts masks all configurable interrupts and returns the
	// previous mask state.
	DisableInterrupts() uint32
	RestoreInterrupts(state uint32)

	// WaitForInterrupt idles the core until an interrupt is pending.
	WaitForInterrupt()
}

// Privilege is the one-time switch from the startup stack to process stacks.
type Privilege interface {
	// EnterTaskMode moves thread mode onto the process stack at stackTop,
	// drops privilege and unmasks interrupts.
	EnterTaskMode(stackTop uintptr)
}

type Port interface {
	Timer
	Interrupts
	Privilege
	svc.Trapper
	task.Binder
}
