package sim

import (
	"omibyte.io/tasker/port"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

func (m *Machine) SetTickHandler(fn func()) {
	m.tickHandler = fn
}

// EnableTick reloads the timer, so the first tick fires one full period
// after the call.
func (m *Machine) EnableTick() {
	m.tickEnabled = true
	m.nextTick = m.cycles + m.opts.CyclesPerTick
}

func (m *Machine) DisableTick() {
	m.tickEnabled = false
	m.pending &^= 1 << excSysTick
}

func (m *Machine) InstallSwitch(slots port.Slots) {
	m.slots = slots
	m.vector[excPendSV] = m.switchContext
}

func (m *Machine) PendSwitch() {
	if !m.privileged() {
		m.fail(ErrPrivilege)
	}
	m.pending |= 1 << excPendSV
	m.take()
}

func (m *Machine) SetSyscallHandler(h svc.Handler) {
	m.syscall = h
}

// DisableInterrupts sets PRIMASK. It has no effect from unprivileged
// thread mode.
func (m *Machine) DisableInterrupts() uint32 {
	state := m.primaskState()
	if m.privileged() {
		m.primask = true
	}
	return state
}

func (m *Machine) RestoreInterrupts(state uint32) {
	if m.privileged() {
		m.primask = state&1 != 0
	}
	m.take()
}

func (m *Machine) primaskState() uint32 {
	if m.primask {
		return 1
	}
	return 0
}

func (m *Machine) EnterTaskMode(stackTop uintptr) {
	if m.handler || !m.privileged() {
		m.fail(ErrPrivilege)
	}
	m.psp = stackTop
	m.control = controlSPSEL | controlNPRIV
	m.primask = false
	m.take()
}

// StackBase maps stack into the machine's address space.
func (m *Machine) StackBase(stack []uint32) uintptr {
	return m.mem.mapWords(stack)
}

// EntryAddress registers e and returns its code address. Returning from an
// exception to that address starts e on a new thread with R0-R3 as its
// arguments.
func (m *Machine) EntryAddress(e task.Entry) uintptr {
	m.entries = append(m.entries, e)
	return (entryBase + uintptr(len(m.entries)-1)*4) | 1
}
