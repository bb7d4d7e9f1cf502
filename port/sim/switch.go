package sim

import (
	"omibyte.io/tasker/frame"
)

// switchContext is the PendSV handler. It parks R4-R11 of the current task
// below its stacked hardware group, records the resulting stack pointer in
// the task, and loads the next task's R4-R11 and process stack pointer.
//
//tasker:isr
func (m *Machine) switchContext() {
	cur, nxt := *m.slots.Current, *m.slots.Next
	if cur == nxt {
		return
	}
	if m.lr != frame.ExcReturnThreadPSP {
		m.fail(ErrSwitchOnMainStack)
	}

	if cur != nil {
		sp := m.psp - frame.SoftwareWords*4
		for i := 0; i < frame.SoftwareWords; i++ {
			m.storeWord(sp+uintptr(i)*4, m.r[4+i])
		}
		cur.SetStackPointer(sp)
	}

	*m.slots.Current = nxt

	sp := nxt.StackPointer()
	for i := 0; i < frame.SoftwareWords; i++ {
		m.r[4+i] = m.loadWord(sp + uintptr(i)*4)
	}
	m.psp = sp + frame.SoftwareWords*4
}
