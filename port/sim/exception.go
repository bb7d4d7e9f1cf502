package sim

import (
	"fmt"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

// take enters the exception handler for every pending interrupt if thread
// mode can currently be interrupted.
func (m *Machine) take() {
	if m.handler || m.primask || m.pending == 0 {
		return
	}

	before := m.owner()
	m.enter()
	m.chain()
	m.exit(before)
}

// enter stacks the hardware group on the active thread stack.
func (m *Machine) enter() {
	sp, excReturn := &m.msp, frame.ExcReturnThreadMSP
	if m.control&controlSPSEL != 0 {
		sp, excReturn = &m.psp, frame.ExcReturnThreadPSP
	}

	hw := frame.Hardware{
		R0:  m.r[0],
		R1:  m.r[1],
		R2:  m.r[2],
		R3:  m.r[3],
		R12: m.r[12],
		LR:  m.lr,
		PC:  uint32(m.cur.pc),
		PSR: frame.InitialPSR,
	}

	addr := *sp - frame.HardwareWords*4
	m.storeHardware(addr, hw)
	*sp = addr

	m.r[0], m.r[1], m.r[2], m.r[3], m.r[12] = scrambled, scrambled, scrambled, scrambled, scrambled
	m.lr = excReturn
	m.handler = true
}

// chain runs pending handlers back to back, most urgent first.
func (m *Machine) chain() {
	for m.pending != 0 {
		n := m.nextPending()
		m.pending &^= 1 << n
		if h := m.vector[n]; h != nil {
			h()
		}
	}
}

func (m *Machine) nextPending() int {
	best := -1
	for n := 0; n < numVectors; n++ {
		if m.pending&(1<<n) == 0 {
			continue
		}
		if best < 0 || m.priority[n] < m.priority[best] {
			best = n
		}
	}
	return best
}

// exit performs the exception return encoded in LR.
func (m *Machine) exit(before *task.Task) {
	var sp *uintptr
	switch m.lr {
	case frame.ExcReturnThreadPSP:
		sp = &m.psp
		m.control |= controlSPSEL
	case frame.ExcReturnThreadMSP:
		sp = &m.msp
		m.control &^= controlSPSEL
	default:
		m.fail(fmt.Errorf("%w: invalid exception return %#x", ErrFault, m.lr))
	}
	m.handler = false

	hw := m.loadHardware(*sp)
	*sp += frame.HardwareWords * 4
	if hw.PSR&frame.InitialPSR == 0 {
		m.fail(fmt.Errorf("%w: exception return with the Thumb bit clear", ErrFault))
	}

	m.r[0], m.r[1], m.r[2], m.r[3], m.r[12] = hw.R0, hw.R1, hw.R2, hw.R3, hw.R12
	m.lr = hw.LR

	if after := m.owner(); after != before {
		m.stats.Switches++
		m.stats.Loads[after]++
		m.record(Event{Kind: EventSwitch, From: before, To: after})
		m.log.Debug("switch", "tick", m.ticks, "from", before.String(), "to", after.String())
	}

	if m.opts.MaxTicks > 0 && m.ticks >= m.opts.MaxTicks {
		m.fail(nil)
	}

	m.resume(uintptr(hw.PC), [frame.MaxArgs]uint32{hw.R0, hw.R1, hw.R2, hw.R3})
}

// stacked returns the address of the hardware group the active exception
// pushed.
//
//tasker:isr
func (m *Machine) stacked() uintptr {
	if m.lr == frame.ExcReturnThreadPSP {
		return m.psp
	}
	return m.msp
}

//tasker:isr
func (m *Machine) sysTick() {
	if m.tickHandler != nil {
		m.tickHandler()
	}
}

// serviceCall is the SVCall handler. It services the call against the
// caller's stacked registers in place.
//
//tasker:isr
func (m *Machine) serviceCall() {
	addr := m.stacked()
	hw := m.loadHardware(addr)
	svc.Serve(m.syscall, &hw)
	m.storeWord(addr+frame.SlotR0*4, hw.R0)
}

func (m *Machine) loadHardware(addr uintptr) frame.Hardware {
	var w [frame.HardwareWords]uint32
	for i := range w {
		w[i] = m.loadWord(addr + uintptr(i)*4)
	}
	var hw frame.Hardware
	hw.SetWords(w)
	return hw
}

func (m *Machine) storeHardware(addr uintptr, hw frame.Hardware) {
	for i, v := range hw.Words() {
		m.storeWord(addr+uintptr(i)*4, v)
	}
}

func (m *Machine) loadWord(addr uintptr) uint32 {
	v, err := m.mem.load(addr)
	if err != nil {
		m.fail(err)
	}
	return v
}

func (m *Machine) storeWord(addr uintptr, v uint32) {
	if err := m.mem.store(addr, v); err != nil {
		m.fail(err)
	}
}
