// Package sim is a simulated single core Cortex-M processor. It implements
// port.Port on the host so the scheduler runs unmodified, including real
// exception frames stacked into task stack memory and a context switch
// routine that moves R4-R11 the same way the silicon port does.
//
// Task code runs on goroutines, and exactly one of them holds the core at
// any time. A thread only gives up the core at an instruction boundary,
// which is any call into the machine: Exec, WaitForInterrupt, Trap,
// RestoreInterrupts, EnterTaskMode and PendSwitch.
package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/internal/ringbuffer"
	"omibyte.io/tasker/port"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

var (
	ErrBusFault          = errors.New("bus fault")
	ErrFault             = errors.New("hard fault")
	ErrPrivilege         = errors.New("privileged operation in unprivileged mode")
	ErrDeadlock          = errors.New("wait for interrupt with no interrupt source")
	ErrTaskReturned      = errors.New("task function returned")
	ErrSwitchOnMainStack = errors.New("context switch from the main stack")
	ErrPanic             = errors.New("panic in simulated code")
	ErrBooted            = errors.New("machine already booted")
)

// Exception numbers.
const (
	excSVCall  = 11
	excPendSV  = 14
	excSysTick = 15
	numVectors = 16
)

// CONTROL register bits.
const (
	controlNPRIV uint32 = 1 << 0
	controlSPSEL uint32 = 1 << 1
)

// scrambled is loaded into the caller-saved registers on exception entry.
const scrambled uint32 = 0xDEADBEEF

var _ port.Port = (*Machine)(nil)

type Options struct {
	// CyclesPerTick is the SysTick reload value.
	CyclesPerTick uint64

	// MaxTicks halts the machine after this many timer periods. Zero runs
	// until the simulated program halts by itself.
	MaxTicks uint64

	// MainStackWords sizes the stack Boot runs on.
	MainStackWords int

	// TraceDepth is the number of most recent events kept.
	TraceDepth int

	SysTickPriority uint8
	PendSVPriority  uint8

	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		CyclesPerTick:   1000,
		MaxTicks:        100,
		MainStackWords:  256,
		TraceDepth:      256,
		SysTickPriority: 4,
		PendSVPriority:  0xFF,
	}
}

type thread struct {
	pc     uintptr
	resume chan struct{}
}

type Machine struct {
	opts Options
	log  *slog.Logger

	mem     memory
	entries []task.Entry

	// Core registers. R13-R15 are represented by msp/psp, lr and the
	// running thread's resume address.
	r       [13]uint32
	lr      uint32
	msp     uintptr
	psp     uintptr
	control uint32
	primask bool
	handler bool

	pending  uint32
	vector   [numVectors]func()
	priority [numVectors]uint8

	tickEnabled bool
	cycles      uint64
	nextTick    uint64
	ticks       uint64

	tickHandler func()
	syscall     svc.Handler
	slots       port.Slots

	threads map[uintptr]*thread
	main    *thread
	cur     *thread
	nextPC  uintptr

	stats Stats
	trace *ringbuffer.RingBuffer[Event]

	stop   chan struct{}
	booted bool
	halted bool
	err    error
}

func New(opts Options) *Machine {
	def := DefaultOptions()
	if opts.CyclesPerTick == 0 {
		opts.CyclesPerTick = def.CyclesPerTick
	}
	if opts.MainStackWords < frame.ContextWords {
		opts.MainStackWords = def.MainStackWords
	}
	if opts.TraceDepth <= 0 {
		opts.TraceDepth = def.TraceDepth
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Machine{
		opts:    opts,
		log:     log,
		mem:     newMemory(),
		threads: map[uintptr]*thread{},
		nextPC:  resumeBase,
		trace:   ringbuffer.New[Event](opts.TraceDepth),
		stop:    make(chan struct{}),
	}
	m.stats.PerTask = map[*task.Task]uint64{}
	m.stats.Loads = map[*task.Task]uint64{}

	mainStack := make([]uint32, opts.MainStackWords)
	m.msp = m.mem.mapWords(mainStack) + uintptr(len(mainStack))*4

	m.priority[excSVCall] = 0
	m.priority[excPendSV] = opts.PendSVPriority
	m.priority[excSysTick] = opts.SysTickPriority
	m.vector[excSVCall] = m.serviceCall
	m.vector[excSysTick] = m.sysTick

	return m
}

// Boot runs fn in privileged thread mode on the main stack and returns once
// the machine halts. Reaching MaxTicks and fn returning both halt without
// an error.
func (m *Machine) Boot(fn func()) (Stats, error) {
	if m.booted {
		return Stats{}, ErrBooted
	}
	m.booted = true

	m.main = m.newThread()
	m.cur = m.main
	m.log.Debug("boot", "msp", fmt.Sprintf("%#x", m.msp), "cycles_per_tick", m.opts.CyclesPerTick)

	go m.run(m.main, fn)
	<-m.stop

	m.log.Debug("halt", "tick", m.ticks, "cycles", m.cycles, "err", m.err)
	return m.Stats(), m.err
}

func (m *Machine) run(th *thread, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.halt(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	fn()

	if th == m.main {
		m.halt(nil)
	} else {
		m.halt(ErrTaskReturned)
	}
}

func (m *Machine) newThread() *thread {
	th := &thread{
		pc:     m.nextPC,
		resume: make(chan struct{}, 1),
	}
	m.nextPC += 4
	m.threads[th.pc] = th
	return th
}

func (m *Machine) halt(err error) {
	if m.halted {
		return
	}
	m.halted = true
	m.err = err
	m.record(Event{Kind: EventHalt})
	close(m.stop)
}

// fail halts the machine and ends the calling goroutine.
func (m *Machine) fail(err error) {
	m.halt(err)
	runtime.Goexit()
}

// park blocks the calling goroutine until its thread is resumed.
func (m *Machine) park(th *thread) {
	select {
	case <-th.resume:
	case <-m.stop:
		runtime.Goexit()
	}
}

// resume hands the core to whatever code lives at pc.
func (m *Machine) resume(pc uintptr, args [frame.MaxArgs]uint32) {
	prev := m.cur
	if th, ok := m.threads[pc]; ok {
		if th == prev {
			return
		}
		m.cur = th
		th.resume <- struct{}{}
	} else if e, ok := m.entryAt(pc); ok {
		th := m.newThread()
		m.cur = th
		go m.run(th, func() { e.Call(args) })
	} else {
		m.fail(fmt.Errorf("%w: exception return to %#x", ErrBusFault, pc))
	}
	m.park(prev)
}

func (m *Machine) entryAt(pc uintptr) (task.Entry, bool) {
	if pc < entryBase || (pc-entryBase)%4 != 0 {
		return task.Entry{}, false
	}
	i := int((pc - entryBase) / 4)
	if i >= len(m.entries) {
		return task.Entry{}, false
	}
	return m.entries[i], true
}

func (m *Machine) privileged() bool {
	return m.handler || m.control&controlNPRIV == 0
}

func (m *Machine) mustThread(op string) {
	if m.handler {
		m.fail(fmt.Errorf("%w: %s in handler mode", ErrFault, op))
	}
}

// owner is the task the scheduler considers loaded.
func (m *Machine) owner() *task.Task {
	if m.slots.Current == nil {
		return nil
	}
	return *m.slots.Current
}

// Exec spends cycles of thread mode execution. Interrupts that become due
// in between are taken at the point they fire.
func (m *Machine) Exec(cycles uint64) {
	m.mustThread("exec")
	for {
		m.take()
		if cycles == 0 {
			return
		}

		step := cycles
		if m.tickEnabled && m.nextTick-m.cycles < step {
			step = m.nextTick - m.cycles
		}
		m.cycles += step
		cycles -= step

		if m.tickEnabled && m.cycles == m.nextTick {
			m.fireTick()
		}
	}
}

func (m *Machine) fireTick() {
	m.ticks++
	m.nextTick += m.opts.CyclesPerTick

	owner := m.owner()
	if owner == nil {
		m.stats.Unowned++
	} else {
		m.stats.PerTask[owner]++
	}
	m.stats.Timeline = append(m.stats.Timeline, owner)
	m.record(Event{Kind: EventTick, To: owner})

	m.pending |= 1 << excSysTick
}

// WaitForInterrupt idles until an interrupt is pending. It returns without
// taking the interrupt while PRIMASK is set.
func (m *Machine) WaitForInterrupt() {
	m.mustThread("wfi")
	if m.pending == 0 {
		if !m.tickEnabled {
			m.fail(ErrDeadlock)
		}
		m.cycles = m.nextTick
		m.fireTick()
	}
	m.take()
}

// Trap issues a supervisor call and returns the caller's R0 once the call
// has been serviced.
func (m *Machine) Trap(n svc.Number, args [svc.MaxArgs]uint32) uint32 {
	if m.handler || m.primask {
		m.fail(fmt.Errorf("%w: svc %s with interrupts masked or in handler mode", ErrFault, n))
	}

	m.r[0] = uint32(n)
	m.r[1], m.r[2], m.r[3] = args[0], args[1], args[2]
	m.stats.Syscalls++
	m.record(Event{Kind: EventSyscall, Call: n, To: m.owner()})

	before := m.owner()
	m.enter()
	m.vector[excSVCall]()
	m.chain()
	m.exit(before)

	return m.r[0]
}

func (m *Machine) Reg(n int) uint32 {
	return m.r[n]
}

func (m *Machine) SetReg(n int, v uint32) {
	m.r[n] = v
}

// Cycles returns the number of elapsed core cycles.
func (m *Machine) Cycles() uint64 {
	return m.cycles
}

// TickCount returns the number of elapsed timer periods.
func (m *Machine) TickCount() uint64 {
	return m.ticks
}
