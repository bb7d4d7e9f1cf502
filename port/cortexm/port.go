//go:build tinygo && cortexm

// Package cortexm runs the scheduler on ARMv7-M silicon under TinyGo.
//
// The program must be built with -scheduler=none: the tasks run on their own
// stacks and TinyGo's goroutine scheduler knows nothing about them. The
// context switch, the supervisor call entry and the privilege drop live in
// switch_arm.S.
package cortexm

import (
	"device/arm"
	"unsafe"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/port"
	"omibyte.io/tasker/scheduler"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/task"
)

// Config is the clock and priority setup of one board.
type Config struct {
	ClockHz uint32
	TickHz  uint32

	SysTickPriority uint8
	PendSVPriority  uint8
	SVCPriority     uint8
}

var DefaultConfig = Config{
	ClockHz:         16000000,
	TickHz:          1000,
	SysTickPriority: 0x40,
	PendSVPriority:  0xFF,
}

type Port struct {
	config Config
}

var _ port.Port = (*Port)(nil)

// The slot pointers and the start trampoline table are defined in
// switch_arm.S.

//go:extern rtosCurrent
var rtosCurrent **task.Task

//go:extern rtosNext
var rtosNext **task.Task

//go:extern rtosTaskStarts
var rtosTaskStarts [scheduler.MaxTasks]uintptr

var (
	tickHandler    func()
	syscallHandler svc.Handler

	entries    [scheduler.MaxTasks]task.Entry
	numEntries int
)

//export rtosEnterTaskMode
func rtosEnterTaskMode(stackTop uintptr)

//export rtosTrap
func rtosTrap(n, a, b, c uint32) uint32

func New(config Config) *Port {
	return &Port{config: config}
}

func (p *Port) SetTickHandler(fn func()) {
	tickHandler = fn
}

func (p *Port) EnableTick() {
	reload := p.config.ClockHz / p.config.TickHz
	if reload == 0 || reload-1 > SYST_RVR_RELOAD {
		panic("tick rate out of range for SysTick")
	}

	SYST.CSR.ClearBits(SYST_CSR_ENABLE)
	setPriority(&SCB.SHPR3, shprSysTick, p.config.SysTickPriority)
	setPriority(&SCB.SHPR2, shprSVCall, p.config.SVCPriority)

	SYST.RVR.Set(reload - 1)
	// Any write clears the current value.
	SYST.CVR.Set(0)
	SYST.CSR.Set(SYST_CSR_CLKSOURCE | SYST_CSR_TICKINT | SYST_CSR_ENABLE)
	for !SYST.CSR.HasBits(SYST_CSR_ENABLE) {
	}
}

func (p *Port) DisableTick() {
	SYST.CSR.ClearBits(SYST_CSR_TICKINT | SYST_CSR_ENABLE)
	SCB.ICSR.Set(SCB_ICSR_PENDSTCLR)
}

func (p *Port) InstallSwitch(slots port.Slots) {
	rtosCurrent, rtosNext = slots.Current, slots.Next

	// PendSV must not preempt any other handler.
	setPriority(&SCB.SHPR3, shprPendSV, p.config.PendSVPriority)
}

func (p *Port) PendSwitch() {
	SCB.ICSR.Set(SCB_ICSR_PENDSVSET)
}

func (p *Port) SetSyscallHandler(h svc.Handler) {
	syscallHandler = h
}

func (p *Port) DisableInterrupts() uint32 {
	return uint32(arm.DisableInterrupts())
}

func (p *Port) RestoreInterrupts(state uint32) {
	arm.EnableInterrupts(uintptr(state))
}

func (p *Port) WaitForInterrupt() {
	arm.Asm("wfi")
}

// EnterTaskMode does not return. The caller's frames live on the main stack
// it leaves behind, so the assembly traps Dispatch from the new stack itself
// and the first switch discards this context.
func (p *Port) EnterTaskMode(stackTop uintptr) {
	rtosEnterTaskMode(stackTop)
}

func (p *Port) Trap(n svc.Number, args [svc.MaxArgs]uint32) uint32 {
	return rtosTrap(uint32(n), args[0], args[1], args[2])
}

func (p *Port) StackBase(stack []uint32) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(stack)))
}

// EntryAddress binds e to the next free start trampoline. Each trampoline
// passes its slot to rtosRunTask along with the argument registers.
func (p *Port) EntryAddress(e task.Entry) uintptr {
	if numEntries == len(entries) {
		panic("out of task start trampolines")
	}
	entries[numEntries] = e
	addr := rtosTaskStarts[numEntries]
	numEntries++
	return addr
}

//export rtosRunTask
func rtosRunTask(r0, r1, r2, r3, slot uint32) {
	entries[slot].Call([frame.MaxArgs]uint32{r0, r1, r2, r3})
	panic("task returned")
}

//export SysTick_Handler
//
//tasker:isr
func sysTickHandler() {
	if tickHandler != nil {
		tickHandler()
	}
}

// rtosServe is called by SVC_Handler with the stacked frame of the caller.
//
//export rtosServe
//tasker:isr
func rtosServe(f *frame.Hardware) {
	svc.Serve(syscallHandler, f)
}
