//go:build tinygo && cortexm

package cortexm

import (
	"runtime/volatile"
	"unsafe"
)

var (
	SYST = (*SysTick)(unsafe.Pointer(uintptr(0xE000E010)))
	SCB  = (*SystemControlBlock)(unsafe.Pointer(uintptr(0xE000ED00)))
)

type SysTick struct {
	CSR   volatile.Register32
	RVR   volatile.Register32
	CVR   volatile.Register32
	CALIB volatile.Register32
}

const (
	SYST_CSR_ENABLE    = 1 << 0
	SYST_CSR_TICKINT   = 1 << 1
	SYST_CSR_CLKSOURCE = 1 << 2
	SYST_CSR_COUNTFLAG = 1 << 16

	// SYST_RVR_RELOAD is the widest reload value the counter accepts.
	SYST_RVR_RELOAD = 0x00FFFFFF
)

type SystemControlBlock struct {
	CPUID volatile.Register32
	ICSR  volatile.Register32
	VTOR  volatile.Register32
	AIRCR volatile.Register32
	SCR   volatile.Register32
	CCR   volatile.Register32
	SHPR1 volatile.Register32
	SHPR2 volatile.Register32
	SHPR3 volatile.Register32
	SHCSR volatile.Register32
}

// ICSR is write-one-to-act. Writing zeros to the other bits has no effect.
const (
	SCB_ICSR_PENDSTCLR = 1 << 25
	SCB_ICSR_PENDSTSET = 1 << 26
	SCB_ICSR_PENDSVCLR = 1 << 27
	SCB_ICSR_PENDSVSET = 1 << 28
)

// Byte positions of the system handler priorities.
const (
	shprSVCall  = 24 // SHPR2
	shprPendSV  = 16 // SHPR3
	shprSysTick = 24 // SHPR3
)

func setPriority(reg *volatile.Register32, pos uint8, priority uint8) {
	reg.ReplaceBits(uint32(priority), 0xFF, pos)
}
