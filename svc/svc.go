// Package svc implements supervisor calls: unprivileged task code traps into
// the kernel with a call number in R0 and up to three arguments in R1-R3, and
// finds the result in R0 once the trap returns.
package svc

import "omibyte.io/tasker/frame"

type Number uint8

const (
	// Dispatch applies the most recent scheduling decision.
	Dispatch Number = iota
	// Yield reruns task selection and switches if the decision changed.
	Yield
	// Ticks returns the low 32 bits of the elapsed tick count.
	Ticks
	// Self returns the scheduler index of the calling task.
	Self
)

// Invalid is returned for unknown call numbers.
const Invalid = ^uint32(0)

const MaxArgs = 3

func (n Number) String() string {
	switch n {
	case Dispatch:
		return "dispatch"
	case Yield:
		return "yield"
	case Ticks:
		return "ticks"
	case Self:
		return "self"
	default:
		return "unknown"
	}
}

// Handler services a supervisor call in exception context.
type Handler func(n Number, args [MaxArgs]uint32) uint32

// Trapper issues the trap instruction.
type Trapper interface {
	Trap(n Number, args [MaxArgs]uint32) uint32
}

func Call0(t Trapper, n Number) uint32 {
	return t.Trap(n, [MaxArgs]uint32{})
}

func Call1[A frame.Word](t Trapper, n Number, a A) uint32 {
	return t.Trap(n, [MaxArgs]uint32{uint32(a)})
}

func Call2[A, B frame.Word](t Trapper, n Number, a A, b B) uint32 {
	return t.Trap(n, [MaxArgs]uint32{uint32(a), uint32(b)})
}

func Call3[A, B, C frame.Word](t Trapper, n Number, a A, b B, c C) uint32 {
	return t.Trap(n, [MaxArgs]uint32{uint32(a), uint32(b), uint32(c)})
}

func Bool(r uint32) bool {
	return r != 0
}

// Serve runs h against the caller's stacked registers and stores the result
// where the caller's R0 will be restored from.
//
//tasker:isr
func Serve(h Handler, f *frame.Hardware) {
	result := Invalid
	if h != nil {
		result = h(Number(f.R0), [MaxArgs]uint32{f.R1, f.R2, f.R3})
	}
	f.R0 = result
}
