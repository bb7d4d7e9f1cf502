package frame

import (
	"errors"
	"fmt"
)

var ErrUnknownLayout = errors.New("unknown context layout")

// Layout identifies a context layout revision for one architecture family.
type Layout struct {
	Version    uint16
	Arch       string
	StackAlign uintptr
}

// ARMv7M is the basic (no FPU state) exception frame used by Cortex-M3/M4/M7.
var ARMv7M = Layout{
	Version:    1,
	Arch:       "armv7m",
	StackAlign: 8,
}

var layouts = []Layout{ARMv7M}

func Lookup(version uint16) (Layout, error) {
	for _, l := range layouts {
		if l.Version == version {
			return l, nil
		}
	}
	return Layout{}, fmt.Errorf("%w: version %d", ErrUnknownLayout, version)
}

// Initial builds the context that makes an exception return land in entry as
// if it had been called with args.
func (l Layout) Initial(entry uintptr, args [MaxArgs]uint32) Context {
	return Context{
		SW: Software{R4: 4, R5: 5, R6: 6, R7: 7, R8: 8, R9: 9, R10: 10, R11: 11},
		HW: Hardware{
			R0: args[0],
			R1: args[1],
			R2: args[2],
			R3: args[3],
			// NOTE: The stacked PC must not carry the Thumb bit of a function address.
			PC:  uint32(entry) &^ 1,
			LR:  ExcReturnThreadPSP,
			PSR: InitialPSR,
		},
	}
}

// Place writes c at the aligned top of stack, whose first word lives at base,
// and returns the saved stack pointer.
func (l Layout) Place(stack []uint32, base uintptr, c Context) (uintptr, error) {
	if base%4 != 0 {
		return 0, ErrMisaligned
	}

	top := base + uintptr(len(stack))*4
	top &^= l.StackAlign - 1
	if top < base+ContextBytes {
		return 0, ErrStackTooSmall
	}

	sp := top - ContextBytes
	i := int((sp - base) / 4)
	w := c.Words()
	copy(stack[i:i+ContextWords], w[:])
	return sp, nil
}

// Load reads the context saved at sp back out of stack.
func (l Layout) Load(stack []uint32, base, sp uintptr) (Context, error) {
	var c Context
	if sp%4 != 0 || base%4 != 0 {
		return c, ErrMisaligned
	}
	if sp < base || sp+ContextBytes > base+uintptr(len(stack))*4 {
		return c, ErrOutOfBounds
	}

	var w [ContextWords]uint32
	i := int((sp - base) / 4)
	copy(w[:], stack[i:i+ContextWords])
	c.SetWords(w)
	return c, nil
}
