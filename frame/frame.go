// Package frame describes how a suspended Cortex-M task context is laid out
// on its process stack.
package frame

import (
	"encoding/binary"
	"errors"
)

const (
	HardwareWords = 8
	SoftwareWords = 8
	ContextWords  = HardwareWords + SoftwareWords
	ContextBytes  = ContextWords * 4

	// MaxArgs is the number of argument registers a task entry receives.
	MaxArgs = 4
)

const (
	// InitialPSR only has the Thumb bit set. Cortex-M faults on exception
	// return into a context without it.
	InitialPSR uint32 = 0x01000000

	ExcReturnHandler   uint32 = 0xFFFFFFF1
	ExcReturnThreadMSP uint32 = 0xFFFFFFF9
	ExcReturnThreadPSP uint32 = 0xFFFFFFFD
)

// Slot indices within the hardware group.
const (
	SlotR0 = iota
	SlotR1
	SlotR2
	SlotR3
	SlotR12
	SlotLR
	SlotPC
	SlotPSR
)

var (
	ErrStackTooSmall = errors.New("stack buffer cannot hold a context")
	ErrMisaligned    = errors.New("address is not word aligned")
	ErrOutOfBounds   = errors.New("stack pointer outside of stack buffer")
	ErrShortBuffer   = errors.New("buffer too short for context")
)

// Word is satisfied by every scalar type that fits in one 32-bit register.
type Word interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32
}

// Hardware is the group the processor stacks on exception entry.
type Hardware struct {
	R0  uint32
	R1  uint32
	R2  uint32
	R3  uint32
	R12 uint32
	LR  uint32
	PC  uint32
	PSR uint32
}

// Software is the group the context switch routine stacks itself.
type Software struct {
	R4  uint32
	R5  uint32
	R6  uint32
	R7  uint32
	R8  uint32
	R9  uint32
	R10 uint32
	R11 uint32
}

// Context is a complete suspended context in memory order. The saved stack
// pointer addresses SW.R4.
type Context struct {
	SW Software
	HW Hardware
}

func (h Hardware) Words() [HardwareWords]uint32 {
	return [HardwareWords]uint32{h.R0, h.R1, h.R2, h.R3, h.R12, h.LR, h.PC, h.PSR}
}

func (h *Hardware) SetWords(w [HardwareWords]uint32) {
	h.R0, h.R1, h.R2, h.R3 = w[SlotR0], w[SlotR1], w[SlotR2], w[SlotR3]
	h.R12, h.LR, h.PC, h.PSR = w[SlotR12], w[SlotLR], w[SlotPC], w[SlotPSR]
}

func (s Software) Words() [SoftwareWords]uint32 {
	return [SoftwareWords]uint32{s.R4, s.R5, s.R6, s.R7, s.R8, s.R9, s.R10, s.R11}
}

func (s *Software) SetWords(w [SoftwareWords]uint32) {
	s.R4, s.R5, s.R6, s.R7 = w[0], w[1], w[2], w[3]
	s.R8, s.R9, s.R10, s.R11 = w[4], w[5], w[6], w[7]
}

func (c Context) Words() (w [ContextWords]uint32) {
	sw, hw := c.SW.Words(), c.HW.Words()
	copy(w[:SoftwareWords], sw[:])
	copy(w[SoftwareWords:], hw[:])
	return
}

func (c *Context) SetWords(w [ContextWords]uint32) {
	var sw [SoftwareWords]uint32
	var hw [HardwareWords]uint32
	copy(sw[:], w[:SoftwareWords])
	copy(hw[:], w[SoftwareWords:])
	c.SW.SetWords(sw)
	c.HW.SetWords(hw)
}

// MarshalBinary returns the little-endian memory image of the context.
func (c Context) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, ContextBytes)
	for _, w := range c.Words() {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	return buf, nil
}

func (c *Context) UnmarshalBinary(data []byte) error {
	if len(data) < ContextBytes {
		return ErrShortBuffer
	}
	var w [ContextWords]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	c.SetWords(w)
	return nil
}
