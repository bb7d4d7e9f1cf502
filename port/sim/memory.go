package sim

import (
	"fmt"
	"unsafe"

	"omibyte.io/tasker/frame"
)

const (
	// sramBase is where the first stack region is mapped.
	sramBase uintptr = 0x2000_0000

	// guardBytes of unmapped address space follow every region.
	guardBytes uintptr = 0x100

	// entryBase is the start of the address range entry functions are
	// registered in. Entry addresses carry the Thumb bit.
	entryBase uintptr = 0x0800_0000

	// resumeBase is the start of the address range thread resume points
	// are allocated from.
	resumeBase uintptr = 0x0000_1000
)

type region struct {
	base  uintptr
	words []uint32
}

func (r region) contains(addr uintptr) bool {
	return addr >= r.base && addr < r.base+uintptr(len(r.words))*4
}

// memory maps host word slices into the simulated address space.
type memory struct {
	regions []region
	next    uintptr
}

func newMemory() memory {
	return memory{next: sramBase}
}

// mapWords returns the address of words[0], mapping the slice on first use.
func (m *memory) mapWords(words []uint32) uintptr {
	if len(words) == 0 {
		return m.next
	}

	for _, r := range m.regions {
		if len(r.words) == len(words) && unsafe.SliceData(r.words) == unsafe.SliceData(words) {
			return r.base
		}
	}

	base := m.next
	m.regions = append(m.regions, region{base: base, words: words})

	end := base + uintptr(len(words))*4 + guardBytes
	m.next = (end + frame.ARMv7M.StackAlign - 1) &^ (frame.ARMv7M.StackAlign - 1)
	return base
}

func (m *memory) word(addr uintptr) (*uint32, error) {
	if addr%4 != 0 {
		return nil, fmt.Errorf("%w: unaligned access at %#x", ErrBusFault, addr)
	}
	for _, r := range m.regions {
		if r.contains(addr) {
			return &r.words[(addr-r.base)/4], nil
		}
	}
	return nil, fmt.Errorf("%w: unmapped access at %#x", ErrBusFault, addr)
}

func (m *memory) load(addr uintptr) (uint32, error) {
	w, err := m.word(addr)
	if err != nil {
		return 0, err
	}
	return *w, nil
}

func (m *memory) store(addr uintptr, v uint32) error {
	w, err := m.word(addr)
	if err != nil {
		return err
	}
	*w = v
	return nil
}
