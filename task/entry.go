package task

import "omibyte.io/tasker/frame"

// Entry describes the function a task starts in and the register arguments
// it receives. Entries are only built through Func0 to Func4, so an entry
// with more than four arguments, or an argument wider than a machine word,
// does not compile.
type Entry struct {
	fn   any
	call func(regs [frame.MaxArgs]uint32)
	args [frame.MaxArgs]uint32
	argc int
}

func (e Entry) IsZero() bool {
	return e.fn == nil
}

// Func returns the typed task function.
func (e Entry) Func() any {
	return e.fn
}

// Args returns the initial argument register values.
func (e Entry) Args() [frame.MaxArgs]uint32 {
	return e.args
}

func (e Entry) NumArgs() int {
	return e.argc
}

// Call invokes the task function with its arguments taken from regs, the way
// it would observe R0-R3 on entry.
func (e Entry) Call(regs [frame.MaxArgs]uint32) {
	e.call(regs)
}

func Func0(fn func()) Entry {
	if fn == nil {
		return Entry{}
	}
	return Entry{
		fn:   fn,
		call: func([frame.MaxArgs]uint32) { fn() },
	}
}

func Func1[A frame.Word](fn func(A), a A) Entry {
	if fn == nil {
		return Entry{}
	}
	return Entry{
		fn:   fn,
		call: func(r [frame.MaxArgs]uint32) { fn(A(r[0])) },
		args: [frame.MaxArgs]uint32{uint32(a)},
		argc: 1,
	}
}

func Func2[A, B frame.Word](fn func(A, B), a A, b B) Entry {
	if fn == nil {
		return Entry{}
	}
	return Entry{
		fn:   fn,
		call: func(r [frame.MaxArgs]uint32) { fn(A(r[0]), B(r[1])) },
		args: [frame.MaxArgs]uint32{uint32(a), uint32(b)},
		argc: 2,
	}
}

func Func3[A, B, C frame.Word](fn func(A, B, C), a A, b B, c C) Entry {
	if fn == nil {
		return Entry{}
	}
	return Entry{
		fn:   fn,
		call: func(r [frame.MaxArgs]uint32) { fn(A(r[0]), B(r[1]), C(r[2])) },
		args: [frame.MaxArgs]uint32{uint32(a), uint32(b), uint32(c)},
		argc: 3,
	}
}

func Func4[A, B, C, D frame.Word](fn func(A, B, C, D), a A, b B, c C, d D) Entry {
	if fn == nil {
		return Entry{}
	}
	return Entry{
		fn:   fn,
		call: func(r [frame.MaxArgs]uint32) { fn(A(r[0]), B(r[1]), C(r[2]), D(r[3])) },
		args: [frame.MaxArgs]uint32{uint32(a), uint32(b), uint32(c), uint32(d)},
		argc: 4,
	}
}
