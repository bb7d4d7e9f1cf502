package sim

import (
	"testing"

	"golang.org/x/exp/slices"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/port"
	"omibyte.io/tasker/task"
)

func newTask(t *testing.T, m *Machine, name string, e task.Entry) *task.Task {
	t.Helper()
	tsk := &task.Task{Name: name}
	if err := tsk.Init(m, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tsk
}

func TestSwitchSameTask(t *testing.T) {
	m := New(DefaultOptions())
	a := newTask(t, m, "a", task.Func0(func() {}))

	cur, next := a, a
	m.InstallSwitch(port.Slots{Current: &cur, Next: &next})

	// Selecting the running task is a no-op even outside of a process stack.
	m.lr = frame.ExcReturnThreadMSP
	m.psp = 0x2000_1234
	for i := range m.r {
		m.r[i] = 0x100 + uint32(i)
	}
	sp := a.StackPointer()
	stack := slices.Clone(a.Stack())

	m.switchContext()

	if cur != a {
		t.Errorf("expected current to remain %v, got %v", a, cur)
	}
	if m.psp != 0x2000_1234 {
		t.Errorf("expected psp 0x20001234, got %#x", m.psp)
	}
	if a.StackPointer() != sp {
		t.Errorf("expected sp %#x, got %#x", sp, a.StackPointer())
	}
	for i := range m.r {
		if m.r[i] != 0x100+uint32(i) {
			t.Errorf("expected R%d to be %#x, got %#x", i, 0x100+i, m.r[i])
		}
	}
	if !slices.Equal(stack, a.Stack()) {
		t.Error("expected stack memory to be untouched")
	}
}

func TestSwitchRoundTrip(t *testing.T) {
	m := New(DefaultOptions())
	a := newTask(t, m, "a", task.Func0(func() {}))
	b := newTask(t, m, "b", task.Func0(func() {}))
	aInit, bInit := a.StackPointer(), b.StackPointer()

	cur, next := a, b
	m.InstallSwitch(port.Slots{Current: &cur, Next: &next})

	// a is running with its hardware group stacked on its process stack.
	m.lr = frame.ExcReturnThreadPSP
	m.psp = aInit + frame.SoftwareWords*4
	for i := 4; i <= 11; i++ {
		m.r[i] = 0xA0 + uint32(i)
	}

	m.switchContext()

	if cur != b {
		t.Fatalf("expected current to be b, got %v", cur)
	}
	if a.StackPointer() != aInit {
		t.Errorf("expected a sp %#x, got %#x", aInit, a.StackPointer())
	}
	if m.psp != bInit+frame.SoftwareWords*4 {
		t.Errorf("expected psp %#x, got %#x", bInit+frame.SoftwareWords*4, m.psp)
	}
	for i := 4; i <= 11; i++ {
		// Initial contexts hold the register number in R4-R11.
		if m.r[i] != uint32(i) {
			t.Errorf("expected R%d to be %d, got %#x", i, i, m.r[i])
		}
	}

	ctx, err := frame.ARMv7M.Load(a.Stack(), m.StackBase(a.Stack()), a.StackPointer())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := frame.Software{R4: 0xA4, R5: 0xA5, R6: 0xA6, R7: 0xA7, R8: 0xA8, R9: 0xA9, R10: 0xAA, R11: 0xAB}
	if ctx.SW != want {
		t.Errorf("expected saved software group %+v, got %+v", want, ctx.SW)
	}
	if ctx.HW.LR != frame.ExcReturnThreadPSP || ctx.HW.PSR != frame.InitialPSR {
		t.Errorf("expected hardware group to be untouched, got %+v", ctx.HW)
	}

	// And back again.
	for i := 4; i <= 11; i++ {
		m.r[i] = 0xB0 + uint32(i)
	}
	next = a

	m.switchContext()

	if cur != a {
		t.Fatalf("expected current to be a, got %v", cur)
	}
	for i := 4; i <= 11; i++ {
		if m.r[i] != 0xA0+uint32(i) {
			t.Errorf("expected R%d to be %#x, got %#x", i, 0xA0+i, m.r[i])
		}
	}
	if m.psp != aInit+frame.SoftwareWords*4 {
		t.Errorf("expected psp %#x, got %#x", aInit+frame.SoftwareWords*4, m.psp)
	}
	if b.StackPointer() != bInit {
		t.Errorf("expected b sp %#x, got %#x", bInit, b.StackPointer())
	}
}

func TestSwitchFirstTask(t *testing.T) {
	m := New(DefaultOptions())
	a := newTask(t, m, "a", task.Func0(func() {}))
	sp := a.StackPointer()

	var cur *task.Task
	next := a
	m.InstallSwitch(port.Slots{Current: &cur, Next: &next})
	m.lr = frame.ExcReturnThreadPSP
	m.psp = 0x2000_0000

	m.switchContext()

	if cur != a {
		t.Fatalf("expected current to be a, got %v", cur)
	}
	if m.psp != sp+frame.SoftwareWords*4 {
		t.Errorf("expected psp %#x, got %#x", sp+frame.SoftwareWords*4, m.psp)
	}
	if a.StackPointer() != sp {
		t.Errorf("expected sp to be unchanged, got %#x", a.StackPointer())
	}
}
