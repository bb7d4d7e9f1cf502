package targets

import (
	"errors"
	"testing"

	"golang.org/x/exp/slices"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/scheduler"
)

func TestEmbeddedTargets(t *testing.T) {
	want := []string{"cortex-m3", "cortex-m33", "cortex-m4", "cortex-m4f", "cortex-m7"}
	if got := All().Names(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	for _, target := range All() {
		t.Run(target.Name, func(t *testing.T) {
			if err := target.Validate(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			l, err := target.ContextLayout()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l != frame.ARMv7M {
				t.Errorf("expected the ARMv7-M layout, got %+v", l)
			}
		})
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		name     string
		find     func(Targets) (TargetInfo, error)
		expected string
		err      error
	}{
		{"by name", func(t Targets) (TargetInfo, error) { return t.FindByName("cortex-m4f") }, "cortex-m4f", nil},
		{"by name upper case", func(t Targets) (TargetInfo, error) { return t.FindByName("Cortex-M7") }, "cortex-m7", nil},
		{"by cpu first match", func(t Targets) (TargetInfo, error) { return t.FindByCpu("cortex-m4") }, "cortex-m4", nil},
		{"unknown name", func(t Targets) (TargetInfo, error) { return t.FindByName("cortex-a53") }, "", ErrTargetNotFound},
		{"unknown cpu", func(t Targets) (TargetInfo, error) { return t.FindByCpu("riscv") }, "", ErrTargetNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target, err := tc.find(All())
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
			if target.Name != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, target.Name)
			}
		})
	}
}

func TestTargetInfo(t *testing.T) {
	target, err := All().FindByName("cortex-m4f")
	if err != nil {
		t.Fatal(err)
	}

	if n := target.CyclesPerTick(); n != 168000 {
		t.Errorf("expected 168000 cycles per tick, got %d", n)
	}
	if s := target.FormatFeatureString(); s != "+thumb-mode,+dsp,+vfp4d16sp" {
		t.Errorf("unexpected feature string %q", s)
	}
	if !target.HasFeature("DSP") || target.HasFeature("mve") {
		t.Error("unexpected feature lookup result")
	}
}

func TestValidate(t *testing.T) {
	valid := TargetInfo{
		Name:            "board",
		Architecture:    "armv7m",
		ClockHz:         16000000,
		TickHz:          1000,
		Layout:          1,
		MaxTasks:        4,
		SysTickPriority: 0x40,
		PendSVPriority:  0xFF,
	}

	tests := []struct {
		name   string
		modify func(*TargetInfo)
		valid  bool
	}{
		{"valid", func(*TargetInfo) {}, true},
		{"zero tick rate", func(t *TargetInfo) { t.TickHz = 0 }, false},
		{"reload too large", func(t *TargetInfo) { t.ClockHz, t.TickHz = 100000000, 1 }, false},
		{"most tasks", func(t *TargetInfo) { t.MaxTasks = scheduler.MaxUserTasks }, true},
		{"too many tasks", func(t *TargetInfo) { t.MaxTasks = scheduler.MaxTasks }, false},
		{"pendsv not lowest", func(t *TargetInfo) { t.PendSVPriority = 0x40 }, false},
		{"unknown layout", func(t *TargetInfo) { t.Layout = 9 }, false},
		{"foreign architecture", func(t *TargetInfo) { t.Architecture = "riscv32" }, false},
		{"compatible architecture", func(t *TargetInfo) { t.Architecture = "armv8m.main" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := valid
			tc.modify(&target)
			err := target.Validate()
			if tc.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrTargetInformationFailed) {
				t.Errorf("expected ErrTargetInformationFailed, got %v", err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
targets:
  - name: custom
    cpu: cortex-m3
    architecture: armv7m
    clockHz: 8000000
    tickHz: 100
    layout: 1
    maxTasks: 3
    sysTickPriority: 0x20
    pendSVPriority: 0xf0
`)
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 1 || parsed[0].CyclesPerTick() != 80000 || parsed[0].PendSVPriority != 0xF0 {
		t.Errorf("unexpected result %+v", parsed)
	}

	if _, err := Parse([]byte("targets: [")); !errors.Is(err, ErrTargetInformationFailed) {
		t.Errorf("expected ErrTargetInformationFailed, got %v", err)
	}
	if _, err := Parse([]byte("targets:\n  - name: broken\n")); !errors.Is(err, ErrTargetInformationFailed) {
		t.Errorf("expected ErrTargetInformationFailed for an invalid target, got %v", err)
	}
}
