package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/scheduler"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

// frameCompatible maps architectures onto the one whose basic exception
// frame they share.
var frameCompatible = map[string]string{
	"armv7em":     "armv7m",
	"armv8m.main": "armv7m",
}

var (
	ErrTargetInformationFailed = errors.New("failed to get target information")
	ErrTargetNotFound          = errors.New("target not found")
)

func All() Targets {
	return targets
}

type Targets []TargetInfo
type TargetInfo struct {
	Name            string   `yaml:"name"`
	Cpu             string   `yaml:"cpu"`
	Architecture    string   `yaml:"architecture"`
	Triple          string   `yaml:"triple"`
	ClockHz         uint64   `yaml:"clockHz"`
	TickHz          uint64   `yaml:"tickHz"`
	Layout          uint16   `yaml:"layout"`
	MaxTasks        int      `yaml:"maxTasks"`
	SysTickPriority uint8    `yaml:"sysTickPriority"`
	PendSVPriority  uint8    `yaml:"pendSVPriority"`
	SVCPriority     uint8    `yaml:"svcPriority"`
	Tags            []string `yaml:"tags"`
	Features        []string `yaml:"features"`
}

func (t TargetInfo) FormatFeatureString() string {
	features := make([]string, len(t.Features))
	for i, feature := range t.Features {
		features[i] = "+" + feature
	}
	return strings.Join(features, ",")
}

func (t TargetInfo) HasFeature(feature string) bool {
	return slices.Contains(t.Features, strings.ToLower(feature))
}

// CyclesPerTick is the SysTick reload value that produces TickHz.
func (t TargetInfo) CyclesPerTick() uint64 {
	if t.TickHz == 0 {
		return 0
	}
	return t.ClockHz / t.TickHz
}

func (t TargetInfo) ContextLayout() (frame.Layout, error) {
	l, err := frame.Lookup(t.Layout)
	if err != nil {
		return frame.Layout{}, errors.Join(ErrTargetInformationFailed, err)
	}
	arch := t.Architecture
	if base, ok := frameCompatible[arch]; ok {
		arch = base
	}
	if l.Arch != arch {
		return frame.Layout{}, fmt.Errorf("%w: layout %d is for %s, target is %s", ErrTargetInformationFailed, t.Layout, l.Arch, t.Architecture)
	}
	return l, nil
}

// Validate checks the target against what the scheduler and its ports
// require: the context switch interrupt must be the least urgent one.
func (t TargetInfo) Validate() error {
	var errs []error
	if len(t.Name) == 0 {
		errs = append(errs, errors.New("missing name"))
	}
	if t.ClockHz == 0 || t.TickHz == 0 {
		errs = append(errs, errors.New("clock and tick rates must be nonzero"))
	} else if t.CyclesPerTick() == 0 || t.CyclesPerTick() > 1<<24 {
		errs = append(errs, fmt.Errorf("tick reload %d does not fit the 24-bit timer", t.CyclesPerTick()))
	}
	// MaxTasks counts user tasks. The idle task takes one more table slot.
	if t.MaxTasks < 1 || t.MaxTasks > scheduler.MaxUserTasks {
		errs = append(errs, fmt.Errorf("maxTasks must be within 1 and %d", scheduler.MaxUserTasks))
	}
	if t.PendSVPriority <= t.SysTickPriority || t.PendSVPriority <= t.SVCPriority {
		errs = append(errs, fmt.Errorf("pendSV priority %#x must be lower than systick %#x and svc %#x",
			t.PendSVPriority, t.SysTickPriority, t.SVCPriority))
	}
	if _, err := t.ContextLayout(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrTargetInformationFailed, t.Name, errors.Join(errs...))
	}
	return nil
}

func (t Targets) FindByName(name string) (TargetInfo, error) {
	for _, target := range t {
		if target.Name == strings.ToLower(name) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
}

// FindByCpu returns the first target built for cpu.
func (t Targets) FindByCpu(cpu string) (TargetInfo, error) {
	for _, target := range t {
		if target.Cpu == strings.ToLower(cpu) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: cpu %s", ErrTargetNotFound, cpu)
}

func (t Targets) Names() []string {
	names := make([]string, len(t))
	for i, target := range t {
		names[i] = target.Name
	}
	slices.Sort(names)
	return names
}

// Parse decodes and validates a target table.
func Parse(data []byte) (Targets, error) {
	var t struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Join(ErrTargetInformationFailed, err)
	}

	for _, target := range t.Elements {
		if err := target.Validate(); err != nil {
			return nil, err
		}
	}
	return t.Elements, nil
}

func init() {
	var err error
	if targets, err = Parse(rawTargets); err != nil {
		panic(err)
	}
}
