package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultTicks = 100

// Scenario describes a simulator run. Tasks are added to the scheduler in
// the order they are listed.
type Scenario struct {
	Name   string     `yaml:"name"`
	Target string     `yaml:"target"`
	Ticks  uint64     `yaml:"ticks"`
	Tasks  []TaskSpec `yaml:"tasks"`
}

// TaskSpec is one task body: Work timer periods of computation, then an
// optional yield, then an optional sleep, forever.
type TaskSpec struct {
	Name  string  `yaml:"name"`
	Work  float64 `yaml:"work"`
	Yield bool    `yaml:"yield"`
	Sleep uint32  `yaml:"sleep"`
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, errors.Join(ErrScenario, err)
	}
	if sc.Ticks == 0 {
		sc.Ticks = defaultTicks
	}
	for i := range sc.Tasks {
		if len(sc.Tasks[i].Name) == 0 {
			sc.Tasks[i].Name = fmt.Sprintf("task%d", i+1)
		}
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func (sc Scenario) Validate() error {
	var errs []error
	if len(sc.Tasks) == 0 {
		errs = append(errs, ErrNoTasks)
	}
	if sc.Ticks == 0 {
		errs = append(errs, ErrUnboundedRun)
	}
	for _, t := range sc.Tasks {
		if t.Work < 0 {
			errs = append(errs, fmt.Errorf("task %s: negative work %g", t.Name, t.Work))
		}
		if t.Work <= 0 && t.Sleep == 0 {
			errs = append(errs, fmt.Errorf("task %s: %w", t.Name, ErrSpinningTask))
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrScenario}, errs...)...)
	}
	return nil
}
