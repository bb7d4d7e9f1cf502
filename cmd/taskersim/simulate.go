package main

import (
	"fmt"
	"log/slog"

	"omibyte.io/tasker/port/sim"
	"omibyte.io/tasker/scheduler"
	"omibyte.io/tasker/svc"
	"omibyte.io/tasker/targets"
	"omibyte.io/tasker/task"
)

type result struct {
	sched *scheduler.Scheduler
	stats sim.Stats
	trace []sim.Event

	// iterations counts completed loop bodies per scenario task.
	iterations []uint64
}

// simulate boots the scheduler on a machine clocked like target and runs
// sc until its tick budget is spent.
func simulate(sc Scenario, target targets.TargetInfo, logger *slog.Logger) (result, error) {
	// The idle task does not count against the target's limit.
	if len(sc.Tasks) > target.MaxTasks {
		return result{}, fmt.Errorf("%w: %d > %d on %s", ErrTooManyTasks, len(sc.Tasks), target.MaxTasks, target.Name)
	}

	opts := sim.DefaultOptions()
	opts.CyclesPerTick = target.CyclesPerTick()
	opts.MaxTicks = sc.Ticks
	opts.SysTickPriority = target.SysTickPriority
	opts.PendSVPriority = target.PendSVPriority
	opts.Logger = logger

	m := sim.New(opts)
	s := scheduler.New(m)
	r := result{
		sched:      s,
		iterations: make([]uint64, len(sc.Tasks)),
	}

	for i, spec := range sc.Tasks {
		work := uint64(spec.Work * float64(opts.CyclesPerTick))
		if work == 0 && spec.Sleep == 0 {
			return result{}, fmt.Errorf("task %s: %w", spec.Name, ErrSpinningTask)
		}

		t := &task.Task{Name: spec.Name}
		if err := t.Init(m, taskBody(m, s, spec, work, &r.iterations[i])); err != nil {
			return result{}, fmt.Errorf("task %s: %w", spec.Name, err)
		}
		if err := s.AddTask(t); err != nil {
			return result{}, fmt.Errorf("task %s: %w", spec.Name, err)
		}
	}

	logger.Debug("simulating", "scenario", sc.Name, "target", target.Name, "tasks", len(sc.Tasks), "ticks", sc.Ticks)

	stats, err := m.Boot(s.Start)
	if err != nil {
		return result{}, err
	}
	r.stats = stats
	r.trace = m.Trace()

	if err := s.CheckStacks(); err != nil {
		logger.Warn("stack check failed", "error", err)
	}
	return r, nil
}

func taskBody(m *sim.Machine, s *scheduler.Scheduler, spec TaskSpec, work uint64, count *uint64) task.Entry {
	return task.Func0(func() {
		for {
			if work > 0 {
				m.Exec(work)
			}
			*count++
			if spec.Yield {
				svc.Call0(m, svc.Yield)
			}
			if spec.Sleep > 0 {
				s.Sleep(spec.Sleep)
			}
		}
	})
}
