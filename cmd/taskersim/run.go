package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/tasker/internal/report"
	"omibyte.io/tasker/port/sim"
)

var (
	runOpts = struct {
		target string
		ticks  uint64
		gantt  string
		trace  bool
	}{}

	runCmd = &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Run a scenario on the simulator",
		Long:  "Boot the scheduler on a simulated core, run the tasks of a scenario for a number of timer ticks and summarize how the ticks were shared.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := LoadScenario(args[0])
			if err != nil {
				return err
			}
			if runOpts.ticks > 0 {
				sc.Ticks = runOpts.ticks
			}

			table, err := targetTable()
			if err != nil {
				return err
			}
			target, err := table.FindByName(resolveTarget(runOpts.target, sc.Target))
			if err != nil {
				return err
			}

			r, err := simulate(sc, target, logger)
			if err != nil {
				return err
			}

			if err := writeRun(cmd.OutOrStdout(), sc, r, runOpts.trace); err != nil {
				return err
			}

			if len(runOpts.gantt) > 0 {
				f, err := os.Create(runOpts.gantt)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := report.Gantt(f, r.sched, r.stats); err != nil {
					return err
				}
				logger.Info("wrote timeline", "file", runOpts.gantt)
			}
			return nil
		},
	}
)

// resolveTarget prefers the command line, then the scenario, then the
// environment.
func resolveTarget(flag, scenario string) string {
	if len(flag) > 0 {
		return flag
	}
	if len(scenario) > 0 {
		return scenario
	}
	return getenv("TASKER_TARGET", defaultTarget)
}

func writeRun(w io.Writer, sc Scenario, r result, trace bool) error {
	summary := report.Summarize(r.sched, r.stats)
	for _, name := range summary.Starved() {
		logger.Warn("task never ran", "task", name)
	}

	if len(sc.Name) > 0 {
		fmt.Fprintf(w, "%s\n\n", sc.Name)
	}
	if _, err := summary.WriteTo(w); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "task\titerations\t")
	for i, spec := range sc.Tasks {
		fmt.Fprintf(tw, "%s\t%d\t\n", spec.Name, r.iterations[i])
	}

	if trace {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "tick\tcycle\tevent\tdetail\t")
		for _, e := range r.trace {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t\n", e.Tick, e.Cycle, e.Kind, eventDetail(e))
		}
	}
	return tw.Flush()
}

func eventDetail(e sim.Event) string {
	switch e.Kind {
	case sim.EventSwitch:
		return fmt.Sprintf("%v -> %v", e.From, e.To)
	case sim.EventSyscall:
		return e.Call.String()
	default:
		return ""
	}
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.target, "target", "t", "", "target to clock the simulator like (default: scenario target, then $TASKER_TARGET, then "+defaultTarget+")")
	runCmd.Flags().Uint64Var(&runOpts.ticks, "ticks", 0, "override the number of ticks to simulate")
	runCmd.Flags().StringVarP(&runOpts.gantt, "gantt", "g", "", "write a PNG timeline to this file")
	runCmd.Flags().BoolVar(&runOpts.trace, "trace", false, "print the most recent machine events")
}
