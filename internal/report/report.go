// Package report summarizes simulator runs: how ticks were shared between
// tasks, who switched to whom, and a Gantt chart of the timeline.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/stat"

	"omibyte.io/tasker/port/sim"
	"omibyte.io/tasker/task"
)

// Table is the ordered task table of a scheduler.
type Table interface {
	Len() int
	Task(i int) *task.Task
}

type TaskShare struct {
	Index int
	Name  string
	Ticks uint64
	Share float64

	// Starved user tasks were never switched in, not even between two
	// ticks.
	Starved bool
}

type Summary struct {
	Ticks    uint64
	Switches uint64
	Unowned  uint64
	Tasks    []TaskShare

	// Mean, StdDev and Fairness are computed over the shares of the user
	// tasks. Fairness is Jain's index: 1 when every task got the same
	// share, 1/n when one task got everything.
	Mean     float64
	StdDev   float64
	Fairness float64

	// Transitions[i][j] counts timeline changes from task i to task j.
	Transitions [][]int
}

func Summarize(tbl Table, stats sim.Stats) Summary {
	n := tbl.Len()
	s := Summary{
		Ticks:       stats.Ticks,
		Switches:    stats.Switches,
		Unowned:     stats.Unowned,
		Tasks:       make([]TaskShare, n),
		Transitions: make([][]int, n),
	}

	index := make(map[*task.Task]int, n)
	for i := 0; i < n; i++ {
		t := tbl.Task(i)
		index[t] = i
		s.Tasks[i] = TaskShare{Index: i, Name: t.String(), Ticks: stats.PerTask[t]}
		if stats.Ticks > 0 {
			s.Tasks[i].Share = float64(s.Tasks[i].Ticks) / float64(stats.Ticks)
		}
	}

	// Build the switch graph from the timeline.
	g := multi.NewDirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(multi.Node(i))
	}
	prev := -1
	for _, t := range stats.Timeline {
		cur, ok := index[t]
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 && prev != cur {
			g.SetLine(g.NewLine(multi.Node(prev), multi.Node(cur)))
		}
		prev = cur
	}

	for i := 0; i < n; i++ {
		s.Transitions[i] = make([]int, n)
		for j := 0; j < n; j++ {
			s.Transitions[i][j] = g.Lines(int64(i), int64(j)).Len()
		}
	}

	// The idle task at index 0 is never considered starved.
	for i := 1; i < n; i++ {
		s.Tasks[i].Starved = stats.Loads[tbl.Task(i)] == 0
	}

	shares := make([]float64, 0, n)
	for _, t := range s.Tasks[min(1, n):] {
		shares = append(shares, t.Share)
	}
	if len(shares) > 0 {
		s.Mean = stat.Mean(shares, nil)
		s.Fairness = fairness(shares)
	}
	if len(shares) > 1 {
		s.StdDev = stat.StdDev(shares, nil)
	}

	return s
}

func fairness(x []float64) float64 {
	sq := floats.Dot(x, x)
	if sq == 0 {
		return 0
	}
	sum := floats.Sum(x)
	return sum * sum / (float64(len(x)) * sq)
}

// Starved returns the names of the tasks that never ran.
func (s Summary) Starved() []string {
	var names []string
	for _, t := range s.Tasks {
		if t.Starved {
			names = append(names, t.Name)
		}
	}
	return names
}

func (s Summary) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "ticks\t%d\n", s.Ticks)
	fmt.Fprintf(tw, "switches\t%d\n", s.Switches)
	if s.Unowned > 0 {
		fmt.Fprintf(tw, "unowned\t%d\n", s.Unowned)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "#\ttask\tticks\tshare\t")
	for _, t := range s.Tasks {
		note := ""
		if t.Starved {
			note = "starved"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%5.1f%%\t%s\n", t.Index, t.Name, t.Ticks, t.Share*100, note)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "mean share\t%.3f\n", s.Mean)
	fmt.Fprintf(tw, "stddev\t%.3f\n", s.StdDev)
	fmt.Fprintf(tw, "fairness\t%.3f\n", s.Fairness)

	err := tw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
