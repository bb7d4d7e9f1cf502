package report

import (
	"errors"
	"io"

	"github.com/fogleman/gg"

	"omibyte.io/tasker/port/sim"
	"omibyte.io/tasker/task"
)

var ErrEmptyTimeline = errors.New("timeline is empty")

const (
	labelWidth = 96
	rowHeight  = 20
	rowGap     = 4
	margin     = 8
	maxWidth   = 2048
)

var palette = []string{
	"#9e9e9e", // idle
	"#1f77b4",
	"#ff7f0e",
	"#2ca02c",
	"#d62728",
	"#9467bd",
	"#8c564b",
	"#e377c2",
	"#bcbd22",
	"#17becf",
}

// Gantt draws one row per task and one column per timer period, filled
// where the period was charged to the task, and encodes it as PNG.
func Gantt(w io.Writer, tbl Table, stats sim.Stats) error {
	if len(stats.Timeline) == 0 {
		return ErrEmptyTimeline
	}

	n := tbl.Len()
	cell := float64(maxWidth-labelWidth-2*margin) / float64(len(stats.Timeline))
	if cell > 8 {
		cell = 8
	}

	width := labelWidth + 2*margin + int(cell*float64(len(stats.Timeline))+0.5)
	height := 2*margin + n*(rowHeight+rowGap)

	dc := gg.NewContext(width, height)
	dc.SetHexColor("#ffffff")
	dc.Clear()

	rows := make(map[*task.Task]int, n)
	for i := 0; i < n; i++ {
		t := tbl.Task(i)
		rows[t] = i

		y := float64(margin + i*(rowHeight+rowGap))
		dc.SetHexColor("#f0f0f0")
		dc.DrawRectangle(labelWidth, y, cell*float64(len(stats.Timeline)), rowHeight)
		dc.Fill()

		dc.SetHexColor("#000000")
		dc.DrawStringAnchored(t.String(), margin, y+rowHeight/2, 0, 0.5)
	}

	for col, t := range stats.Timeline {
		row, ok := rows[t]
		if !ok {
			continue
		}
		x := labelWidth + float64(col)*cell
		y := float64(margin + row*(rowHeight+rowGap))
		dc.SetHexColor(palette[row%len(palette)])
		dc.DrawRectangle(x, y, cell, rowHeight)
		dc.Fill()
	}

	return dc.EncodePNG(w)
}
