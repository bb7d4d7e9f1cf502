package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/tasker/targets"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the supported targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := targetTable()
		if err != nil {
			return err
		}
		return writeTargets(cmd.OutOrStdout(), table)
	},
}

func writeTargets(w io.Writer, table targets.Targets) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "name\tcpu\tarchitecture\tclock\ttick\tcycles/tick\ttasks\tfeatures\t")
	for _, name := range table.Names() {
		target, err := table.FindByName(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t\n",
			target.Name, target.Cpu, target.Architecture, target.ClockHz, target.TickHz,
			target.CyclesPerTick(), target.MaxTasks, target.FormatFeatureString())
	}
	return tw.Flush()
}
