package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/tasker/frame"
	"omibyte.io/tasker/targets"
)

var (
	layoutOpts = struct {
		entry uint32
		args  []uint
		hex   bool
	}{}

	layoutCmd = &cobra.Command{
		Use:   "layout [target]",
		Short: "Show the initial context of a new task",
		Long:  "Print the context a new task starts from, in memory order from its saved stack pointer, for the context layout of a target.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := getenv("TASKER_TARGET", defaultTarget)
			if len(args) == 1 {
				name = args[0]
			}

			table, err := targetTable()
			if err != nil {
				return err
			}
			target, err := table.FindByName(name)
			if err != nil {
				return err
			}

			if len(layoutOpts.args) > frame.MaxArgs {
				return fmt.Errorf("at most %d arguments, got %d", frame.MaxArgs, len(layoutOpts.args))
			}
			var regs [frame.MaxArgs]uint32
			for i, a := range layoutOpts.args {
				regs[i] = uint32(a)
			}
			return writeLayout(cmd.OutOrStdout(), target, uintptr(layoutOpts.entry), regs, layoutOpts.hex)
		},
	}
)

var contextRegisters = [frame.ContextWords]string{
	"r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11",
	"r0", "r1", "r2", "r3", "r12", "lr", "pc", "xpsr",
}

func writeLayout(w io.Writer, target targets.TargetInfo, entry uintptr, args [frame.MaxArgs]uint32, dump bool) error {
	l, err := target.ContextLayout()
	if err != nil {
		return err
	}
	ctx := l.Initial(entry, args)

	fmt.Fprintf(w, "%s: layout %d (%s), %d byte stack alignment\n\n", target.Name, l.Version, l.Arch, l.StackAlign)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "offset\tregister\tvalue\t")
	for i, v := range ctx.Words() {
		fmt.Fprintf(tw, "sp+%d\t%s\t%#010x\t\n", i*4, contextRegisters[i], v)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if dump {
		data, err := ctx.MarshalBinary()
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		if _, err := io.WriteString(w, hex.Dump(data)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	layoutCmd.Flags().Uint32Var(&layoutOpts.entry, "entry", 0x0800_0001, "entry address of the task function")
	layoutCmd.Flags().UintSliceVar(&layoutOpts.args, "args", nil, "up to four argument register values")
	layoutCmd.Flags().BoolVar(&layoutOpts.hex, "hex", false, "also dump the memory image")
}
