package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/plan"
	"github.com/spf13/cobra"
)

func newReorderCommand(cli *cliContext) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "reorder [FILE|-]",
		Short: "Print commands in dependency order",
		Long: `Reorder reads commands from FILE (or stdin) and prints them grouped by
tier: feature enables first, then object creations from backend servers up to
virtual servers, then modifications, bindings and finally enable/disable
toggles. Commands in the same tier keep their input order. Blank lines and
# comments are dropped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			text = cli.prepare(text)

			if explain {
				return writePlan(cmd.OutOrStdout(), plan.Build(cli.engine, text))
			}

			batch := cli.engine.Reorder(text)
			if batch == "" {
				cli.logger.Debug("no commands in input")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), batch)
			return err
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the tier and original position of every command instead of the batch")
	return cmd
}

// writePlan renders a plan as a table.
func writePlan(w io.Writer, p plan.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tFROM\tTIER\tCOMMAND")
	for _, s := range p.Steps {
		marker := " "
		if s.Moved() {
			marker = "*"
		}
		fmt.Fprintf(tw, "%d\t%d%s\t%s\t%s\n", s.Position, s.OriginalIndex, marker, s.TierName, s.Command)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d commands moved\n", p.Moved(), len(p.Steps))
	return err
}
