package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/plan"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDiffCommand(cli *cliContext) *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "diff [FILE|-]",
		Short: "Show how reordering changes the input as a unified diff",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			diff, err := plan.Diff(cli.engine, cli.prepare(text))
			if err != nil {
				return err
			}
			if diff == "" {
				_, err := fmt.Fprintln(cmd.ErrOrStderr(), "already in dependency order")
				return err
			}
			return writeDiff(cmd.OutOrStdout(), diff, !noColor)
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

var (
	diffHeader  = color.New(color.Bold)
	diffHunk    = color.New(color.FgCyan)
	diffAdded   = color.New(color.FgGreen)
	diffRemoved = color.New(color.FgRed)
)

// writeDiff prints a unified diff, coloring lines when colorize is set and
// the terminal supports it.
func writeDiff(w io.Writer, diff string, colorize bool) error {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		c := diffColor(line)
		if !colorize || c == nil {
			if _, err := io.WriteString(w, line); err != nil {
				return err
			}
			continue
		}
		if _, err := c.Fprint(w, line); err != nil {
			return err
		}
	}
	return nil
}

func diffColor(line string) *color.Color {
	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		return diffHeader
	case strings.HasPrefix(line, "@@"):
		return diffHunk
	case strings.HasPrefix(line, "+"):
		return diffAdded
	case strings.HasPrefix(line, "-"):
		return diffRemoved
	default:
		return nil
	}
}
