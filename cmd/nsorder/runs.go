package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/domain"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunsCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded deployment runs",
	}
	cmd.AddCommand(newRunsListCommand(cli), newRunsShowCommand(cli), newRunsDeleteCommand(cli))
	return cmd
}

func newRunsListCommand(cli *cliContext) *cobra.Command {
	var (
		target string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			opts := store.ListOptions{Limit: limit, Offset: offset}
			var runs []domain.Run
			if target != "" {
				runs, err = s.ListRunsByTarget(cmd.Context(), target, opts)
			} else {
				runs, err = s.ListRuns(cmd.Context(), opts)
			}
			if err != nil {
				return &CLIError{Op: "runs list", Err: err, ExitCode: ExitDatabaseError}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tTARGET\tSTATUS\tCOMMANDS\tCREATED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					run.ID, run.Target, run.Status, run.CommandCount, run.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Only show runs for this target")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")
	return cmd
}

func newRunsShowCommand(cli *cliContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run with its batch and device output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return &CLIError{Op: "runs show", Err: err, ExitCode: ExitConfigError}
				}
				return &CLIError{Op: "runs show", Err: err, ExitCode: ExitDatabaseError}
			}

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			return writeRun(cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	return cmd
}

// errRunInProgress is returned when deleting a run that has not finished.
var errRunInProgress = errors.New("run has not finished")

func newRunsDeleteCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete RUN_ID...",
		Short: "Delete finished runs from the history",
		Long: `Delete removes the given runs in a single transaction. Nothing is deleted
when any ID is unknown or names a run that is still pending or running.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			err = s.WithTx(ctx, func(tx store.Store) error {
				for _, id := range args {
					run, err := tx.GetRun(ctx, id)
					if err != nil {
						return err
					}
					if !run.Status.IsTerminal() {
						return fmt.Errorf("%s: %w (status %s)", id, errRunInProgress, run.Status)
					}
					if err := tx.DeleteRun(ctx, id); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				if errors.Is(err, store.ErrNotFound) || errors.Is(err, errRunInProgress) {
					return &CLIError{Op: "runs delete", Err: err, ExitCode: ExitConfigError}
				}
				return &CLIError{Op: "runs delete", Err: err, ExitCode: ExitDatabaseError}
			}

			cli.logger.Info("deleted runs", zap.Strings("ids", args))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d run(s)\n", len(args))
			return err
		},
	}
}

func writeRun(w io.Writer, run *domain.Run) error {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Target:   %s\n", run.Target)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Commands: %d\n", run.CommandCount)
	fmt.Fprintf(w, "Created:  %s\n", run.CreatedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", run.ErrorMessage)
	}
	fmt.Fprintf(w, "\nBatch:\n%s\n", run.Batch)
	if run.Output != "" {
		fmt.Fprintf(w, "\nOutput:\n%s", run.Output)
	}
	return nil
}
