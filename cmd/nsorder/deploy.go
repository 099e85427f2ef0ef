package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/domain"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/deploy"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/device"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDeployCommand(cli *cliContext) *cobra.Command {
	var (
		targetNames []string
		host        string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "deploy [FILE|-]",
		Short: "Reorder commands and run them on one or more appliances",
		Long: `Deploy reorders the input and sends it as a single batch over SSH to each
selected target. Targets come from device.targets in the config (plus
device.host, named "default"); --target picks a subset and --host adds an
appliance by address. Every delivery is recorded as a run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			targets, err := selectTargets(cli.cfg.Device, targetNames, host)
			if err != nil {
				return &CLIError{Op: "deploy", Err: err, ExitCode: ExitConfigError}
			}

			config := deploy.Config{
				Sanitize:        cli.cfg.Engine.Sanitize,
				SanitizeOptions: cli.cfg.Engine.SanitizeOptions(),
				MaxConcurrent:   cli.cfg.Deploy.MaxConcurrent,
			}

			if dryRun {
				d := deploy.New(nil, nil, cli.engine, config, cli.logger)
				batch, _ := d.Prepare(text)
				out := cmd.OutOrStdout()
				for _, t := range targets {
					fmt.Fprintf(out, "# target %s (%s)\n", t.Name, t.Address())
				}
				if batch != "" {
					fmt.Fprintln(out, batch)
				}
				return nil
			}

			s, err := cli.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			pool := device.NewPool(cli.cfg.Device.SSHConfig())
			defer func() {
				if err := pool.CloseAll(); err != nil {
					cli.logger.Warn("closing device connections", zap.Error(err))
				}
			}()

			d := deploy.New(s, pool, cli.engine, config, cli.logger)
			runs, err := d.DeployAll(cmd.Context(), targets, text)
			if werr := writeRuns(cmd.OutOrStdout(), runs); werr != nil {
				return werr
			}
			for _, run := range runs {
				if run == nil {
					continue
				}
				for _, line := range domain.FailedLines(run.Output) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", run.Target, line)
				}
			}
			if err != nil {
				return &CLIError{Op: "deploy", Err: err, ExitCode: ExitDeviceError}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&targetNames, "target", "t", nil, "Configured target name (repeat or comma-separate)")
	cmd.Flags().StringVar(&host, "host", "", "Deploy to this address using the device defaults")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the targets and batch without connecting")
	return cmd
}

// selectTargets resolves --target names and --host into deployment targets.
func selectTargets(cfg DeviceConfig, names []string, host string) ([]device.Target, error) {
	if host != "" && len(names) == 0 {
		return []device.Target{cfg.AdHocTarget(host)}, nil
	}
	targets, err := cfg.ResolveTargets(names)
	if err != nil {
		return nil, err
	}
	if host != "" {
		targets = append(targets, cfg.AdHocTarget(host))
	}
	return targets, nil
}

// writeRuns prints a one-line summary per run.
func writeRuns(w io.Writer, runs []*domain.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTARGET\tSTATUS\tCOMMANDS\tERROR")
	for _, run := range runs {
		if run == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", run.ID, run.Target, run.Status, run.CommandCount, run.ErrorMessage)
	}
	return tw.Flush()
}
