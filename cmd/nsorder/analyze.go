package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/analyze"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newAnalyzeCommand(cli *cliContext) *cobra.Command {
	var (
		output     string
		expectPath string
	)
	cmd := &cobra.Command{
		Use:   "analyze [FILE|-]",
		Short: "Count servers, services, virtual servers and bindings",
		Long: `Analyze counts the objects a command file creates, per category. With
--expect it compares the counts against a saved report (JSON or YAML) and
exits with status 5 when any count differs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			report := analyze.Analyze(cli.prepare(text))

			if err := writeReport(cmd.OutOrStdout(), report, output); err != nil {
				return err
			}

			if expectPath == "" {
				return nil
			}
			expected, err := loadReport(expectPath)
			if err != nil {
				return &CLIError{Op: "analyze", Err: err, ExitCode: ExitConfigError}
			}
			mismatches := expected.Compare(report)
			if len(mismatches) == 0 {
				cli.logger.Info("counts match", zap.String("expect", expectPath))
				return nil
			}
			for _, m := range mismatches {
				fmt.Fprintln(cmd.ErrOrStderr(), m.String())
			}
			return &CLIError{
				Op:       "analyze",
				Err:      fmt.Errorf("%d count(s) differ from %s", len(mismatches), expectPath),
				ExitCode: ExitVerifyError,
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	cmd.Flags().StringVar(&expectPath, "expect", "", "Report file with the expected counts")
	return cmd
}

func writeReport(w io.Writer, report analyze.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		for _, f := range report.Fields() {
			fmt.Fprintf(w, "%-14s %d\n", f.Name+":", f.Value)
		}
		_, err := fmt.Fprintf(w, "%-14s %d\n", "total:", report.Total())
		return err
	default:
		return &CLIError{
			Op:       "analyze",
			Err:      fmt.Errorf("unknown output format %q (want text, json or yaml)", format),
			ExitCode: ExitConfigError,
		}
	}
}

// loadReport reads a saved report. YAML parsing accepts JSON as well.
func loadReport(path string) (analyze.Report, error) {
	var report analyze.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("parse %s: %w", path, err)
	}
	return report, nil
}
