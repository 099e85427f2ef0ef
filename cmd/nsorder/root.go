package main

import (
	"os"
	"path/filepath"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/reorder"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/sanitize"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliContext carries state shared by every subcommand. It is filled in by
// the root command's PersistentPreRunE.
type cliContext struct {
	configPath string
	logLevel   string
	sanitize   bool

	cfg    *Config
	logger *zap.Logger
	engine *reorder.Engine
}

func newRootCommand() *cobra.Command {
	cli := &cliContext{}
	cmd := &cobra.Command{
		Use:   "nsorder",
		Short: "Reorder appliance configuration into dependency order",
		Long: `nsorder takes a flat list of appliance CLI commands, in any order, and emits
them so that every object is created before anything modifies, binds or
toggles it. The reordered batch can be printed, analyzed, diffed against the
input or delivered to one or more appliances over SSH.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.load(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&cli.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&cli.sanitize, "sanitize", false, "Strip -devno options and self-named servers before processing")

	cmd.AddCommand(
		newReorderCommand(cli),
		newAnalyzeCommand(cli),
		newDiffCommand(cli),
		newDeployCommand(cli),
		newRunsCommand(cli),
		newTiersCommand(),
		newServeCommand(cli),
		newVersionCommand(),
	)
	cmd.Example = `  # Reorder an exported config
  nsorder reorder ns.conf > ordered.conf

  # Show why each command moved
  nsorder reorder --explain ns.conf

  # Check object counts against an expected inventory
  nsorder analyze ns.conf --expect expected.json

  # Push to every configured appliance
  nsorder deploy ns.conf`
	return cmd
}

// load reads configuration and applies flag overrides.
func (c *cliContext) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return &CLIError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if cmd.Flags().Changed("sanitize") {
		cfg.Engine.Sanitize = c.sanitize
	}

	c.cfg = cfg
	c.logger = SetupLogger(cfg, cmd.ErrOrStderr())
	c.engine = reorder.New(nil)
	return nil
}

// prepare applies the sanitize pass when it is enabled.
func (c *cliContext) prepare(text string) string {
	if !c.cfg.Engine.Sanitize {
		return text
	}
	return sanitize.Apply(text, c.cfg.Engine.SanitizeOptions())
}

// openStore opens the run history database, creating its directory.
func (c *cliContext) openStore() (*store.SQLiteStore, error) {
	dsn := c.cfg.Database.DSN
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, &CLIError{Op: "openStore", Err: err, ExitCode: ExitDatabaseError}
		}
	}
	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		return nil, &CLIError{Op: "openStore", Err: err, ExitCode: ExitDatabaseError}
	}
	return s, nil
}
