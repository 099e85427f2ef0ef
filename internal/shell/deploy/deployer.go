// Package deploy delivers reordered configuration to appliances and records
// each delivery as a run.
package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/analyze"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/domain"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/reorder"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/sanitize"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/device"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCommandsRejected is returned when the device answered one or more
// commands with an ERROR: line.
var ErrCommandsRejected = errors.New("device rejected commands")

// ExecutorSource hands out executors for targets. *device.Pool implements it.
type ExecutorSource interface {
	Executor(ctx context.Context, target device.Target) (device.Executor, error)
	// Remove discards the target's executor so the next deploy reconnects.
	Remove(target device.Target) error
}

// Config configures the deployer.
type Config struct {
	// Sanitize runs the sanitize pass before analysis and reordering.
	Sanitize        bool
	SanitizeOptions sanitize.Options

	// MaxConcurrent bounds DeployAll fan-out.
	// Default: 4.
	MaxConcurrent int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SanitizeOptions: sanitize.DefaultOptions(),
		MaxConcurrent:   4,
	}
}

// Deployer reorders configuration, sends it to devices and records runs.
type Deployer struct {
	store     store.Store
	executors ExecutorSource
	engine    *reorder.Engine
	config    Config
	logger    *zap.Logger
}

// New creates a deployer. A nil engine uses the default tier table and a nil
// logger discards output.
func New(s store.Store, executors ExecutorSource, engine *reorder.Engine, config Config, logger *zap.Logger) *Deployer {
	if engine == nil {
		engine = reorder.New(nil)
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Deployer{
		store:     s,
		executors: executors,
		engine:    engine,
		config:    config,
		logger:    logger.With(zap.String("component", "deployer")),
	}
}

// Prepare returns the batch that would be sent for text and the inventory of
// that batch.
func (d *Deployer) Prepare(text string) (string, analyze.Report) {
	if d.config.Sanitize {
		text = sanitize.Apply(text, d.config.SanitizeOptions)
	}
	return d.engine.Reorder(text), analyze.Analyze(text)
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy sends the reordered form of text to target and records the run.
// The returned run reflects the final recorded state even when err is
// non-nil, unless the run could not be created at all.
func (d *Deployer) Deploy(ctx context.Context, target device.Target, text string) (*domain.Run, error) {
	batch, report := d.Prepare(text)

	run, err := domain.NewRun(target.Key(), batch, report)
	if err != nil {
		return nil, err
	}

	logger := d.logger.With(
		zap.String("run_id", run.ID),
		zap.String("target", run.Target),
		zap.Int("commands", run.CommandCount),
	)

	if err := d.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := run.Start(); err != nil {
		return run, err
	}
	if err := d.store.UpdateRun(ctx, run); err != nil {
		return run, fmt.Errorf("update run: %w", err)
	}

	// The run outcome is recorded even when the caller gives up.
	recordCtx := context.WithoutCancel(ctx)

	if batch == "" {
		logger.Info("nothing to deploy")
		return run, d.succeed(recordCtx, run, "")
	}

	executor, err := d.executors.Executor(ctx, target)
	if err != nil {
		logger.Error("executor unavailable", zap.Error(err))
		return run, d.fail(recordCtx, run, "", err)
	}

	logger.Info("deploying batch")
	output, err := executor.Execute(ctx, batch)
	if err != nil {
		logger.Error("batch execution failed", zap.Error(err))
		if rerr := d.executors.Remove(target); rerr != nil {
			logger.Warn("discarding executor", zap.Error(rerr))
		}
		return run, d.fail(recordCtx, run, output, err)
	}

	if failed := domain.FailedLines(output); len(failed) > 0 {
		cause := fmt.Errorf("%w: %d of %d", ErrCommandsRejected, len(failed), run.CommandCount)
		logger.Warn("device rejected commands",
			zap.Int("rejected", len(failed)),
			zap.String("first_error", failed[0]),
		)
		return run, d.fail(recordCtx, run, output, cause)
	}

	logger.Info("batch deployed")
	return run, d.succeed(recordCtx, run, output)
}

func (d *Deployer) succeed(ctx context.Context, run *domain.Run, output string) error {
	if err := run.Succeed(output); err != nil {
		return err
	}
	if err := d.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// fail records the failure and returns cause, or the store error if the
// failure could not be recorded.
func (d *Deployer) fail(ctx context.Context, run *domain.Run, output string, cause error) error {
	if err := run.Fail(output, cause); err != nil {
		return err
	}
	if err := d.store.UpdateRun(ctx, run); err != nil {
		return errors.Join(cause, fmt.Errorf("update run: %w", err))
	}
	return cause
}

// =============================================================================
// Fan-out
// =============================================================================

// DeployAll deploys text to every target, at most MaxConcurrent at a time.
// Runs are returned in target order; entries are nil only for targets whose
// run could not be created. A failure on one target does not stop the others.
func (d *Deployer) DeployAll(ctx context.Context, targets []device.Target, text string) ([]*domain.Run, error) {
	runs := make([]*domain.Run, len(targets))

	var g errgroup.Group
	g.SetLimit(d.config.MaxConcurrent)

	for i, target := range targets {
		g.Go(func() error {
			run, err := d.Deploy(ctx, target, text)
			runs[i] = run
			if err != nil {
				return fmt.Errorf("deploy %s: %w", target.Key(), err)
			}
			return nil
		})
	}

	err := g.Wait()
	d.logger.Info("deploy finished",
		zap.Int("targets", len(targets)),
		zap.Bool("ok", err == nil),
	)
	return runs, err
}
