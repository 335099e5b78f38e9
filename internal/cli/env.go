package cli

import (
	"context"
	"fmt"
	"herdcore/internal/blob"
	"herdcore/internal/config"
	"herdcore/internal/core"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// environment is everything one command invocation needs: the engine
// service, its farmer-scoped context, and the resources to release.
type environment struct {
	cfg      *config.Config
	ctx      context.Context
	service  *core.Service
	logger   *zap.Logger
	registry *prometheus.Registry
	store    core.PersistentStore
	stderr   io.Writer
}

func openEnvironment(cmd *cobra.Command, opts *RootOptions) (*environment, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if farmer := strings.TrimSpace(opts.Farmer); farmer != "" {
		cfg.Farmer = farmer
	}

	stderr := cmd.ErrOrStderr()
	logger, err := newLogger(cfg.Log, opts.Verbose, stderr)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry, cfg.Metrics.Namespace)
	if err != nil {
		closeStore(store)
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	coreLogger := core.NewZapLogger(logger)
	svcOpts := []core.Option{
		core.WithLogger(coreLogger),
		core.WithAuditRecorder(core.NewLoggerAuditRecorder(coreLogger)),
		core.WithMetricsRecorder(metrics),
	}
	if cfg.Journal.Enabled {
		blobs, err := blob.Open(ctx, cfg.JournalBlob())
		if err != nil {
			closeStore(store)
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		svcOpts = append(svcOpts, core.WithJournal(core.NewBlobJournal(blobs, cfg.Journal.Prefix)))
	}

	if cfg.Farmer != "" {
		ctx = core.WithFarmer(ctx, cfg.Farmer)
	}
	logger.Debug("environment ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("journal", cfg.Journal.Enabled),
		zap.String("farmer", cfg.Farmer))

	return &environment{
		cfg:      cfg,
		ctx:      ctx,
		service:  core.NewService(store, svcOpts...),
		logger:   logger,
		registry: registry,
		store:    store,
		stderr:   stderr,
	}, nil
}

// close flushes metrics when enabled and releases the store.
func (e *environment) close() {
	if e.cfg.Metrics.Enabled {
		if err := writeMetrics(e.stderr, e.registry); err != nil {
			e.logger.Warn("metrics flush failed", zap.Error(err))
		}
	}
	closeStore(e.store)
	_ = e.logger.Sync()
}

func closeStore(store core.PersistentStore) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	var encoder zapcore.Encoder
	if cfg.Development {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level)), nil
}

// execute opens the environment, runs fn, and prints its payload. Domain
// errors are printed in the chosen format and returned as ExitFailure.
func execute(cmd *cobra.Command, opts *RootOptions, fn func(env *environment) (any, error)) error {
	env, err := openEnvironment(cmd, opts)
	if err != nil {
		return err
	}
	defer env.close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	data, err := fn(env)
	if err != nil {
		if isDomainError(err) {
			if werr := out.Error(err); werr != nil {
				return WrapExitError(ExitCommandError, "failed to write output", werr)
			}
			return WrapExitError(ExitFailure, "operation rejected", err)
		}
		return WrapExitError(ExitCommandError, "operation failed", err)
	}
	if err := out.Success(data); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}

func mutation(record any, res core.Result) Mutation {
	return Mutation{Record: record, Changes: res.Changes, Violations: res.Violations}
}
