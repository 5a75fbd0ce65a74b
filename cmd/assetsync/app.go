package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/credentials"
)

// syncClient is the part of *assetsync.Client the commands use.
type syncClient interface {
	Sync(ctx context.Context, opts ...assettypes.SyncOption) (*assetsync.Result, error)
	Plan(ctx context.Context, opts ...assettypes.SyncOption) (*assetsync.Result, error)
	Inventory(ctx context.Context, prefix string) ([]assettypes.RemoteObject, error)
	SetPublicAccess(ctx context.Context, prefix string) error
	Bucket() string
	Endpoint() string
}

// app is the per-invocation state shared by commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
}

// newClient is replaced in tests.
var newClient = func(ctx context.Context, a *app) (syncClient, error) {
	var resolver config.SecretResolver
	if a.cfg.Store.CredentialsSecret != "" {
		region := a.cfg.Store.SecretsRegion
		if region == "" && a.cfg.Store.Region != "auto" {
			region = a.cfg.Store.Region
		}
		r, err := credentials.NewResolver(ctx, region, a.logger)
		if err != nil {
			return nil, err
		}
		resolver = r
	}

	opts, err := a.cfg.ClientOptions(ctx, resolver)
	if err != nil {
		return nil, err
	}
	opts = append(opts, assetsync.WithLogger(a.logger))
	if a.registry != nil {
		opts = append(opts, assetsync.WithMetrics(a.registry))
	}
	return assetsync.New(ctx, opts...)
}

// loadApp reads configuration for cmd, applies list flags, and validates the
// result when validate is set.
func loadApp(cmd *cobra.Command, validate bool) (*app, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	envFiles, _ := flags.GetStringSlice("env-file")

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFiles:   envFiles,
		Flags:      flags,
	})
	if err != nil {
		return nil, err
	}
	if err := applyListFlags(cmd, cfg); err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, logger: logger}
	if cfg.Output.MetricsFile != "" {
		a.registry = prometheus.NewRegistry()
	}
	return a, nil
}

// applyListFlags overrides list settings from repeated flags. Viper cannot
// bind these because they parse into structured values.
func applyListFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if f := flags.Lookup("root"); f != nil && f.Changed {
		values, _ := flags.GetStringArray("root")
		roots := make([]assettypes.Root, 0, len(values))
		for i, v := range values {
			root, err := config.ParseRoot(v)
			if err != nil {
				return err
			}
			if !strings.Contains(v, ":") {
				root.Priority = i
			}
			roots = append(roots, root)
		}
		cfg.Sync.Roots = roots
	}
	if f := flags.Lookup("include"); f != nil && f.Changed {
		values, _ := flags.GetStringArray("include")
		rules := make([]config.RuleConfig, 0, len(values))
		for _, v := range values {
			rule, err := config.ParseRule(v)
			if err != nil {
				return err
			}
			rules = append(rules, rule)
		}
		cfg.Sync.InclusionRules = rules
	}
	if f := flags.Lookup("exclude"); f != nil && f.Changed {
		cfg.Sync.Excludes, _ = flags.GetStringArray("exclude")
	}
	if f := flags.Lookup("strip-prefix"); f != nil && f.Changed {
		cfg.Sync.StripPrefixes, _ = flags.GetStringArray("strip-prefix")
	}
	if f := flags.Lookup("deprecated-prefix"); f != nil && f.Changed {
		cfg.Sync.DeletionRules.Prefixes, _ = flags.GetStringArray("deprecated-prefix")
	}
	if f := flags.Lookup("small-file-threshold"); f != nil && f.Changed {
		cfg.Sync.DeletionRules.SmallFileThreshold, _ = flags.GetString("small-file-threshold")
	}
	return nil
}
