// Package config loads CLI configuration from a config file, .env files,
// environment variables and command-line flags, and converts it into
// client and sync options.
//
// Precedence, highest first: flags, ASSETSYNC_* environment variables, the
// legacy R2_* variables, the config file, defaults.
package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/credentials"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/validation"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ASSETSYNC"

// Config is the complete CLI configuration.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Store    StoreConfig  `mapstructure:"store"`
	Sync     SyncConfig   `mapstructure:"sync"`
	Output   OutputConfig `mapstructure:"output"`
}

// StoreConfig selects and authenticates against the bucket.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`

	// AccountID derives the R2 endpoint when Endpoint is empty
	AccountID string `mapstructure:"account_id"`
	Region    string `mapstructure:"region"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// CredentialsSecret names a Secrets Manager secret holding the access keys
	CredentialsSecret string `mapstructure:"credentials_secret"`
	SecretsRegion     string `mapstructure:"secrets_region"`

	ForcePathStyle bool          `mapstructure:"force_path_style"`
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	MaxRetries     int           `mapstructure:"max_retries"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// RuleConfig is an inclusion rule with a human-readable size, e.g. "500KiB".
type RuleConfig struct {
	Ext     string `mapstructure:"ext"`
	MinSize string `mapstructure:"min_size"`
}

// DeletionConfig mirrors assettypes.DeletionRules with a human-readable threshold.
type DeletionConfig struct {
	Prefixes           []string `mapstructure:"prefixes"`
	SmallFileThreshold string   `mapstructure:"small_file_threshold"`
	ProtectedExts      []string `mapstructure:"protected_exts"`
}

// SyncConfig describes what to sync and how.
// Empty fields fall back to the preset, then to library defaults.
type SyncConfig struct {
	Base            string            `mapstructure:"base"`
	Preset          string            `mapstructure:"preset"`
	Roots           []assettypes.Root `mapstructure:"roots"`
	InclusionRules  []RuleConfig      `mapstructure:"inclusion_rules"`
	DeletionRules   DeletionConfig    `mapstructure:"deletion_rules"`
	StripPrefixes   []string          `mapstructure:"strip_prefixes"`
	KeyPrefix       string            `mapstructure:"key_prefix"`
	Excludes        []string          `mapstructure:"excludes"`
	IgnoreFile      string            `mapstructure:"ignore_file"`
	Digest          string            `mapstructure:"digest"`
	ChecksumCompare bool              `mapstructure:"checksum_compare"`
	Concurrency     int               `mapstructure:"concurrency"`
	DeleteBatchSize int               `mapstructure:"delete_batch_size"`
	CacheControl    string            `mapstructure:"cache_control"`
	PublicRead      bool              `mapstructure:"public_read"`
}

// OutputConfig names the report files written after a run. Empty disables a file.
type OutputConfig struct {
	SummaryFile string `mapstructure:"summary_file"`
	MappingFile string `mapstructure:"mapping_file"`
	FailedFile  string `mapstructure:"failed_file"`
	MetricsFile string `mapstructure:"metrics_file"`
	LockFile    string `mapstructure:"lock_file"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an explicit YAML or JSON file; empty searches the working
	// directory, then $XDG_CONFIG_HOME/assetsync
	ConfigFile string

	// EnvFiles are loaded into the process environment first. Missing files are ignored.
	EnvFiles []string

	// Flags are bound by name; see flagKeys
	Flags *pflag.FlagSet
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":         "log_level",
	"backend":           "store.backend",
	"bucket":            "store.bucket",
	"endpoint":          "store.endpoint",
	"region":            "store.region",
	"public-base-url":   "store.public_base_url",
	"base":              "sync.base",
	"preset":            "sync.preset",
	"key-prefix":        "sync.key_prefix",
	"ignore-file":       "sync.ignore_file",
	"digest":            "sync.digest",
	"checksum-compare":  "sync.checksum_compare",
	"concurrency":       "sync.concurrency",
	"delete-batch-size": "sync.delete_batch_size",
	"cache-control":     "sync.cache_control",
	"public-read":       "sync.public_read",
	"summary-file":      "output.summary_file",
	"mapping-file":      "output.mapping_file",
	"failed-file":       "output.failed_file",
	"metrics-file":      "output.metrics_file",
	"lock-file":         "output.lock_file",
}

// legacyEnv lists the variables the original deployment scripts exported.
var legacyEnv = map[string]string{
	"store.bucket":            "R2_BUCKET",
	"store.endpoint":          "R2_ENDPOINT",
	"store.account_id":        "R2_ACCOUNT_ID",
	"store.access_key_id":     "R2_ADMIN_ACCESS_KEY",
	"store.secret_access_key": "R2_ADMIN_SECRET_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("store.backend", assettypes.BackendS3)
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.account_id", "")
	v.SetDefault("store.region", "auto")
	v.SetDefault("store.access_key_id", "")
	v.SetDefault("store.secret_access_key", "")
	v.SetDefault("store.credentials_secret", "")
	v.SetDefault("store.secrets_region", "")
	v.SetDefault("store.force_path_style", false)
	v.SetDefault("store.public_base_url", "")
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.timeout", 0)

	v.SetDefault("sync.base", ".")
	v.SetDefault("sync.preset", "")
	v.SetDefault("sync.key_prefix", "")
	v.SetDefault("sync.ignore_file", ".syncignore")
	v.SetDefault("sync.digest", string(assettypes.DigestMD5))
	v.SetDefault("sync.checksum_compare", false)
	v.SetDefault("sync.concurrency", assettypes.DefaultConcurrency)
	v.SetDefault("sync.delete_batch_size", assettypes.DefaultDeleteBatchSize)
	v.SetDefault("sync.cache_control", assettypes.DefaultCacheControl)
	v.SetDefault("sync.public_read", true)
	v.SetDefault("sync.deletion_rules.small_file_threshold", "")

	v.SetDefault("output.summary_file", "")
	v.SetDefault("output.mapping_file", "")
	v.SetDefault("output.failed_file", "")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("output.lock_file", "")
}

// Load reads configuration from every source and returns it unvalidated.
func Load(opts LoadOptions) (*Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewError("config.load", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)).
				WithMessage(fmt.Sprintf("failed to load env file %s", f))
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("assetsync")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "assetsync"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewError("config.load", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)).
				WithMessage(fmt.Sprintf("failed to read config %s", v.ConfigFileUsed()))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, errors.NewError("config.load", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.NewError("config.load", err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewError("config.load", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}

	if cfg.Store.Endpoint == "" && cfg.Store.AccountID != "" {
		cfg.Store.Endpoint = R2Endpoint(cfg.Store.AccountID)
	}
	return cfg, nil
}

// R2Endpoint returns the S3 API endpoint of a Cloudflare account.
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// Validate checks the configuration before any remote call.
// Every problem is reported, not only the first.
func (c *Config) Validate() error {
	var problems []string

	if err := validation.ValidateBucketName(c.Store.Bucket); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Store.Backend {
	case assettypes.BackendS3:
		if c.Store.Endpoint == "" && (c.Store.Region == "" || c.Store.Region == "auto") {
			problems = append(problems, "store endpoint is required unless an AWS region is set")
		}
	case assettypes.BackendMinIO:
		if c.Store.Endpoint == "" {
			problems = append(problems, "store endpoint is required for the minio backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if (c.Store.AccessKeyID == "") != (c.Store.SecretAccessKey == "") {
		problems = append(problems, "access key id and secret access key must be set together")
	}
	if c.Store.MaxRetries < 0 {
		problems = append(problems, "max retries cannot be negative")
	}

	if c.Sync.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("concurrency must be positive, got %d", c.Sync.Concurrency))
	}
	if err := validation.ValidateLimits(max(c.Sync.Concurrency, 1), c.Sync.DeleteBatchSize); err != nil {
		problems = append(problems, err.Error())
	}
	switch assettypes.DigestAlgorithm(c.Sync.Digest) {
	case assettypes.DigestMD5, assettypes.DigestSHA256:
	default:
		problems = append(problems, fmt.Sprintf("unknown digest %q", c.Sync.Digest))
	}

	opts, err := c.SyncOptions()
	if err != nil {
		problems = append(problems, err.Error())
	} else {
		scratch := &assettypes.SyncConfig{}
		for _, opt := range opts {
			opt(scratch)
		}
		if err := validation.ValidateRoots(scratch.Roots); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.NewError("config.validate", errors.ErrInvalidConfig).
			WithMessage(strings.Join(problems, "; "))
	}
	return nil
}

// SecretResolver fetches access keys from a secret store.
type SecretResolver interface {
	Resolve(ctx context.Context, secretName string) (credentials.Credentials, error)
}

// ClientOptions converts the store section into client options.
// resolver is consulted only when CredentialsSecret is set.
func (c *Config) ClientOptions(ctx context.Context, resolver SecretResolver) ([]assettypes.Option, error) {
	s := c.Store
	opts := []assettypes.Option{
		assetsync.WithBackend(s.Backend),
		assetsync.WithBucket(s.Bucket),
		assetsync.WithRegion(s.Region),
		assetsync.WithMaxRetries(s.MaxRetries),
		assetsync.WithForcePathStyle(s.ForcePathStyle),
	}
	if s.Endpoint != "" {
		opts = append(opts, assetsync.WithEndpoint(s.Endpoint))
	}
	if s.Timeout > 0 {
		opts = append(opts, assetsync.WithTimeout(s.Timeout))
	}

	accessKey, secretKey := s.AccessKeyID, s.SecretAccessKey
	if s.CredentialsSecret != "" {
		if resolver == nil {
			return nil, errors.NewError("config.credentials", errors.ErrInvalidConfig).
				WithMessage("credentials secret set but no resolver available")
		}
		creds, err := resolver.Resolve(ctx, s.CredentialsSecret)
		if err != nil {
			return nil, err
		}
		accessKey, secretKey = creds.AccessKeyID, creds.SecretAccessKey
	}
	if accessKey != "" {
		opts = append(opts, assetsync.WithCredentials(accessKey, secretKey))
	}
	return opts, nil
}

// SyncOptions converts the sync section into sync options.
// Preset options come first so explicit settings override them.
func (c *Config) SyncOptions() ([]assettypes.SyncOption, error) {
	s := c.Sync

	var opts []assettypes.SyncOption
	if s.Preset != "" {
		preset, err := assetsync.Preset(s.Preset)
		if err != nil {
			return nil, err
		}
		opts = append(opts, preset...)
	}

	opts = append(opts,
		assetsync.WithBase(s.Base),
		assetsync.WithIgnoreFile(s.IgnoreFile),
		assetsync.WithDigest(assettypes.DigestAlgorithm(s.Digest)),
		assetsync.WithChecksumCompare(s.ChecksumCompare),
		assetsync.WithConcurrency(s.Concurrency),
		assetsync.WithDeleteBatchSize(s.DeleteBatchSize),
		assetsync.WithCacheControl(s.CacheControl),
		assetsync.WithPublicRead(s.PublicRead),
	)

	if len(s.Roots) > 0 {
		opts = append(opts, assetsync.WithRoots(s.Roots...))
	}
	if len(s.InclusionRules) > 0 {
		rules := make([]assettypes.InclusionRule, 0, len(s.InclusionRules))
		for _, r := range s.InclusionRules {
			size, err := ParseSize(r.MinSize)
			if err != nil {
				return nil, err
			}
			rules = append(rules, assettypes.InclusionRule{Ext: r.Ext, MinSize: size})
		}
		opts = append(opts, assetsync.WithInclusionRules(rules...))
	}
	if d := s.DeletionRules; len(d.Prefixes) > 0 || d.SmallFileThreshold != "" || len(d.ProtectedExts) > 0 {
		rules := assettypes.DeletionRules{
			Prefixes:           d.Prefixes,
			SmallFileThreshold: assettypes.DefaultSmallFileThreshold,
			ProtectedExts:      d.ProtectedExts,
		}
		if d.SmallFileThreshold != "" {
			size, err := ParseSize(d.SmallFileThreshold)
			if err != nil {
				return nil, err
			}
			rules.SmallFileThreshold = size
		}
		if rules.ProtectedExts == nil {
			rules.ProtectedExts = []string{"pdf"}
		}
		opts = append(opts, assetsync.WithDeletionRules(rules))
	}
	if len(s.StripPrefixes) > 0 {
		opts = append(opts, assetsync.WithStripPrefixes(s.StripPrefixes...))
	}
	if s.KeyPrefix != "" {
		opts = append(opts, assetsync.WithKeyPrefix(s.KeyPrefix))
	}
	if len(s.Excludes) > 0 {
		opts = append(opts, assetsync.WithExcludes(s.Excludes...))
	}
	return opts, nil
}

// ParseSize parses a byte size such as "0", "1024", "500KiB" or "1 MB".
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.NewError("config.parseSize", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)).
			WithMessage(fmt.Sprintf("invalid size %q", s))
	}
	return int64(n), nil
}

// ParseRoot parses a root flag of the form "path" or "path:priority".
func ParseRoot(s string) (assettypes.Root, error) {
	p, prio, found := strings.Cut(s, ":")
	if !found {
		return assettypes.Root{Path: s}, nil
	}
	n, err := strconv.Atoi(prio)
	if err != nil {
		return assettypes.Root{}, errors.NewError("config.parseRoot", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("invalid root priority in %q", s))
	}
	return assettypes.Root{Path: p, Priority: n}, nil
}

// ParseRule parses an inclusion rule flag of the form "ext:min_size", e.g. "jpg:500KiB".
func ParseRule(s string) (RuleConfig, error) {
	ext, size, found := strings.Cut(s, ":")
	if !found || ext == "" {
		return RuleConfig{}, errors.NewError("config.parseRule", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("inclusion rule %q must be ext:min_size", s))
	}
	if _, err := ParseSize(size); err != nil {
		return RuleConfig{}, err
	}
	return RuleConfig{Ext: ext, MinSize: size}, nil
}
