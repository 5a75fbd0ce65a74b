package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/credentials"
)

const siteYAML = `
log_level: debug
store:
  bucket: site-assets
  endpoint: https://abc123.r2.cloudflarestorage.com
  public_base_url: https://cdn.example.com
  timeout: 30s
sync:
  base: ./site
  roots:
    - path: static
      priority: 0
    - path: public
      priority: 1
  inclusion_rules:
    - ext: jpg
      min_size: 500KiB
    - ext: pdf
      min_size: 0
  deletion_rules:
    prefixes: ["resource/", "resources/"]
    small_file_threshold: 100KiB
  strip_prefixes: ["public/"]
  excludes: ["**/pdfjs/**"]
  concurrency: 4
output:
  summary_file: summary.json
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func applySync(t *testing.T, cfg *Config) *assettypes.SyncConfig {
	t.Helper()
	opts, err := cfg.SyncOptions()
	require.NoError(t, err)
	sc := &assettypes.SyncConfig{}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, assettypes.BackendS3, cfg.Store.Backend)
	assert.Equal(t, "auto", cfg.Store.Region)
	assert.Equal(t, 3, cfg.Store.MaxRetries)
	assert.Equal(t, ".", cfg.Sync.Base)
	assert.Equal(t, ".syncignore", cfg.Sync.IgnoreFile)
	assert.Equal(t, string(assettypes.DigestMD5), cfg.Sync.Digest)
	assert.Equal(t, assettypes.DefaultConcurrency, cfg.Sync.Concurrency)
	assert.Equal(t, assettypes.DefaultDeleteBatchSize, cfg.Sync.DeleteBatchSize)
	assert.Equal(t, assettypes.DefaultCacheControl, cfg.Sync.CacheControl)
	assert.True(t, cfg.Sync.PublicRead)
}

func TestLoad_ConfigFile(t *testing.T) {
	cfg, err := Load(LoadOptions{ConfigFile: writeFile(t, "assetsync.yaml", siteYAML)})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "site-assets", cfg.Store.Bucket)
	assert.Equal(t, "https://cdn.example.com", cfg.Store.PublicBaseURL)
	assert.Equal(t, "30s", cfg.Store.Timeout.String())
	assert.Equal(t, []assettypes.Root{
		{Path: "static", Priority: 0},
		{Path: "public", Priority: 1},
	}, cfg.Sync.Roots)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "summary.json", cfg.Output.SummaryFile)
	require.NoError(t, cfg.Validate())

	sc := applySync(t, cfg)
	assert.Equal(t, "./site", sc.Base)
	assert.Equal(t, []assettypes.InclusionRule{
		{Ext: "jpg", MinSize: 500 * 1024},
		{Ext: "pdf", MinSize: 0},
	}, sc.InclusionRules)
	assert.Equal(t, assettypes.DeletionRules{
		Prefixes:           []string{"resource/", "resources/"},
		SmallFileThreshold: 100 * 1024,
		ProtectedExts:      []string{"pdf"},
	}, sc.DeletionRules)
	assert.Equal(t, []string{"public/"}, sc.StripPrefixes)
	assert.Equal(t, []string{"**/pdfjs/**"}, sc.ExcludePatterns)
	assert.Equal(t, 4, sc.Concurrency)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("R2_BUCKET", "legacy-bucket")
	t.Setenv("R2_ACCOUNT_ID", "abc123")
	t.Setenv("R2_ADMIN_ACCESS_KEY", "key")
	t.Setenv("R2_ADMIN_SECRET_KEY", "secret")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "legacy-bucket", cfg.Store.Bucket)
	assert.Equal(t, "https://abc123.r2.cloudflarestorage.com", cfg.Store.Endpoint)
	assert.Equal(t, "key", cfg.Store.AccessKeyID)
	assert.Equal(t, "secret", cfg.Store.SecretAccessKey)

	t.Run("prefixed variable wins", func(t *testing.T) {
		t.Setenv("ASSETSYNC_STORE_BUCKET", "new-bucket")
		cfg, err := Load(LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, "new-bucket", cfg.Store.Bucket)
	})
}

func TestLoad_EnvFile(t *testing.T) {
	t.Cleanup(func() { _ = os.Unsetenv("ASSETSYNC_SYNC_KEY_PREFIX") })
	envFile := writeFile(t, ".env", "ASSETSYNC_SYNC_KEY_PREFIX=site/\n")

	cfg, err := Load(LoadOptions{EnvFiles: []string{envFile, filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)
	assert.Equal(t, "site/", cfg.Sync.KeyPrefix)
}

func TestLoad_FlagsOverride(t *testing.T) {
	t.Setenv("ASSETSYNC_SYNC_CONCURRENCY", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("bucket", "", "")
	flags.Int("concurrency", 0, "")
	require.NoError(t, flags.Parse([]string{"--bucket=flag-bucket", "--concurrency=2"}))

	cfg, err := Load(LoadOptions{
		ConfigFile: writeFile(t, "assetsync.yaml", siteYAML),
		Flags:      flags,
	})
	require.NoError(t, err)
	assert.Equal(t, "flag-bucket", cfg.Store.Bucket)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ASSETSYNC_SYNC_CONCURRENCY", "8")

	cfg, err := Load(LoadOptions{ConfigFile: writeFile(t, "assetsync.yaml", siteYAML)})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
}

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  assettypes.BackendS3,
			Bucket:   "site-assets",
			Endpoint: "https://abc123.r2.cloudflarestorage.com",
			Region:   "auto",
		},
		Sync: SyncConfig{
			Base:            ".",
			Roots:           []assettypes.Root{{Path: "public"}},
			Digest:          string(assettypes.DigestMD5),
			Concurrency:     10,
			DeleteBatchSize: 1000,
			PublicRead:      true,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "aws region without endpoint",
			mutate: func(c *Config) {
				c.Store.Endpoint = ""
				c.Store.Region = "eu-west-1"
			},
		},
		{
			name:   "cleanup preset supplies roots",
			mutate: func(c *Config) { c.Sync.Roots = nil; c.Sync.Preset = "cleanup" },
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Store.Endpoint = "" },
			wantErr: []string{"endpoint is required"},
		},
		{
			name: "several problems at once",
			mutate: func(c *Config) {
				c.Store.Bucket = ""
				c.Sync.Concurrency = 0
				c.Sync.DeleteBatchSize = 2000
			},
			wantErr: []string{"bucket name cannot be empty", "concurrency must be positive", "between 1 and 1000"},
		},
		{
			name:    "half credentials",
			mutate:  func(c *Config) { c.Store.AccessKeyID = "key" },
			wantErr: []string{"must be set together"},
		},
		{
			name:    "no roots",
			mutate:  func(c *Config) { c.Sync.Roots = nil },
			wantErr: []string{"at least one root"},
		},
		{
			name:    "cdn preset has no roots",
			mutate:  func(c *Config) { c.Sync.Roots = nil; c.Sync.Preset = "cdn" },
			wantErr: []string{"at least one root"},
		},
		{
			name:    "unknown preset",
			mutate:  func(c *Config) { c.Sync.Preset = "nightly" },
			wantErr: []string{"unknown preset"},
		},
		{
			name: "malformed rule size",
			mutate: func(c *Config) {
				c.Sync.InclusionRules = []RuleConfig{{Ext: "jpg", MinSize: "lots"}}
			},
			wantErr: []string{"invalid size"},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "gcs" },
			wantErr: []string{"unknown store backend"},
		},
		{
			name:    "unknown digest",
			mutate:  func(c *Config) { c.Sync.Digest = "crc32" },
			wantErr: []string{"unknown digest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

type stubResolver struct {
	creds credentials.Credentials
	err   error
	asked string
}

func (s *stubResolver) Resolve(_ context.Context, name string) (credentials.Credentials, error) {
	s.asked = name
	return s.creds, s.err
}

func TestConfig_ClientOptions(t *testing.T) {
	t.Run("static credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.AccessKeyID = "key"
		cfg.Store.SecretAccessKey = "secret"

		opts, err := cfg.ClientOptions(context.Background(), nil)
		require.NoError(t, err)

		cc := &assettypes.ClientConfig{}
		for _, opt := range opts {
			opt(cc)
		}
		assert.Equal(t, "site-assets", cc.Bucket)
		assert.Equal(t, "https://abc123.r2.cloudflarestorage.com", cc.Endpoint)
		assert.Equal(t, "key", cc.AccessKeyID)
		assert.Equal(t, "secret", cc.SecretAccessKey)
	})

	t.Run("secret overrides static keys", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.AccessKeyID = "key"
		cfg.Store.SecretAccessKey = "secret"
		cfg.Store.CredentialsSecret = "r2/admin"
		resolver := &stubResolver{creds: credentials.Credentials{AccessKeyID: "vault-key", SecretAccessKey: "vault-secret"}}

		opts, err := cfg.ClientOptions(context.Background(), resolver)
		require.NoError(t, err)

		cc := &assettypes.ClientConfig{}
		for _, opt := range opts {
			opt(cc)
		}
		assert.Equal(t, "r2/admin", resolver.asked)
		assert.Equal(t, "vault-key", cc.AccessKeyID)
		assert.Equal(t, "vault-secret", cc.SecretAccessKey)
	})

	t.Run("secret without resolver", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.CredentialsSecret = "r2/admin"
		_, err := cfg.ClientOptions(context.Background(), nil)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("resolver failure", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.CredentialsSecret = "r2/admin"
		_, err := cfg.ClientOptions(context.Background(), &stubResolver{err: credentials.ErrSecretNotFound})
		assert.ErrorIs(t, err, credentials.ErrSecretNotFound)
	})
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "0", want: 0},
		{in: "1024", want: 1024},
		{in: "100KiB", want: 100 * 1024},
		{in: "1 MiB", want: 1024 * 1024},
		{in: "1MB", want: 1000 * 1000},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRootAndRule(t *testing.T) {
	root, err := ParseRoot("static:0")
	require.NoError(t, err)
	assert.Equal(t, assettypes.Root{Path: "static", Priority: 0}, root)

	root, err = ParseRoot("public")
	require.NoError(t, err)
	assert.Equal(t, assettypes.Root{Path: "public"}, root)

	_, err = ParseRoot("public:high")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	rule, err := ParseRule("jpg:500KiB")
	require.NoError(t, err)
	assert.Equal(t, RuleConfig{Ext: "jpg", MinSize: "500KiB"}, rule)

	_, err = ParseRule("jpg")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
