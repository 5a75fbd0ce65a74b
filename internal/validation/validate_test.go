package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		wantErr bool
	}{
		{"valid", "hugo-assets", false},
		{"valid with dots", "cdn.example.org", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 64), true},
		{"uppercase", "Assets", true},
		{"underscore", "my_bucket", true},
		{"leading hyphen", "-assets", true},
		{"trailing dot", "assets.", true},
		{"adjacent dots", "a..b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidBucketName)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	assert.NoError(t, ValidateObjectKey("pdfs/guide.pdf"))
	assert.ErrorIs(t, ValidateObjectKey(""), errors.ErrInvalidObjectKey)
	assert.ErrorIs(t, ValidateObjectKey("../etc/passwd"), errors.ErrInvalidObjectKey)
	assert.ErrorIs(t, ValidateObjectKey("/abs"), errors.ErrInvalidObjectKey)
	assert.ErrorIs(t, ValidateObjectKey("a\x00b"), errors.ErrInvalidObjectKey)
	assert.ErrorIs(t, ValidateObjectKey(strings.Repeat("k", 1025)), errors.ErrInvalidObjectKey)
}

func TestValidateKeyPrefix(t *testing.T) {
	assert.NoError(t, ValidateKeyPrefix(""))
	assert.NoError(t, ValidateKeyPrefix("site/"))
	assert.ErrorIs(t, ValidateKeyPrefix("site"), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateKeyPrefix("../site/"), errors.ErrInvalidObjectKey)
}

func TestValidateRoots(t *testing.T) {
	assert.NoError(t, ValidateRoots([]assettypes.Root{{Path: "static"}, {Path: "public", Priority: 1}}))
	assert.ErrorIs(t, ValidateRoots(nil), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateRoots([]assettypes.Root{{Path: " "}}), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateRoots([]assettypes.Root{{Path: "static", Priority: -1}}), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateRoots([]assettypes.Root{{Path: "../outside"}}), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateRoots([]assettypes.Root{{Path: "static"}, {Path: "static/"}}), errors.ErrInvalidConfig)
}

func TestValidateRoots_Overlap(t *testing.T) {
	tests := []struct {
		name    string
		roots   []string
		wantErr bool
	}{
		{name: "siblings", roots: []string{"static", "assets", "public"}},
		{name: "shared name prefix", roots: []string{"public", "public-old"}},
		{name: "child after parent", roots: []string{"public", "public/img"}, wantErr: true},
		{name: "parent after child", roots: []string{"public/img", "public"}, wantErr: true},
		{name: "base and subdirectory", roots: []string{".", "static"}, wantErr: true},
		{name: "unclean child", roots: []string{"public", "./public/img/../img"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots := make([]assettypes.Root, 0, len(tt.roots))
			for i, p := range tt.roots {
				roots = append(roots, assettypes.Root{Path: p, Priority: i})
			}
			err := ValidateRoots(roots)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateStripPrefixes(t *testing.T) {
	assert.NoError(t, ValidateStripPrefixes([]string{"public/"}))
	assert.NoError(t, ValidateStripPrefixes(nil))
	assert.ErrorIs(t, ValidateStripPrefixes([]string{"public"}), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateStripPrefixes([]string{""}), errors.ErrInvalidConfig)
}

func TestValidateLimits(t *testing.T) {
	assert.NoError(t, ValidateLimits(10, 1000))
	assert.ErrorIs(t, ValidateLimits(0, 1000), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateLimits(10, 0), errors.ErrInvalidConfig)
	assert.ErrorIs(t, ValidateLimits(10, 1001), errors.ErrInvalidConfig)
}

func TestValidateCacheControl(t *testing.T) {
	assert.NoError(t, ValidateCacheControl("public, max-age=31536000"))
	assert.ErrorIs(t, ValidateCacheControl("public\r\nX-Evil: 1"), errors.ErrInvalidConfig)
}
