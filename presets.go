package assetsync

import (
	"fmt"
	"sort"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
)

// Preset names
const (
	PresetCleanup = "cleanup"
	PresetCDN     = "cdn"
)

const (
	kib = 1024
	mib = 1024 * kib
)

// CleanupDeprecatedPrefixes are the legacy upload locations removed by the
// cleanup preset.
var CleanupDeprecatedPrefixes = []string{
	"resource/",
	"resources/",
	"Uploads/",
	"themes/blowfish/exampleSite/",
	"themes/blowfish/assets/",
	"themes/blowfish/static/",
	"content/",
}

var presets = map[string]func() []assettypes.SyncOption{
	PresetCleanup: cleanupPreset,
	PresetCDN:     cdnPreset,
}

// Preset returns the sync options for a named preset.
// Options passed after the preset override it.
func Preset(name string) ([]assettypes.SyncOption, error) {
	p, ok := presets[name]
	if !ok {
		return nil, errors.NewError("preset", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("unknown preset %q, available: %v", name, PresetNames()))
	}
	return p(), nil
}

// PresetNames returns the registered preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cleanupPreset syncs a site build: large files from static, assets and
// public, every pdf, and removes the legacy prefixes.
func cleanupPreset() []assettypes.SyncOption {
	return []assettypes.SyncOption{
		WithRoots(
			assettypes.Root{Path: "static", Priority: 0},
			assettypes.Root{Path: "assets", Priority: 1},
			assettypes.Root{Path: "public", Priority: 2},
		),
		WithInclusionRules(
			assettypes.InclusionRule{Ext: "*", MinSize: 100 * kib},
			assettypes.InclusionRule{Ext: "pdf", MinSize: 0},
		),
		WithDeletionRules(assettypes.DeletionRules{
			Prefixes:           CleanupDeprecatedPrefixes,
			SmallFileThreshold: 100 * kib,
			ProtectedExts:      []string{"pdf"},
		}),
		WithStripPrefixes("public/"),
		WithCacheControl(assettypes.DefaultCacheControl),
	}
}

// cdnPreset keeps only heavy images and documents on the CDN.
func cdnPreset() []assettypes.SyncOption {
	return []assettypes.SyncOption{
		WithInclusionRules(
			assettypes.InclusionRule{Ext: "png", MinSize: 1 * mib},
			assettypes.InclusionRule{Ext: "jpg", MinSize: 500 * kib},
			assettypes.InclusionRule{Ext: "jpeg", MinSize: 500 * kib},
			assettypes.InclusionRule{Ext: "pdf", MinSize: 0},
		),
		WithDeletionRules(assettypes.DeletionRules{
			SmallFileThreshold: 100 * kib,
			ProtectedExts:      []string{"pdf"},
		}),
	}
}
