// Package rules evaluates inclusion and deletion rules and rejects rule sets
// whose combined effect is undefined.
package rules

import (
	"fmt"
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
)

// AnyExt matches every extension in an inclusion rule.
const AnyExt = "*"

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtOf returns the normalized extension of a slash or OS path.
func ExtOf(p string) string {
	return NormalizeExt(path.Ext(p))
}

// Inclusion decides whether a local file is a sync candidate.
type Inclusion struct {
	rules []assettypes.InclusionRule
}

// NewInclusion validates and normalizes rules.
func NewInclusion(rules []assettypes.InclusionRule) (*Inclusion, error) {
	if len(rules) == 0 {
		return nil, errors.NewError("rules", errors.ErrInvalidConfig).
			WithMessage("at least one inclusion rule is required")
	}
	normalized := make([]assettypes.InclusionRule, 0, len(rules))
	for i, r := range rules {
		ext := NormalizeExt(r.Ext)
		if ext == "" {
			return nil, errors.NewError("rules", errors.ErrInvalidConfig).
				WithMessage(fmt.Sprintf("inclusion rule %d has no extension", i))
		}
		if r.MinSize < 0 {
			return nil, errors.NewError("rules", errors.ErrInvalidConfig).
				WithMessage(fmt.Sprintf("inclusion rule %d (%s) has negative min size", i, ext))
		}
		normalized = append(normalized, assettypes.InclusionRule{Ext: ext, MinSize: r.MinSize})
	}
	return &Inclusion{rules: normalized}, nil
}

// Match returns the first rule admitting a file at p of the given size.
// A file is included iff any rule matches; the first match is reported.
func (in *Inclusion) Match(p string, size int64) (assettypes.InclusionRule, bool) {
	ext := ExtOf(p)
	for _, r := range in.rules {
		if (r.Ext == AnyExt || r.Ext == ext) && size >= r.MinSize {
			return r, true
		}
	}
	return assettypes.InclusionRule{}, false
}

// Deletion decides whether a remote object is an orphan.
type Deletion struct {
	prefixes  []string
	threshold int64
	protected mapset.Set[string]
}

// NewDeletion validates and normalizes deletion rules.
func NewDeletion(r assettypes.DeletionRules) (*Deletion, error) {
	if r.SmallFileThreshold < 0 {
		return nil, errors.NewError("rules", errors.ErrInvalidConfig).
			WithMessage("small file threshold cannot be negative")
	}
	for _, p := range r.Prefixes {
		if strings.TrimSpace(p) == "" {
			return nil, errors.NewError("rules", errors.ErrConflictingRules).
				WithMessage("empty deprecated prefix would delete every object")
		}
	}

	protected := mapset.NewThreadUnsafeSet[string]()
	for _, ext := range r.ProtectedExts {
		if n := NormalizeExt(ext); n != "" {
			protected.Add(n)
		}
	}

	return &Deletion{
		prefixes:  append([]string(nil), r.Prefixes...),
		threshold: r.SmallFileThreshold,
		protected: protected,
	}, nil
}

// DeprecatedPrefix reports whether key lies under a deprecated prefix.
func (d *Deletion) DeprecatedPrefix(key string) bool {
	for _, p := range d.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Protected reports whether files with extension ext are exempt from the small-file rule.
func (d *Deletion) Protected(ext string) bool {
	return d.protected.Contains(NormalizeExt(ext))
}

// Threshold returns the small-file threshold in bytes.
func (d *Deletion) Threshold() int64 {
	return d.threshold
}

// Match reports whether obj is an orphan and why.
func (d *Deletion) Match(obj assettypes.RemoteObject) (string, bool) {
	if d.DeprecatedPrefix(obj.Key) {
		return assettypes.ReasonDeprecatedPrefix, true
	}
	if d.threshold > 0 && obj.Size < d.threshold && !d.Protected(ExtOf(obj.Key)) {
		return assettypes.ReasonSmallFile, true
	}
	return "", false
}

// CheckConflicts rejects configurations under which a second run would undo
// the first one, under which every planned upload would be deleted, or under
// which a deletion rule can never match because the inventory only covers
// keyPrefix.
func CheckConflicts(
	inclusion []assettypes.InclusionRule,
	deletion assettypes.DeletionRules,
	keyPrefix string,
) error {
	del, err := NewDeletion(deletion)
	if err != nil {
		return err
	}

	if keyPrefix != "" && del.DeprecatedPrefix(keyPrefix) {
		return errors.NewError("rules", errors.ErrConflictingRules).
			WithMessage(fmt.Sprintf("key prefix %q lies under a deprecated prefix", keyPrefix))
	}

	if keyPrefix != "" {
		for _, p := range del.prefixes {
			if !strings.HasPrefix(p, keyPrefix) {
				return errors.NewError("rules", errors.ErrConflictingRules).
					WithMessage(fmt.Sprintf(
						"deprecated prefix %q lies outside key prefix %q and is never listed", p, keyPrefix))
			}
		}
	}

	if del.threshold == 0 {
		return nil
	}
	for _, r := range inclusion {
		ext := NormalizeExt(r.Ext)
		if ext != AnyExt && del.Protected(ext) {
			continue
		}
		if r.MinSize < del.threshold {
			return errors.NewError("rules", errors.ErrConflictingRules).
				WithMessage(fmt.Sprintf(
					"inclusion rule (%s, %d) admits unprotected files below the %d byte deletion threshold",
					ext, r.MinSize, del.threshold))
		}
	}
	return nil
}
