package planner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/rules"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/dedup"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/inventory"
)

// singlePartETag matches the ETag of an object uploaded in one part, which
// is the hex MD5 of its content.
var singlePartETag = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// Config holds the key mapping and comparison settings.
type Config struct {
	InclusionRules  []assettypes.InclusionRule
	DeletionRules   assettypes.DeletionRules
	KeyPrefix       string
	StripPrefixes   []string
	Digest          assettypes.DigestAlgorithm
	ChecksumCompare bool
}

// Planner creates sync plans.
type Planner struct {
	cfg      Config
	deletion *rules.Deletion
}

// New validates the rule configuration and creates a planner.
func New(cfg Config) (*Planner, error) {
	if err := rules.CheckConflicts(cfg.InclusionRules, cfg.DeletionRules, cfg.KeyPrefix); err != nil {
		return nil, err
	}
	deletion, err := rules.NewDeletion(cfg.DeletionRules)
	if err != nil {
		return nil, err
	}
	if cfg.Digest == "" {
		cfg.Digest = assettypes.DigestMD5
	}
	return &Planner{cfg: cfg, deletion: deletion}, nil
}

// Key derives the remote key for a relative path: the first matching strip
// prefix is removed and the key prefix is prepended.
func (p *Planner) Key(relPath string) string {
	for _, prefix := range p.cfg.StripPrefixes {
		if strings.HasPrefix(relPath, prefix) {
			relPath = strings.TrimPrefix(relPath, prefix)
			break
		}
	}
	return p.cfg.KeyPrefix + relPath
}

// Plan diffs canonical assets against inv. groups are carried into the plan
// for reporting.
func (p *Planner) Plan(
	canonical []assettypes.Asset,
	inv *inventory.Inventory,
	groups []assettypes.DuplicateGroup,
) (*assettypes.Plan, error) {
	ordered := append([]assettypes.Asset(nil), canonical...)
	sort.Slice(ordered, func(i, j int) bool { return dedup.Less(ordered[i], ordered[j]) })

	plan := &assettypes.Plan{Groups: groups}
	claimed := mapset.NewThreadUnsafeSetWithSize[string](len(ordered))
	uploadKeys := mapset.NewThreadUnsafeSet[string]()

	for i := range ordered {
		asset := &ordered[i]
		key := p.Key(asset.RelPath)

		if claimed.Contains(key) {
			plan.Skips = append(plan.Skips, skip(key, asset, assettypes.ReasonKeyCollision))
			continue
		}
		claimed.Add(key)

		if p.deletion.DeprecatedPrefix(key) {
			plan.Skips = append(plan.Skips, skip(key, asset, assettypes.ReasonDeprecatedPrefix))
			continue
		}

		reason, upload := p.compare(asset, key, inv)
		if !upload {
			plan.Skips = append(plan.Skips, skip(key, asset, reason))
			continue
		}

		uploadKeys.Add(key)
		plan.Uploads = append(plan.Uploads, assettypes.Operation{
			Type:   assettypes.OperationUpload,
			Key:    key,
			Asset:  asset,
			Size:   asset.Size,
			Reason: reason,
		})
	}

	for _, obj := range inv.Objects {
		reason, orphan := p.deletion.Match(obj)
		if !orphan || uploadKeys.Contains(obj.Key) {
			continue
		}
		plan.Deletes = append(plan.Deletes, assettypes.Operation{
			Type:   assettypes.OperationDelete,
			Key:    obj.Key,
			Size:   obj.Size,
			Reason: reason,
		})
	}

	sort.Slice(plan.Uploads, func(i, j int) bool { return plan.Uploads[i].Key < plan.Uploads[j].Key })
	sort.Slice(plan.Deletes, func(i, j int) bool { return plan.Deletes[i].Key < plan.Deletes[j].Key })

	return plan, nil
}

// compare decides whether asset must be uploaded to key.
func (p *Planner) compare(asset *assettypes.Asset, key string, inv *inventory.Inventory) (string, bool) {
	remote, exists := inv.Get(key)
	if !exists {
		return assettypes.ReasonMissing, true
	}
	if remote.Size != asset.Size {
		return assettypes.ReasonSizeChanged, true
	}
	if p.cfg.ChecksumCompare && p.cfg.Digest == assettypes.DigestMD5 &&
		singlePartETag.MatchString(remote.ETag) && !strings.EqualFold(remote.ETag, asset.Digest) {
		return assettypes.ReasonChecksumChanged, true
	}
	return assettypes.ReasonUnchanged, false
}

func skip(key string, asset *assettypes.Asset, reason string) assettypes.Operation {
	return assettypes.Operation{
		Type:   assettypes.OperationSkip,
		Key:    key,
		Asset:  asset,
		Size:   asset.Size,
		Reason: reason,
	}
}

// OperationStats contains statistics about planned operations.
type OperationStats struct {
	// Number of files to upload
	Uploads int

	// Number of keys to delete
	Deletes int

	// Number of canonical assets skipped
	Skips int

	// Total bytes to upload
	BytesToUpload int64

	// Total bytes to delete
	BytesToDelete int64

	// SkipReasons counts skips by reason
	SkipReasons map[string]int

	// DeleteReasons counts deletes by reason
	DeleteReasons map[string]int
}

// GetOperationStats returns statistics about a plan.
func GetOperationStats(plan *assettypes.Plan) OperationStats {
	stats := OperationStats{
		Uploads:       len(plan.Uploads),
		Deletes:       len(plan.Deletes),
		Skips:         len(plan.Skips),
		SkipReasons:   make(map[string]int),
		DeleteReasons: make(map[string]int),
	}
	for _, op := range plan.Uploads {
		stats.BytesToUpload += op.Size
	}
	for _, op := range plan.Deletes {
		stats.BytesToDelete += op.Size
		stats.DeleteReasons[op.Reason]++
	}
	for _, op := range plan.Skips {
		stats.SkipReasons[op.Reason]++
	}
	return stats
}

// ValidatePlan checks that a plan is executable: every upload carries an
// asset, no key is uploaded twice and no key is both uploaded and deleted.
func ValidatePlan(plan *assettypes.Plan) error {
	if plan == nil {
		return errors.NewError("validatePlan", errors.ErrPlanConflict).
			WithMessage("plan is nil")
	}

	uploads := mapset.NewThreadUnsafeSetWithSize[string](len(plan.Uploads))
	for _, op := range plan.Uploads {
		if op.Asset == nil {
			return errors.NewError("validatePlan", errors.ErrPlanConflict).
				WithKey(op.Key).
				WithMessage("upload has no local asset")
		}
		if !uploads.Add(op.Key) {
			return errors.NewError("validatePlan", errors.ErrPlanConflict).
				WithKey(op.Key).
				WithMessage("key uploaded more than once")
		}
	}

	deletes := mapset.NewThreadUnsafeSetWithSize[string](len(plan.Deletes))
	for _, op := range plan.Deletes {
		deletes.Add(op.Key)
	}

	if overlap := uploads.Intersect(deletes); overlap.Cardinality() > 0 {
		keys := overlap.ToSlice()
		sort.Strings(keys)
		return errors.NewError("validatePlan", errors.ErrPlanConflict).
			WithMessage(fmt.Sprintf("conflicting operations: %d keys both uploaded and deleted (first: %s)",
				len(keys), keys[0]))
	}

	return nil
}
