// Package dedup groups scanned assets by content digest and selects one
// canonical asset per group.
package dedup

import (
	"sort"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
)

// Result is the outcome of resolving duplicates.
type Result struct {
	// Canonical maps digest to the asset chosen for upload
	Canonical map[string]assettypes.Asset

	// Groups holds every digest with more than one member, sorted by digest
	Groups []assettypes.DuplicateGroup
}

// Assets returns the canonical assets sorted by digest.
func (r *Result) Assets() []assettypes.Asset {
	digests := make([]string, 0, len(r.Canonical))
	for d := range r.Canonical {
		digests = append(digests, d)
	}
	sort.Strings(digests)

	assets := make([]assettypes.Asset, 0, len(digests))
	for _, d := range digests {
		assets = append(assets, r.Canonical[d])
	}
	return assets
}

// Excluded returns the number of assets dropped as duplicates.
func (r *Result) Excluded() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Excluded)
	}
	return n
}

// WastedBytes returns the bytes deduplication avoided transferring.
func (r *Result) WastedBytes() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.WastedBytes()
	}
	return total
}

// Less reports whether a takes precedence over b: lower priority rank first,
// then the lexicographically smaller relative path.
func Less(a, b assettypes.Asset) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.RelPath < b.RelPath
}

// Resolve groups assets by digest. The result does not depend on the order
// of assets.
func Resolve(assets []assettypes.Asset) *Result {
	byDigest := make(map[string][]assettypes.Asset)
	for _, a := range assets {
		byDigest[a.Digest] = append(byDigest[a.Digest], a)
	}

	result := &Result{Canonical: make(map[string]assettypes.Asset, len(byDigest))}
	for digest, members := range byDigest {
		sort.Slice(members, func(i, j int) bool { return Less(members[i], members[j]) })
		result.Canonical[digest] = members[0]

		if len(members) > 1 {
			result.Groups = append(result.Groups, assettypes.DuplicateGroup{
				Digest:    digest,
				Canonical: members[0],
				Excluded:  append([]assettypes.Asset(nil), members[1:]...),
			})
		}
	}

	sort.Slice(result.Groups, func(i, j int) bool {
		return result.Groups[i].Digest < result.Groups[j].Digest
	})
	return result
}
