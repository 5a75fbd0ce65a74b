// Package report renders run artifacts: the JSON summary, the upload
// mapping with public URLs, failed uploads and the duplicate audit.
package report

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
)

// UploadEntry maps a local file to its remote object.
type UploadEntry struct {
	LocalPath   string `json:"local_path"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Reason      string `json:"reason"`
	Error       string `json:"error,omitempty"`
}

// Mapping splits planned uploads into completed and failed entries.
type Mapping struct {
	Uploaded []UploadEntry `json:"uploaded"`
	Failed   []UploadEntry `json:"failed,omitempty"`
}

// DuplicateEntry is one duplicate group in audit form.
type DuplicateEntry struct {
	Digest      string   `json:"digest"`
	Canonical   string   `json:"canonical"`
	Excluded    []string `json:"excluded"`
	Size        int64    `json:"size"`
	WastedBytes int64    `json:"wasted_bytes"`
}

// Report is the full artifact written after a run.
type Report struct {
	Healthy    bool               `json:"healthy"`
	Summary    assettypes.Summary `json:"summary"`
	Duplicates []DuplicateEntry   `json:"duplicates,omitempty"`
	Plan       *PlanView          `json:"plan,omitempty"`
	Mapping    *Mapping           `json:"mapping,omitempty"`
}

// PlanView lists planned keys without local asset details.
type PlanView struct {
	Uploads []PlannedOperation `json:"uploads"`
	Deletes []PlannedOperation `json:"deletes"`
	Skips   []PlannedOperation `json:"skips,omitempty"`
}

// PlannedOperation is a single planned key.
type PlannedOperation struct {
	Key       string `json:"key"`
	LocalPath string `json:"local_path,omitempty"`
	Size      int64  `json:"size"`
	Reason    string `json:"reason"`
}

// New assembles the report of a run. uploads may be nil on a dry run.
func New(summary assettypes.Summary, plan *assettypes.Plan, uploads []assettypes.OperationResult, baseURL string) *Report {
	r := &Report{
		Healthy: summary.Healthy(),
		Summary: summary,
		Plan:    NewPlanView(plan),
	}
	if plan != nil {
		r.Duplicates = Duplicates(plan.Groups)
	}
	if uploads != nil {
		r.Mapping = NewMapping(uploads, baseURL)
	}
	return r
}

// PublicURL joins baseURL and key, escaping each key segment.
func PublicURL(baseURL, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segments, "/")
}

// BaseURL returns publicBase when set, otherwise endpoint/bucket.
func BaseURL(publicBase, endpoint, bucket string) string {
	if publicBase != "" {
		return strings.TrimRight(publicBase, "/")
	}
	if endpoint == "" {
		return "https://" + bucket + ".s3.amazonaws.com"
	}
	return strings.TrimRight(endpoint, "/") + "/" + bucket
}

// NewPlanView converts a plan for reporting.
func NewPlanView(plan *assettypes.Plan) *PlanView {
	if plan == nil {
		return nil
	}
	return &PlanView{
		Uploads: planned(plan.Uploads),
		Deletes: planned(plan.Deletes),
		Skips:   planned(plan.Skips),
	}
}

func planned(ops []assettypes.Operation) []PlannedOperation {
	out := make([]PlannedOperation, 0, len(ops))
	for _, op := range ops {
		p := PlannedOperation{Key: op.Key, Size: op.Size, Reason: op.Reason}
		if op.Asset != nil {
			p.LocalPath = op.Asset.RelPath
		}
		out = append(out, p)
	}
	return out
}

// NewMapping builds the upload mapping from upload results.
func NewMapping(results []assettypes.OperationResult, baseURL string) *Mapping {
	m := &Mapping{Uploaded: []UploadEntry{}}
	for _, res := range results {
		op := res.Operation
		entry := UploadEntry{
			Key:    op.Key,
			URL:    PublicURL(baseURL, op.Key),
			Size:   op.Size,
			Reason: op.Reason,
		}
		if op.Asset != nil {
			entry.LocalPath = op.Asset.RelPath
			entry.ContentType = op.Asset.ContentType
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
			m.Failed = append(m.Failed, entry)
			continue
		}
		m.Uploaded = append(m.Uploaded, entry)
	}
	return m
}

// Duplicates converts duplicate groups, largest waste first.
func Duplicates(groups []assettypes.DuplicateGroup) []DuplicateEntry {
	out := make([]DuplicateEntry, 0, len(groups))
	for _, g := range groups {
		excluded := make([]string, 0, len(g.Excluded))
		for _, a := range g.Excluded {
			excluded = append(excluded, a.RelPath)
		}
		out = append(out, DuplicateEntry{
			Digest:      g.Digest,
			Canonical:   g.Canonical.RelPath,
			Excluded:    excluded,
			Size:        g.Canonical.Size,
			WastedBytes: g.WastedBytes(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WastedBytes > out[j].WastedBytes })
	return out
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteFile writes v as indented JSON to path, creating parent directories.
func WriteFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
