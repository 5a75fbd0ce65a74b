package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/report"
)

func addSyncFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.SortFlags = false
	flags.String("base", "", "directory roots are resolved against (default \".\")")
	flags.String("preset", "", "named preset: cleanup or cdn")
	flags.StringArray("root", nil, "root directory as path[:priority]; repeatable, earlier roots win")
	flags.StringArray("include", nil, "inclusion rule as ext:min_size, e.g. jpg:500KiB; repeatable")
	flags.StringArray("exclude", nil, "doublestar pattern excluded from scanning; repeatable")
	flags.StringArray("strip-prefix", nil, "path prefix removed when deriving keys; repeatable")
	flags.StringArray("deprecated-prefix", nil, "remote prefix whose objects are deleted; repeatable")
	flags.String("small-file-threshold", "", "delete remote objects smaller than this, e.g. 100KiB")
	flags.String("key-prefix", "", "prefix for every key; must end with /")
	flags.String("ignore-file", "", "gitignore-style exclude file under the base")
	flags.String("digest", "", "content digest: md5 or sha256")
	flags.Bool("checksum-compare", false, "also upload when the remote ETag differs from the local MD5")
	flags.Int("concurrency", 0, "parallel uploads (default 10)")
	flags.Int("delete-batch-size", 0, "keys per delete request, 1 to 1000")
	flags.String("cache-control", "", "Cache-Control header for uploads")
	flags.Bool("public-read", true, "upload objects with a public-read ACL")
	flags.String("public-base-url", "", "base URL used in the upload mapping")
	flags.String("summary-file", "", "write the JSON run report to this file")
	flags.String("mapping-file", "", "write the local path to URL mapping to this file")
	flags.String("failed-file", "", "write failed uploads to this file")
	flags.String("metrics-file", "", "write Prometheus metrics in textfile format to this file")
	flags.String("lock-file", "", "hold an exclusive lock on this file for the run")
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload new and changed assets and delete orphaned objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, false)
		},
	}
	addSyncFlags(cmd)
	return cmd
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what sync would do without changing the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, true)
		},
	}
	addSyncFlags(cmd)
	cmd.Flags().Bool("json", false, "print the plan as JSON")
	return cmd
}

func runSync(cmd *cobra.Command, dryRun bool) error {
	ctx := cmd.Context()

	a, err := loadApp(cmd, true)
	if err != nil {
		return err
	}

	if path := a.cfg.Output.LockFile; path != "" && !dryRun {
		lock := flock.New(path)
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", path, err)
		}
		if !locked {
			return fmt.Errorf("another sync holds %s", path)
		}
		defer func() { _ = lock.Unlock() }()
	}

	opts, err := a.cfg.SyncOptions()
	if err != nil {
		return err
	}

	client, err := newClient(ctx, a)
	if err != nil {
		return err
	}

	var result *assetsync.Result
	if dryRun {
		result, err = client.Plan(ctx, opts...)
	} else {
		result, err = client.Sync(ctx, opts...)
	}
	if err != nil {
		return err
	}

	baseURL := report.BaseURL(a.cfg.Store.PublicBaseURL, client.Endpoint(), client.Bucket())
	if err := writeArtifacts(a, result, baseURL); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return report.Encode(out, report.New(result.Summary, result.Plan, nil, baseURL))
		}
		printPlan(out, result.Plan)
	}
	printSummary(out, &result.Summary)

	if !result.Summary.Healthy() {
		return &exitError{code: 2, msg: fmt.Sprintf("%d operations failed", result.Summary.Failed())}
	}
	return nil
}

func writeArtifacts(a *app, result *assetsync.Result, baseURL string) error {
	out := a.cfg.Output

	if out.SummaryFile != "" {
		r := report.New(result.Summary, result.Plan, result.Uploads, baseURL)
		if err := report.WriteFile(out.SummaryFile, r); err != nil {
			return err
		}
	}
	if result.Uploads != nil && (out.MappingFile != "" || out.FailedFile != "") {
		mapping := report.NewMapping(result.Uploads, baseURL)
		if out.MappingFile != "" {
			if err := report.WriteFile(out.MappingFile, mapping.Uploaded); err != nil {
				return err
			}
		}
		if out.FailedFile != "" && len(mapping.Failed) > 0 {
			if err := report.WriteFile(out.FailedFile, mapping.Failed); err != nil {
				return err
			}
		}
	}
	if out.MetricsFile != "" && a.registry != nil {
		if err := metrics.WriteTextfile(a.registry, out.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

func printPlan(w io.Writer, plan *assettypes.Plan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ops := range [][]assettypes.Operation{plan.Uploads, plan.Deletes} {
		for _, op := range ops {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Type, op.Key, humanize.IBytes(uint64(op.Size)), op.Reason)
		}
	}
	_ = tw.Flush()
}

func printSummary(w io.Writer, s *assettypes.Summary) {
	mode := "sync"
	if s.DryRun {
		mode = "plan"
	}
	fmt.Fprintf(w, "%s %s finished in %s\n", mode, s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  scanned:    %d (%d unreadable)\n", s.Scanned, s.ScanErrors)
	fmt.Fprintf(w, "  duplicates: %d excluded in %d groups, %s saved\n",
		s.DuplicatesExcluded, s.DuplicateGroups, humanize.IBytes(uint64(s.DuplicateBytes)))
	fmt.Fprintf(w, "  remote:     %d objects\n", s.RemoteObjects)
	fmt.Fprintf(w, "  planned:    %d uploads, %d deletes, %d skipped\n", s.PlannedUploads, s.PlannedDeletes, s.Skipped)
	if s.DryRun {
		return
	}
	fmt.Fprintf(w, "  uploaded:   %d (%s), %d failed\n",
		s.Uploaded, humanize.IBytes(uint64(s.BytesTransferred)), s.UploadsFailed)
	fmt.Fprintf(w, "  deleted:    %d, %d failed\n", s.Deleted, s.DeletesFailed)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  failed %s %s: %s\n", f.Op, f.Key, f.Code)
	}
}
