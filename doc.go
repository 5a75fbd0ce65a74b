// Package assetsync synchronizes local static asset trees into an
// S3-compatible bucket (AWS S3, Cloudflare R2, MinIO) by content address.
//
// A sync run scans the configured roots, keeps files admitted by the
// inclusion rules, collapses byte-identical files to one canonical copy per
// digest, lists the remote bucket, and plans uploads for new or changed keys
// and deletes for orphaned ones. The plan is then executed with a bounded
// upload pool and batched deletes. Running the same sync twice against an
// unchanged tree produces an empty plan.
//
// Key features:
//   - Priority-ordered roots with deterministic duplicate resolution
//   - Size-gated inclusion rules per file extension
//   - Deprecated-prefix and small-file deletion rules with protected extensions
//   - Dry runs that return the plan without touching the bucket
//   - Per-operation failure reporting; one failed upload never aborts the run
//   - Optional Prometheus metrics
//
// Example usage:
//
//	client, err := assetsync.New(ctx,
//	    assetsync.WithBucket("site-assets"),
//	    assetsync.WithEndpoint("https://<account>.r2.cloudflarestorage.com"),
//	    assetsync.WithCredentials(accessKey, secretKey),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.Sync(ctx,
//	    assetsync.WithRoots(
//	        assettypes.Root{Path: "static", Priority: 0},
//	        assettypes.Root{Path: "public", Priority: 1},
//	    ),
//	    assetsync.WithStripPrefixes("static/", "public/"),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("uploaded %d, deleted %d\n", result.Summary.Uploaded, result.Summary.Deleted)
package assetsync
