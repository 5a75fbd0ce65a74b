// Package sync provides the main sync orchestration logic.
//
// A run is a single linear pipeline: scan, resolve duplicates, list the
// remote inventory, plan, then execute unless the run is a dry run.
package sync
