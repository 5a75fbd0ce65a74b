// Package internal contains private implementation details for the assetsync module.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - sync: the scan, dedup, inventory, plan and execute pipeline
//   - store: the remote object store contract and its backends
//   - rules: inclusion and deletion rule evaluation
//   - validation: input validation logic
//   - pool: memory management optimizations
package internal
