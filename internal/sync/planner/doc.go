// Package planner diffs canonical assets against the remote inventory and
// produces a plan whose upload and delete sets are disjoint.
//
// Planning is pure computation over already-fetched data. The only error it
// reports is a rule configuration whose combined effect is undefined.
package planner
