// Package runner drives a workflow from validation to a finished run report.
// Steps run one at a time in declaration order; a failed required step stops
// the run and the steps after it are reported as skipped.
package runner
