// Package resolver turns a parsed workflow document into an execution plan.
// It binds every step to its tool, replaces symbolic references with the
// producing step's output paths and records step dependencies. Steps are
// never reordered: declaration order is execution order.
package resolver
