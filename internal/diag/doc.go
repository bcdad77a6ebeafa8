// Package diag carries diagnostics across the lowering pipeline.
//
// Stages never print: they report into a Bag (via a Reporter) and the caller
// decides what to do with the result. Fatal structural failures are returned
// as errors instead; the bag holds the recoverable per-operation findings, such
// as an unresolvable pointer decomposition or an access the lowering refused.
package diag
