// Package cohort persists and serves behavioral cohort generations.
//
// A discovery run produces one complete generation: 3-5 cohorts that
// partition the eligible population, each with an archetype label and a
// centroid. Generations are replaced wholesale; cohort ids are not stable
// across runs, and downstream callers holding a cohort id must expect it to
// be reassigned by the next discovery.
//
// The file store writes a generation to a temporary file and renames it
// into place, so a failed write leaves the previous generation intact and
// readers never observe a partial document. The TTL cache in front of the
// store absorbs read traffic from personalization callers; when the store
// is unavailable the cache reports entries as absent instead of
// propagating the error, and callers degrade to non-personalized behavior.
//
// Discovery itself is a synchronous batch operation. The package does not
// serialize concurrent discovery runs against one store; callers own the
// single-flight contract.
package cohort
