// Package roi tracks outcome quality per cohort over time.
//
// Every completed workflow outcome appends one immutable record to a JSONL
// log: raw metrics plus derived ones (cost per capability, ROI multiplier,
// and ROI achieved relative to the cohort archetype's fixed baseline).
// Records are never mutated or deleted; appends are serialized in-process
// so lines cannot interleave.
//
// Trajectory queries read the log back, skipping malformed lines, and
// report a trend direction per cohort: improving, degrading, or stable,
// with a 2% noise threshold separating signal from jitter. A missing log
// is simply no history, not an error.
//
// The log grows without bound. Retention and compaction are deliberately
// left to deployment tooling.
package roi
