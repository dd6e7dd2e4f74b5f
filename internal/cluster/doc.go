// Package cluster groups trait vectors into behavioral cohorts with
// weighted k-means.
//
// The engine runs the full algorithm once per candidate cluster count in the
// configured [MinK, MaxK] range, scores each candidate partition by average
// intra-cluster distance normalized by k, and keeps the best one. Centroids
// are seeded with k-means++ so initial placement spreads across the
// population instead of collapsing into dense regions.
//
// Initialization is randomized. Tests pass a fixed Seed to make runs
// reproducible; production leaves Seed zero and gets time-derived
// randomness. Hitting the iteration cap without convergence is not an
// error: the best assignment found so far is returned.
package cluster
