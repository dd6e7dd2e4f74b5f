// Package traits converts raw user interaction history into normalized
// behavioral trait vectors.
//
// Each eligible user is reduced to a five-dimensional TraitVector with every
// dimension in [0,1]:
//   - learning velocity: rate of distinct new-capability adoption
//   - domain affinity: concentration of activity in the dominant domain
//   - interaction frequency: sessions/messages per time window
//   - feedback responsiveness: share of suggestions acted upon in time
//   - retention strength: re-use of previously adopted capabilities
//
// Users with fewer interactions than the configured minimum are excluded
// from extraction and reported via a skip list. They are never assigned
// fabricated default values; downstream clustering only ever sees vectors
// built from real history.
package traits
