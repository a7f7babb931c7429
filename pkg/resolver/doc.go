// Package resolver settles a request's availability-zone constraint and
// expands affinity hints into mandatory filters before the configured
// filter chain runs. Zone sources are consulted in a fixed priority
// order: consistency group, explicit request parameter, source
// snapshot/volume, volume-type restriction list, configured default.
// Contradictory sources fail fast with SpecificationConflict instead of
// silently picking one.
package resolver
