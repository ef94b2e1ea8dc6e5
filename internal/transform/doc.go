// Package transform owns the named byte transforms applied before transport.
//
// Ownership boundary:
// - artifact kinds and their declared lengths
// - transform registry
// - key material loading and derivation
//
// Transforms are black boxes to the exchange engine; only their declared
// input and output lengths matter for framing.
package transform
