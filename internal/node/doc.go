// Package node runs one benchmark role as a process.
//
// Ownership boundary:
// - key loading and transform registry construction
// - bus bring-up and teardown
// - role engine, optional admin listener and report output
package node
