// Package exchange owns the two-node round protocol.
//
// Ownership boundary:
// - phase list and per-mode round semantics
// - initiator and responder state machines
// - deadline-bounded frame waits
//
// Round order (one round in flight system-wide):
// - initiator: transform -> fragment -> send -> await reply
//
// - responder: await request -> reassemble -> verify or invert -> reply
//
// Both nodes walk the same phase list in lock-step. Artifact lengths are
// implied by the phase, never sent. There is no reset handshake; a node
// that restarts alone leaves its peer waiting until its deadline expires.
package exchange
