// Package bus owns the fixed-width frame transport between the two nodes.
//
// Ownership boundary:
// - frame shape and datagram encoding
// - acceptance filtering by identifier
// - in-memory and UDP transports
// - controller bring-up retry
//
// Delivery contract: one physical bus, frames arrive in send order and are
// never reordered or dropped by the transport itself. Nothing above this
// package carries sequence numbers.
package bus
