package bus

import (
	"errors"
	"time"
)

var (
	ErrTransportTimeout = errors.New("bus: transport timeout")
	ErrClosed           = errors.New("bus: transport closed")
)

// Transport moves single frames. TryReceive never blocks.
type Transport interface {
	Send(f Frame, timeout time.Duration) error
	TryReceive() (Frame, bool)
	Close() error
}
