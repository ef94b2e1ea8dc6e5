package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/fragment"
	"github.com/danmuck/canlat/internal/transform"
)

var (
	ErrReplyTimeout      = errors.New("exchange: reply timeout")
	ErrRequestTimeout    = errors.New("exchange: request timeout")
	ErrIntegrityMismatch = errors.New("exchange: integrity mismatch")
	ErrInvalidConfig     = errors.New("exchange: invalid config")
	ErrInvalidPhase      = errors.New("exchange: invalid phase")
)

const (
	DefaultRequestID uint32 = 0x100
	DefaultReplyID   uint32 = 0x101
	DefaultRounds           = 100
	DefaultWarmUp           = 1
)

// Config defines round identifiers, deadlines and phase defaults.
type Config struct {
	Node      string
	RequestID uint32
	ReplyID   uint32
	// Capacity is the payload bytes carried per frame.
	Capacity int
	// SendTimeout bounds queueing of a single frame.
	SendTimeout time.Duration
	// ReplyTimeout bounds the initiator wait for the reply frame.
	ReplyTimeout time.Duration
	// RequestTimeout bounds the responder wait for the first frame of a
	// round. Zero waits until the context is done.
	RequestTimeout time.Duration
	// FragmentTimeout bounds the wait between fragments of one artifact.
	FragmentTimeout time.Duration
	// PollInterval is the sleep between empty polls. Zero spins.
	PollInterval time.Duration
	// VerifyReply makes the initiator compare the echoed payload.
	VerifyReply bool
	Plaintext   []byte
	Rounds      int
	WarmUp      int
}

// ReferencePlaintext is the byte pattern 0..MaxPayload-1 used by every phase.
func ReferencePlaintext() []byte {
	out := make([]byte, bus.MaxPayload)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

// IntegrityErrorPayload is the reply sent when digest verification fails.
func IntegrityErrorPayload() []byte {
	out := make([]byte, bus.MaxPayload)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}

func DefaultConfig() Config {
	return Config{
		RequestID:       DefaultRequestID,
		ReplyID:         DefaultReplyID,
		Capacity:        bus.MaxPayload,
		SendTimeout:     time.Second,
		ReplyTimeout:    5 * time.Second,
		RequestTimeout:  0,
		FragmentTimeout: time.Second,
		PollInterval:    0,
		VerifyReply:     false,
		Plaintext:       ReferencePlaintext(),
		Rounds:          DefaultRounds,
		WarmUp:          DefaultWarmUp,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.RequestID == 0 {
		c.RequestID = d.RequestID
	}
	if c.ReplyID == 0 {
		c.ReplyID = d.ReplyID
	}
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.ReplyTimeout < 0 {
		c.ReplyTimeout = 0
	}
	if c.FragmentTimeout <= 0 {
		c.FragmentTimeout = d.FragmentTimeout
	}
	if len(c.Plaintext) == 0 {
		c.Plaintext = d.Plaintext
	}
	if c.Rounds <= 0 {
		c.Rounds = d.Rounds
	}
	if c.WarmUp < 0 {
		c.WarmUp = 0
	}
	return c
}

func (c Config) Validate() error {
	if c.RequestID == c.ReplyID {
		return fmt.Errorf("%w: request and reply ids are both %#x", ErrInvalidConfig, c.RequestID)
	}
	if c.Capacity <= 0 || c.Capacity > bus.MaxPayload {
		return fmt.Errorf("%w: capacity %d outside 1..%d", ErrInvalidConfig, c.Capacity, bus.MaxPayload)
	}
	if len(c.Plaintext) != bus.MaxPayload {
		return fmt.Errorf("%w: plaintext must be %d bytes, got %d", ErrInvalidConfig, bus.MaxPayload, len(c.Plaintext))
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("%w: rounds %d", ErrInvalidConfig, c.Rounds)
	}
	return nil
}

// planFor uses the fixed per-kind table at full frame capacity and a
// uniform split otherwise.
func (c Config) planFor(kind transform.Kind) (fragment.Plan, error) {
	if c.Capacity == bus.MaxPayload {
		return fragment.PlanFor(kind)
	}
	return fragment.UniformPlan(kind.DeclaredLength(), c.Capacity)
}
