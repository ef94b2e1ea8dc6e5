// Package fragment maps artifacts onto fixed-width bus frames and back.
//
// Fragments carry no sequence numbers or length prefix. Both peers derive
// the frame count and final fragment size from the artifact kind, and the
// receiver concatenates fragments in arrival order.
package fragment

import (
	"errors"
	"fmt"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/transform"
)

var (
	ErrInvalidPlan    = errors.New("fragment: invalid plan")
	ErrLengthMismatch = errors.New("fragment: sequence length mismatch")
	ErrUnknownKind    = errors.New("fragment: no plan for artifact kind")
)

// Plan is the framing layout for one artifact length.
type Plan struct {
	Length   int
	Capacity int
	Frames   int
	// Tail is the payload length of the final frame.
	Tail int
}

// NewPlan validates an explicit layout. A zero length yields an empty plan.
func NewPlan(length, capacity, tail int) (Plan, error) {
	if capacity <= 0 || capacity > bus.MaxPayload {
		return Plan{}, fmt.Errorf("%w: capacity %d", ErrInvalidPlan, capacity)
	}
	if length < 0 {
		return Plan{}, fmt.Errorf("%w: length %d", ErrInvalidPlan, length)
	}
	if length == 0 {
		return Plan{Capacity: capacity}, nil
	}
	if tail <= 0 || tail > capacity {
		return Plan{}, fmt.Errorf("%w: tail %d for capacity %d", ErrInvalidPlan, tail, capacity)
	}
	frames := (length + capacity - 1) / capacity
	if (frames-1)*capacity+tail != length {
		return Plan{}, fmt.Errorf("%w: %d frames with tail %d do not cover %d bytes", ErrInvalidPlan, frames, tail, length)
	}
	return Plan{Length: length, Capacity: capacity, Frames: frames, Tail: tail}, nil
}

// UniformPlan is plain ceiling division: the tail is length mod capacity,
// or a full frame when the length divides evenly.
func UniformPlan(length, capacity int) (Plan, error) {
	if capacity <= 0 {
		return Plan{}, fmt.Errorf("%w: capacity %d", ErrInvalidPlan, capacity)
	}
	tail := length % capacity
	if tail == 0 {
		tail = capacity
	}
	return NewPlan(length, capacity, tail)
}

// FrameLen returns the payload length of frame i.
func (p Plan) FrameLen(i int) int {
	if i < 0 || i >= p.Frames {
		return 0
	}
	if i == p.Frames-1 {
		return p.Tail
	}
	return p.Capacity
}

type tableEntry struct {
	length int
	tail   int
}

// kindTable lists the final fragment size per artifact kind on an 8-byte
// bus. SHA-1 and SHA-224 leave a 4-byte tail; everything else fills its
// last frame.
var kindTable = map[transform.Kind]tableEntry{
	transform.Plaintext:     {8, 8},
	transform.CipherAES128:  {16, 8},
	transform.CipherAES256:  {16, 8},
	transform.DigestMD5:     {16, 8},
	transform.DigestSHA1:    {20, 4},
	transform.DigestSHA224:  {28, 4},
	transform.DigestSHA256:  {32, 8},
	transform.DigestSHA384:  {48, 8},
	transform.DigestSHA512:  {64, 8},
	transform.CipherRSA2048: {256, 8},
	transform.CipherRSA3072: {384, 8},
	transform.CipherRSA4096: {512, 8},
}

// PlanFor returns the table layout for kind on a full-width bus.
func PlanFor(kind transform.Kind) (Plan, error) {
	e, ok := kindTable[kind]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return NewPlan(e.length, bus.MaxPayload, e.tail)
}
