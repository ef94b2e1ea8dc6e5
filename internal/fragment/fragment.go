package fragment

import (
	"fmt"

	"github.com/danmuck/canlat/internal/bus"
)

// Fragment slices artifact into plan.Frames frames addressed to id.
func Fragment(id uint32, artifact []byte, plan Plan) ([]bus.Frame, error) {
	if len(artifact) != plan.Length {
		return nil, fmt.Errorf("%w: artifact %d bytes, plan %d", ErrLengthMismatch, len(artifact), plan.Length)
	}
	if plan.Frames == 0 {
		return nil, nil
	}
	frames := make([]bus.Frame, 0, plan.Frames)
	off := 0
	for i := 0; i < plan.Frames; i++ {
		n := plan.FrameLen(i)
		f, err := bus.NewFrame(id, artifact[off:off+n])
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
		off += n
	}
	return frames, nil
}

// Split fragments artifact with a uniform plan over capacity-byte frames.
func Split(id uint32, artifact []byte, capacity int) ([]bus.Frame, error) {
	plan, err := UniformPlan(len(artifact), capacity)
	if err != nil {
		return nil, err
	}
	return Fragment(id, artifact, plan)
}

// Reassemble concatenates frames in the order given.
func Reassemble(frames []bus.Frame, plan Plan) ([]byte, error) {
	r := NewReassembler(plan)
	for _, f := range frames {
		if _, err := r.Add(f); err != nil {
			return nil, err
		}
	}
	return r.Bytes()
}

// Reassembler accumulates fragments for one artifact as they arrive.
type Reassembler struct {
	plan Plan
	buf  []byte
	seen int
}

func NewReassembler(plan Plan) *Reassembler {
	return &Reassembler{plan: plan, buf: make([]byte, 0, plan.Length)}
}

// Add appends one fragment and reports whether the artifact is complete.
func (r *Reassembler) Add(f bus.Frame) (bool, error) {
	if r.seen >= r.plan.Frames {
		return true, fmt.Errorf("%w: fragment %d beyond %d", ErrLengthMismatch, r.seen+1, r.plan.Frames)
	}
	if want := r.plan.FrameLen(r.seen); int(f.Len) != want {
		return false, fmt.Errorf("%w: fragment %d has %d bytes, want %d", ErrLengthMismatch, r.seen, f.Len, want)
	}
	r.buf = append(r.buf, f.Data[:f.Len]...)
	r.seen++
	return r.Done(), nil
}

func (r *Reassembler) Done() bool {
	return r.seen == r.plan.Frames
}

// Remaining is the number of fragments still expected.
func (r *Reassembler) Remaining() int {
	return r.plan.Frames - r.seen
}

// Bytes returns the artifact once every fragment has arrived.
func (r *Reassembler) Bytes() ([]byte, error) {
	if len(r.buf) != r.plan.Length {
		return nil, fmt.Errorf("%w: received %d bytes, want %d", ErrLengthMismatch, len(r.buf), r.plan.Length)
	}
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out, nil
}
