package bus

import (
	"sync"
	"time"
)

const DefaultPipeDepth = 64

// PipeEnd is one side of an in-memory bus segment.
type PipeEnd struct {
	in     chan Frame
	out    chan Frame
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	filter Filter
}

var _ Transport = (*PipeEnd)(nil)

// Pipe returns two connected endpoints. Frames sent on one are received on
// the other in send order. depth <= 0 selects DefaultPipeDepth.
func Pipe(depth int) (*PipeEnd, *PipeEnd) {
	if depth <= 0 {
		depth = DefaultPipeDepth
	}
	ab := make(chan Frame, depth)
	ba := make(chan Frame, depth)
	a := &PipeEnd{in: ba, out: ab, done: make(chan struct{})}
	b := &PipeEnd{in: ab, out: ba, done: make(chan struct{})}
	return a, b
}

// SetFilter installs an acceptance filter; rejected frames are discarded on receive.
func (p *PipeEnd) SetFilter(f Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = f
}

func (p *PipeEnd) Send(f Frame, timeout time.Duration) error {
	if err := f.Validate(); err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- f:
		return nil
	default:
	}
	if timeout <= 0 {
		return ErrTransportTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p.out <- f:
		return nil
	case <-timer.C:
		return ErrTransportTimeout
	case <-p.done:
		return ErrClosed
	}
}

func (p *PipeEnd) TryReceive() (Frame, bool) {
	p.mu.RLock()
	filter := p.filter
	p.mu.RUnlock()
	for {
		select {
		case f := <-p.in:
			if filter.Accepts(f.ID) {
				return f, true
			}
		default:
			return Frame{}, false
		}
	}
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
