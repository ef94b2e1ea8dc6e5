package exchange

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/rs/zerolog"
)

var errWaitExpired = errors.New("exchange: wait expired")

// waitFrame polls t until a frame with id arrives, timeout elapses, or ctx
// is done. Frames with other ids are discarded. A zero timeout is bounded
// by ctx only.
func waitFrame(ctx context.Context, t bus.Transport, id uint32, timeout, poll time.Duration, logger zerolog.Logger) (bus.Frame, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if f, ok := t.TryReceive(); ok {
			if f.ID == id {
				return f, nil
			}
			logger.Trace().Uint32("id", f.ID).Uint32("want", id).Msg("discarding unexpected frame")
			continue
		}
		if err := ctx.Err(); err != nil {
			return bus.Frame{}, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return bus.Frame{}, errWaitExpired
		}
		if poll > 0 {
			time.Sleep(poll)
		} else {
			runtime.Gosched()
		}
	}
}

func sendAll(t bus.Transport, frames []bus.Frame, timeout time.Duration) (int, error) {
	for i, f := range frames {
		if err := t.Send(f, timeout); err != nil {
			return i, err
		}
	}
	return len(frames), nil
}
