package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/canlat/internal/testutil/testlog"
)

func TestPipePreservesSendOrder(t *testing.T) {
	testlog.Start(t)

	a, b := Pipe(0)
	defer a.Close()
	defer b.Close()

	for i := 0; i < 10; i++ {
		f, _ := NewFrame(0x100, []byte{byte(i)})
		if err := a.Send(f, time.Second); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		f, ok := b.TryReceive()
		if !ok {
			t.Fatalf("expected frame %d", i)
		}
		if f.Payload()[0] != byte(i) {
			t.Fatalf("order violated at %d: got %d", i, f.Payload()[0])
		}
	}
	if _, ok := b.TryReceive(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestPipeSendTimesOutWhenFull(t *testing.T) {
	a, b := Pipe(1)
	defer a.Close()
	defer b.Close()

	f, _ := NewFrame(0x100, nil)
	if err := a.Send(f, 10*time.Millisecond); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := a.Send(f, 10*time.Millisecond); !errors.Is(err, ErrTransportTimeout) {
		t.Fatalf("expected ErrTransportTimeout, got %v", err)
	}
}

func TestPipeFilterDropsForeignFrames(t *testing.T) {
	a, b := Pipe(0)
	b.SetFilter(ExactFilter(0x100, false))

	other, _ := NewFrame(0x200, []byte{9})
	want, _ := NewFrame(0x100, []byte{1})
	_ = a.Send(other, time.Second)
	_ = a.Send(want, time.Second)

	f, ok := b.TryReceive()
	if !ok || f.ID != 0x100 {
		t.Fatalf("expected filtered frame 0x100, got ok=%v frame=%+v", ok, f)
	}
}

func TestPipeSendAfterClose(t *testing.T) {
	a, _ := Pipe(0)
	_ = a.Close()
	f, _ := NewFrame(0x100, nil)
	if err := a.Send(f, time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestUDPTransportLoopback(t *testing.T) {
	testlog.Start(t)

	a, err := ListenUDP("127.0.0.1:0", "127.0.0.1:9", Filter{})
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0", a.LocalAddr().String(), ExactFilter(0x101, false))
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}
	defer b.Close()
	if err := a.SetPeer(b.LocalAddr().String()); err != nil {
		t.Fatalf("set peer: %v", err)
	}

	f, _ := NewFrame(0x101, []byte{0xDE, 0xAD})
	if err := a.Send(f, time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := b.TryReceive(); ok {
			if got.ID != 0x101 || got.Len != 2 {
				t.Fatalf("unexpected frame: %+v", got)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("frame not received over udp")
}

func TestBringUpRetriesUntilOpen(t *testing.T) {
	testlog.Start(t)

	attempts := 0
	a, _ := Pipe(0)
	open := func() (Transport, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("driver install failed")
		}
		return a, nil
	}
	cfg := RetryConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	tr, err := BringUp(context.Background(), open, cfg)
	if err != nil {
		t.Fatalf("bring up: %v", err)
	}
	if tr != Transport(a) || attempts != 3 {
		t.Fatalf("unexpected result: attempts=%d", attempts)
	}
}

func TestBringUpStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	open := func() (Transport, error) { return nil, errors.New("no controller") }
	if _, err := BringUp(ctx, open, DefaultRetryConfig()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNextRetryDelay(t *testing.T) {
	fixed := DefaultRetryConfig()
	for attempt := 1; attempt <= 5; attempt++ {
		if d := NextRetryDelay(fixed, attempt); d != 100*time.Millisecond {
			t.Fatalf("attempt %d: expected fixed 100ms, got %v", attempt, d)
		}
	}
	grow := RetryConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 2, MaxDelay: 50 * time.Millisecond}
	if d := NextRetryDelay(grow, 3); d != 40*time.Millisecond {
		t.Fatalf("expected 40ms, got %v", d)
	}
	if d := NextRetryDelay(grow, 6); d != 50*time.Millisecond {
		t.Fatalf("expected cap 50ms, got %v", d)
	}
	shrink := RetryConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 0.5}
	if d := NextRetryDelay(shrink, 4); d != 10*time.Millisecond {
		t.Fatalf("multiplier below 1 should hold the initial delay, got %v", d)
	}
	if d := NextRetryDelay(RetryConfig{Multiplier: 2}, 3); d != 0 {
		t.Fatalf("zero initial delay should stay zero, got %v", d)
	}
}
