package latency

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/canlat/internal/testutil/testlog"
)

// stepClock advances by the next step on every call after the first.
type stepClock struct {
	t     time.Time
	steps []time.Duration
	calls int
}

func (c *stepClock) now() time.Time {
	if c.calls%2 == 1 {
		c.t = c.t.Add(c.steps[c.calls/2])
	}
	c.calls++
	return c.t
}

func TestSummaryMeanExcludesWarmUp(t *testing.T) {
	testlog.Start(t)

	durations := []time.Duration{
		9 * time.Millisecond, // warm-up
		1200 * time.Microsecond,
		1300 * time.Microsecond,
		1100 * time.Microsecond,
		1401 * time.Microsecond,
	}
	clock := &stepClock{t: time.Unix(0, 0), steps: durations}
	r, err := NewRecorder("sha256", 4, 1)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.WithClock(clock.now)

	for i := range durations {
		r.Start()
		res, err := r.Stop(i, OutcomeOK)
		if err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
		if res.Elapsed != durations[i] {
			t.Fatalf("round %d elapsed %v want %v", i, res.Elapsed, durations[i])
		}
	}

	s := r.Summary()
	if s.N() != 4 || s.Discarded != 1 {
		t.Fatalf("unexpected sample count: n=%d discarded=%d", s.N(), s.Discarded)
	}
	want := float64(1200+1300+1100+1401) / 4
	if s.MeanMicros != want {
		t.Fatalf("mean %v want %v", s.MeanMicros, want)
	}
	if s.Mean(ScaleMillis) != want/1000 {
		t.Fatalf("millisecond mean %v", s.Mean(ScaleMillis))
	}
	if len(r.Results()) != 5 {
		t.Fatalf("expected warm-up retained in results")
	}
}

func TestSummaryMeanKeepsSubMicrosecond(t *testing.T) {
	testlog.Start(t)

	r, err := NewRecorder("md5", 2, 0)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	for i, d := range []time.Duration{1500 * time.Nanosecond, 2500 * time.Nanosecond} {
		if err := r.Record(RoundResult{Index: i, Elapsed: d, Outcome: OutcomeOK}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if s := r.Summary(); s.MeanMicros != 2.0 {
		t.Fatalf("mean %v want 2", s.MeanMicros)
	}
}

func TestRecordRejectsOverflow(t *testing.T) {
	r, _ := NewRecorder("md5", 2, 0)
	for i := 0; i < 2; i++ {
		if err := r.Record(RoundResult{Index: i, Elapsed: time.Millisecond, Outcome: OutcomeOK}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := r.Record(RoundResult{Index: 2}); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
	if !r.Full() {
		t.Fatalf("expected full recorder")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r, _ := NewRecorder("md5", 1, 1)
	if _, err := r.Stop(0, OutcomeOK); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestNewRecorderValidates(t *testing.T) {
	if _, err := NewRecorder("x", 0, 1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewRecorder("x", 1, -1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSummaryBeforeWarmUpCompletes(t *testing.T) {
	r, _ := NewRecorder("x", 3, 1)
	_ = r.Record(RoundResult{Index: 0, Elapsed: time.Second})
	s := r.Summary()
	if s.N() != 0 || s.MeanMicros != 0 || s.Discarded != 1 {
		t.Fatalf("unexpected partial summary: %+v", s)
	}
}

func TestParseScale(t *testing.T) {
	if s, err := ParseScale("MS"); err != nil || s != ScaleMillis {
		t.Fatalf("parse ms: %v %v", s, err)
	}
	if s, err := ParseScale(""); err != nil || s != ScaleMicros {
		t.Fatalf("parse default: %v %v", s, err)
	}
	if _, err := ParseScale("ns"); !errors.Is(err, ErrInvalidScale) {
		t.Fatalf("expected ErrInvalidScale, got %v", err)
	}
}
