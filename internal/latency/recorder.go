// Package latency owns round timing for the initiator.
package latency

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrBufferFull    = errors.New("latency: sample buffer full")
	ErrNotStarted    = errors.New("latency: round not started")
	ErrInvalidConfig = errors.New("latency: invalid recorder config")
	ErrInvalidScale  = errors.New("latency: invalid scale")
)

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeTimeout  Outcome = "timeout"
)

// RoundResult is one measured round. It is not modified after creation.
type RoundResult struct {
	Index   int           `json:"index" yaml:"index"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
	Outcome Outcome       `json:"outcome" yaml:"outcome"`
}

// Scale selects the unit used when presenting a mean.
type Scale string

const (
	ScaleMicros Scale = "us"
	ScaleMillis Scale = "ms"
)

func ParseScale(raw string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "us", "µs", "micro", "micros", "microseconds":
		return ScaleMicros, nil
	case "ms", "milli", "millis", "milliseconds":
		return ScaleMillis, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScale, raw)
	}
}

// Recorder holds one phase worth of rounds: warmUp discarded rounds
// followed by rounds kept samples. The buffer is never overwritten.
type Recorder struct {
	phase   string
	rounds  int
	warmUp  int
	results []RoundResult
	started time.Time
	running bool
	now     func() time.Time
}

func NewRecorder(phase string, rounds, warmUp int) (*Recorder, error) {
	if rounds <= 0 || warmUp < 0 {
		return nil, fmt.Errorf("%w: rounds=%d warm_up=%d", ErrInvalidConfig, rounds, warmUp)
	}
	return &Recorder{
		phase:   phase,
		rounds:  rounds,
		warmUp:  warmUp,
		results: make([]RoundResult, 0, rounds+warmUp),
		now:     time.Now,
	}, nil
}

// WithClock replaces the time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Capacity is the total number of rounds the phase runs.
func (r *Recorder) Capacity() int {
	return r.rounds + r.warmUp
}

func (r *Recorder) Full() bool {
	return len(r.results) >= r.Capacity()
}

func (r *Recorder) Start() {
	r.started = r.now()
	r.running = true
}

// Stop closes the round opened by Start and records it.
func (r *Recorder) Stop(index int, outcome Outcome) (RoundResult, error) {
	if !r.running {
		return RoundResult{}, ErrNotStarted
	}
	elapsed := r.now().Sub(r.started)
	r.running = false
	res := RoundResult{Index: index, Elapsed: elapsed, Outcome: outcome}
	if err := r.Record(res); err != nil {
		return RoundResult{}, err
	}
	return res, nil
}

func (r *Recorder) Record(res RoundResult) error {
	if r.Full() {
		return fmt.Errorf("%w: %d rounds", ErrBufferFull, r.Capacity())
	}
	r.results = append(r.results, res)
	return nil
}

// Results returns every recorded round including warm-up.
func (r *Recorder) Results() []RoundResult {
	out := make([]RoundResult, len(r.results))
	copy(out, r.results)
	return out
}

// Summary is the kept-sample view of one phase.
type Summary struct {
	Phase     string          `json:"phase" yaml:"phase"`
	Samples   []time.Duration `json:"samples" yaml:"samples"`
	Discarded int             `json:"discarded" yaml:"discarded"`
	// MeanMicros is sum/N over Samples in microseconds.
	MeanMicros float64 `json:"mean_us" yaml:"mean_us"`
}

func (r *Recorder) Summary() Summary {
	discard := r.warmUp
	if discard > len(r.results) {
		discard = len(r.results)
	}
	kept := r.results[discard:]
	s := Summary{
		Phase:     r.phase,
		Samples:   make([]time.Duration, 0, len(kept)),
		Discarded: discard,
	}
	var sum time.Duration
	for _, res := range kept {
		s.Samples = append(s.Samples, res.Elapsed)
		sum += res.Elapsed
	}
	if len(kept) > 0 {
		s.MeanMicros = float64(sum) / float64(len(kept)) / float64(time.Microsecond)
	}
	return s
}

// N is the number of kept samples.
func (s Summary) N() int {
	return len(s.Samples)
}

// Mean returns the mean in the given presentation unit.
func (s Summary) Mean(scale Scale) float64 {
	if scale == ScaleMillis {
		return s.MeanMicros / 1000
	}
	return s.MeanMicros
}
