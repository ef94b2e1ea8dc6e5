package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/fragment"
	"github.com/danmuck/canlat/internal/latency"
	"github.com/danmuck/canlat/internal/observability"
	"github.com/danmuck/canlat/internal/transform"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Initiator drives rounds: it transforms, sends and times each exchange.
type Initiator struct {
	cfg      Config
	bus      bus.Transport
	registry *transform.Registry
	logger   zerolog.Logger

	mu      sync.RWMutex
	state   State
	reports []PhaseReport
}

func NewInitiator(cfg Config, t bus.Transport, reg *transform.Registry) (*Initiator, error) {
	cfg = cfg.WithDefaults()
	if cfg.Node == "" {
		cfg.Node = "initiator"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil || reg == nil {
		return nil, fmt.Errorf("%w: transport and registry are required", ErrInvalidConfig)
	}
	return &Initiator{
		cfg:      cfg,
		bus:      t,
		registry: reg,
		logger:   log.With().Str("node", cfg.Node).Logger(),
		state:    StateIdle,
	}, nil
}

func (in *Initiator) State() State {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.state
}

// Reports returns a copy of every phase completed so far.
func (in *Initiator) Reports() []PhaseReport {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]PhaseReport, len(in.reports))
	copy(out, in.reports)
	return out
}

func (in *Initiator) move(to State) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !canMove(initiatorEdges, in.state, to) {
		return transitionError(in.state, to)
	}
	in.state = to
	return nil
}

func (in *Initiator) reset() {
	in.mu.Lock()
	in.state = StateIdle
	in.mu.Unlock()
}

// Run executes every phase in order. It stops at the first fatal error and
// returns the reports completed before it.
func (in *Initiator) Run(ctx context.Context, phases []Phase) ([]PhaseReport, error) {
	in.logger.Info().Int("phases", len(phases)).Msg("run starting")
	for _, p := range phases {
		if _, err := in.RunPhase(ctx, p); err != nil {
			return in.Reports(), err
		}
	}
	in.logger.Info().Msg("run complete")
	return in.Reports(), nil
}

// RunPhase runs Rounds+WarmUp rounds of p and records the phase report.
func (in *Initiator) RunPhase(ctx context.Context, p Phase) (PhaseReport, error) {
	p = p.WithDefaults(in.cfg)
	t, err := p.Resolve(in.registry)
	if err != nil {
		return PhaseReport{}, err
	}
	rec, err := latency.NewRecorder(p.Name, p.Rounds, p.WarmUp)
	if err != nil {
		return PhaseReport{}, err
	}
	in.logger.Info().Str("phase", p.Name).Str("mode", string(p.Mode)).Int("rounds", p.Rounds).Int("warm_up", p.WarmUp).Msg("phase starting")

	for i := 0; i < rec.Capacity(); i++ {
		res, err := in.round(ctx, p, t, i, rec)
		if err != nil {
			in.logger.Error().Err(err).Str("phase", p.Name).Int("round", i).Msg("round failed")
			return buildReport(p, rec), err
		}
		in.logger.Debug().Str("phase", p.Name).Int("round", i).Dur("elapsed", res.Elapsed).Str("outcome", string(res.Outcome)).Msg("round complete")
	}

	report := buildReport(p, rec)
	observability.RecordPhaseMean(p.Name, report.Summary.MeanMicros)
	in.logger.Info().
		Str("phase", p.Name).
		Int("samples", report.Summary.N()).
		Float64("mean_us", report.Summary.MeanMicros).
		Int("mismatches", report.Mismatches).
		Msg("phase complete")

	in.mu.Lock()
	in.reports = append(in.reports, report)
	in.mu.Unlock()
	return report, nil
}

// Round runs one timed exchange of p outside of a phase recorder.
func (in *Initiator) Round(ctx context.Context, p Phase) (latency.RoundResult, error) {
	p = p.WithDefaults(in.cfg)
	t, err := p.Resolve(in.registry)
	if err != nil {
		return latency.RoundResult{}, err
	}
	rec, err := latency.NewRecorder(p.Name, 1, 0)
	if err != nil {
		return latency.RoundResult{}, err
	}
	return in.round(ctx, p, t, 0, rec)
}

func (in *Initiator) round(ctx context.Context, p Phase, t transform.Transform, index int, rec *latency.Recorder) (latency.RoundResult, error) {
	if err := in.move(StateSending); err != nil {
		return latency.RoundResult{}, err
	}
	rec.Start()

	frames, err := in.requestFrames(p, t)
	if err != nil {
		in.reset()
		return latency.RoundResult{}, err
	}
	sent, err := sendAll(in.bus, frames, in.cfg.SendTimeout)
	observability.RecordFrames(in.cfg.Node, "tx", sent)
	if err != nil {
		in.reset()
		return latency.RoundResult{}, fmt.Errorf("send %s round %d: %w", p.Name, index, err)
	}

	if err := in.move(StateAwaitingReply); err != nil {
		in.reset()
		return latency.RoundResult{}, err
	}
	reply, err := waitFrame(ctx, in.bus, in.cfg.ReplyID, in.cfg.ReplyTimeout, in.cfg.PollInterval, in.logger)
	if err != nil {
		in.reset()
		if !errors.Is(err, errWaitExpired) {
			return latency.RoundResult{}, err
		}
		res, recErr := rec.Stop(index, latency.OutcomeTimeout)
		observability.RecordRound(p.Name, string(latency.OutcomeTimeout), res.Elapsed)
		if recErr != nil {
			return res, recErr
		}
		return res, fmt.Errorf("%w: %s round %d after %s", ErrReplyTimeout, p.Name, index, in.cfg.ReplyTimeout)
	}
	outcome := in.checkReply(p, index, reply)
	res, err := rec.Stop(index, outcome)
	observability.RecordFrames(in.cfg.Node, "rx", 1)
	if err != nil {
		in.reset()
		return res, err
	}
	observability.RecordRound(p.Name, string(outcome), res.Elapsed)

	if err := in.move(StateComplete); err != nil {
		return res, err
	}
	return res, nil
}

// requestFrames builds the wire sequence for one round of p. MAC rounds
// carry the plaintext ahead of the digest fragments.
func (in *Initiator) requestFrames(p Phase, t transform.Transform) ([]bus.Frame, error) {
	artifact, err := transform.Apply(t, in.cfg.Plaintext)
	if err != nil {
		return nil, err
	}
	plan, err := in.cfg.planFor(artifact.Kind)
	if err != nil {
		return nil, err
	}
	frames, err := fragment.Fragment(in.cfg.RequestID, artifact.Bytes, plan)
	if err != nil {
		return nil, err
	}
	if p.Mode != ModeMAC {
		return frames, nil
	}
	textPlan, err := in.cfg.planFor(transform.Plaintext)
	if err != nil {
		return nil, err
	}
	head, err := fragment.Fragment(in.cfg.RequestID, in.cfg.Plaintext, textPlan)
	if err != nil {
		return nil, err
	}
	return append(head, frames...), nil
}

func (in *Initiator) checkReply(p Phase, index int, reply bus.Frame) latency.Outcome {
	if !in.cfg.VerifyReply {
		return latency.OutcomeOK
	}
	got := reply.Payload()
	if bytes.Equal(got, in.cfg.Plaintext) {
		return latency.OutcomeOK
	}
	if bytes.Equal(got, IntegrityErrorPayload()) {
		in.logger.Warn().Err(ErrIntegrityMismatch).Str("phase", p.Name).Int("round", index).Msg("responder rejected digest")
	} else {
		in.logger.Warn().Str("phase", p.Name).Int("round", index).Hex("reply", got).Msg("reply does not match plaintext")
	}
	return latency.OutcomeMismatch
}
