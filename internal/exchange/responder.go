package exchange

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/fragment"
	"github.com/danmuck/canlat/internal/latency"
	"github.com/danmuck/canlat/internal/observability"
	"github.com/danmuck/canlat/internal/transform"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Responder answers rounds in the same phase order as the initiator.
type Responder struct {
	cfg      Config
	bus      bus.Transport
	registry *transform.Registry
	logger   zerolog.Logger

	mu       sync.RWMutex
	state    State
	served   int
	rejected int
}

func NewResponder(cfg Config, t bus.Transport, reg *transform.Registry) (*Responder, error) {
	cfg = cfg.WithDefaults()
	if cfg.Node == "" {
		cfg.Node = "responder"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil || reg == nil {
		return nil, fmt.Errorf("%w: transport and registry are required", ErrInvalidConfig)
	}
	return &Responder{
		cfg:      cfg,
		bus:      t,
		registry: reg,
		logger:   log.With().Str("node", cfg.Node).Logger(),
		state:    StateIdle,
	}, nil
}

func (r *Responder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Served is the number of rounds answered, including integrity rejections.
func (r *Responder) Served() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.served
}

// Rejected is the number of MAC rounds answered with IntegrityErrorPayload.
func (r *Responder) Rejected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rejected
}

func (r *Responder) move(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !canMove(responderEdges, r.state, to) {
		return transitionError(r.state, to)
	}
	r.state = to
	return nil
}

func (r *Responder) reset() {
	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()
}

// Run serves every phase in order.
func (r *Responder) Run(ctx context.Context, phases []Phase) error {
	r.logger.Info().Int("phases", len(phases)).Msg("responder ready")
	for _, p := range phases {
		if err := r.RunPhase(ctx, p); err != nil {
			return err
		}
	}
	r.logger.Info().Int("served", r.Served()).Int("rejected", r.Rejected()).Msg("run complete")
	return nil
}

// RunPhase serves Rounds+WarmUp rounds of p.
func (r *Responder) RunPhase(ctx context.Context, p Phase) error {
	p = p.WithDefaults(r.cfg)
	t, err := p.Resolve(r.registry)
	if err != nil {
		return err
	}
	total := p.Rounds + p.WarmUp
	r.logger.Info().Str("phase", p.Name).Str("mode", string(p.Mode)).Int("rounds", total).Msg("serving phase")
	for i := 0; i < total; i++ {
		if _, err := r.serve(ctx, p, t, i); err != nil {
			r.logger.Error().Err(err).Str("phase", p.Name).Int("round", i).Msg("round failed")
			return err
		}
	}
	return nil
}

// ServeRound answers a single round of p. The outcome is OutcomeMismatch
// when a MAC round failed verification and was answered with the sentinel.
func (r *Responder) ServeRound(ctx context.Context, p Phase) (latency.Outcome, error) {
	p = p.WithDefaults(r.cfg)
	t, err := p.Resolve(r.registry)
	if err != nil {
		return "", err
	}
	return r.serve(ctx, p, t, 0)
}

func (r *Responder) serve(ctx context.Context, p Phase, t transform.Transform, index int) (latency.Outcome, error) {
	if err := r.move(StateAwaitingRequest); err != nil {
		return "", err
	}

	var (
		reply   []byte
		outcome = latency.OutcomeOK
		err     error
	)
	switch p.Mode {
	case ModeEcho:
		reply, err = r.receive(ctx, transform.Plaintext, true)
		if err == nil {
			err = r.move(StateProcessing)
		}
	case ModeDecrypt:
		var artifact []byte
		artifact, err = r.receive(ctx, t.Kind(), true)
		if err == nil {
			err = r.move(StateProcessing)
		}
		if err == nil {
			reply, err = transform.Invert(t, artifact)
		}
	case ModeMAC:
		reply, outcome, err = r.verifyMAC(ctx, p, t, index)
	default:
		err = fmt.Errorf("%w: %s has mode %q", ErrInvalidPhase, p.Name, p.Mode)
	}
	if err != nil {
		r.reset()
		return "", err
	}

	if err := r.move(StateReplying); err != nil {
		r.reset()
		return "", err
	}
	f, err := bus.NewFrame(r.cfg.ReplyID, reply)
	if err != nil {
		r.reset()
		return "", err
	}
	if err := r.bus.Send(f, r.cfg.SendTimeout); err != nil {
		r.reset()
		return "", fmt.Errorf("reply %s round %d: %w", p.Name, index, err)
	}
	observability.RecordFrames(r.cfg.Node, "tx", 1)

	r.mu.Lock()
	r.served++
	if outcome == latency.OutcomeMismatch {
		r.rejected++
	}
	r.mu.Unlock()
	r.logger.Trace().Str("phase", p.Name).Int("round", index).Str("outcome", string(outcome)).Msg("round served")

	if err := r.move(StateIdle); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (r *Responder) verifyMAC(ctx context.Context, p Phase, t transform.Transform, index int) ([]byte, latency.Outcome, error) {
	plaintext, err := r.receive(ctx, transform.Plaintext, true)
	if err != nil {
		return nil, "", err
	}
	digest, err := r.receive(ctx, t.Kind(), false)
	if err != nil {
		return nil, "", err
	}
	if err := r.move(StateProcessing); err != nil {
		return nil, "", err
	}
	want, err := t.Forward(plaintext)
	if err != nil {
		return nil, "", err
	}
	if subtle.ConstantTimeCompare(want, digest) == 1 {
		return plaintext, latency.OutcomeOK, nil
	}
	observability.RecordIntegrityFailure(p.Name)
	r.logger.Warn().Err(ErrIntegrityMismatch).Str("phase", p.Name).Int("round", index).Msg("digest mismatch")
	return IntegrityErrorPayload(), latency.OutcomeMismatch, nil
}

// receive reassembles one artifact of kind. The first frame of a round is
// bounded by RequestTimeout; every later fragment by FragmentTimeout.
func (r *Responder) receive(ctx context.Context, kind transform.Kind, first bool) ([]byte, error) {
	plan, err := r.cfg.planFor(kind)
	if err != nil {
		return nil, err
	}
	asm := fragment.NewReassembler(plan)
	for !asm.Done() {
		timeout := r.cfg.FragmentTimeout
		if first {
			timeout = r.cfg.RequestTimeout
		}
		f, err := waitFrame(ctx, r.bus, r.cfg.RequestID, timeout, r.cfg.PollInterval, r.logger)
		if err != nil {
			return nil, r.waitError(err, first, asm.Remaining(), timeout)
		}
		observability.RecordFrames(r.cfg.Node, "rx", 1)
		first = false
		if _, err := asm.Add(f); err != nil {
			return nil, err
		}
	}
	return asm.Bytes()
}

func (r *Responder) waitError(err error, first bool, remaining int, timeout time.Duration) error {
	if !errors.Is(err, errWaitExpired) {
		return err
	}
	if first {
		return fmt.Errorf("%w: no request after %s", ErrRequestTimeout, timeout)
	}
	return fmt.Errorf("%w: %d fragments missing after %s", fragment.ErrLengthMismatch, remaining, timeout)
}
