package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/canlat/internal/auth"
	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/config"
	"github.com/danmuck/canlat/internal/exchange"
	"github.com/danmuck/canlat/internal/observability"
	"github.com/danmuck/canlat/internal/report"
	"github.com/danmuck/canlat/internal/server"
	"github.com/danmuck/canlat/internal/transform"
	"github.com/rs/zerolog"
)

var (
	ErrNoPhases = errors.New("node: no runnable phases")
	ErrNoOpener = errors.New("node: transport needs an explicit opener")
)

// ServiceConfig is the resolved runtime config for one node.
type ServiceConfig struct {
	Node     config.NodeConfig
	Exchange exchange.Config
	// Open overrides transport construction from Node.Transport.
	Open bus.OpenFunc
	// Keys replaces the key material named by Node.Keys.
	Keys *transform.Keys
	// Out receives the console report. Defaults to stdout.
	Out io.Writer
}

// Service owns one node's lifecycle from bring-up to halt.
type Service struct {
	cfg      ServiceConfig
	logger   zerolog.Logger
	registry *transform.Registry
	phases   []exchange.Phase
	started  time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if err := config.ValidateNodeConfig(cfg.Node); err != nil {
		return nil, err
	}
	// Only udp can be opened from config alone.
	if cfg.Open == nil && cfg.Node.Transport.Kind != config.TransportUDP {
		return nil, fmt.Errorf("%w: %q", ErrNoOpener, cfg.Node.Transport.Kind)
	}
	cfg.Exchange = cfg.Exchange.WithDefaults()
	if err := cfg.Exchange.Validate(); err != nil {
		return nil, err
	}

	var keys transform.Keys
	if cfg.Keys != nil {
		keys = *cfg.Keys
	} else {
		loaded, err := cfg.Node.LoadKeys()
		if err != nil {
			return nil, fmt.Errorf("node: load keys: %w", err)
		}
		keys = loaded
	}
	reg, err := transform.NewDefaultRegistry(keys, bus.MaxPayload)
	if err != nil {
		return nil, fmt.Errorf("node: build registry: %w", err)
	}
	phases, err := cfg.Node.ExchangePhases()
	if err != nil {
		return nil, err
	}

	logger := observability.InitLogger(cfg.Node.Role).With().Str("node", cfg.Node.Name).Logger()
	runnable, skipped := exchange.Available(phases, reg, exchange.Role(cfg.Node.Role))
	for _, p := range skipped {
		logger.Warn().Str("phase", p.Name).Str("transform", p.Transform).Msg("phase skipped: transform not available")
	}
	if len(runnable) == 0 {
		return nil, ErrNoPhases
	}
	return &Service{cfg: cfg, logger: logger, registry: reg, phases: runnable}, nil
}

// Phases is the phase list this node will run.
func (s *Service) Phases() []exchange.Phase {
	out := make([]exchange.Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

func (s *Service) Registry() *transform.Registry {
	return s.registry
}

// Run blocks until the role halts or the process is signalled.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

func (s *Service) RunContext(ctx context.Context) error {
	s.started = time.Now()
	s.logger.Info().Int("phases", len(s.phases)).Msg("node starting")

	t, err := bus.BringUp(ctx, s.opener(), bus.RetryConfig{
		InitialDelay: s.cfg.Node.Transport.RetryDelay(),
		Multiplier:   1.0,
	})
	if err != nil {
		return fmt.Errorf("node: bring-up: %w", err)
	}
	defer func() {
		if err := t.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("transport close failed")
		}
	}()

	switch s.cfg.Node.Role {
	case config.RoleInitiator:
		return s.runInitiator(ctx, t)
	case config.RoleResponder:
		return s.runResponder(ctx, t)
	default:
		return fmt.Errorf("%w: role %q", config.ErrInvalidNodeConfig, s.cfg.Node.Role)
	}
}

func (s *Service) opener() bus.OpenFunc {
	if s.cfg.Open != nil {
		return s.cfg.Open
	}
	tc := s.cfg.Node.Transport
	filter := s.cfg.Node.ReceiveFilter()
	return func() (bus.Transport, error) {
		return bus.ListenUDP(tc.Listen, tc.Peer, filter)
	}
}

func (s *Service) runInitiator(ctx context.Context, t bus.Transport) error {
	in, err := exchange.NewInitiator(s.cfg.Exchange, t, s.registry)
	if err != nil {
		return err
	}
	stopAdmin := s.startAdmin(ctx, in)
	defer stopAdmin()

	reports, runErr := in.Run(ctx, s.phases)
	run := report.NewRun(s.cfg.Node.Name, s.cfg.Node.LatencyScale(), s.started, reports, s.cfg.Node.ReportSamples)
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := report.Print(s.cfg.Out, run); err != nil {
		s.logger.Warn().Err(err).Msg("report print failed")
	}
	if path := s.cfg.Node.Path(s.cfg.Node.ReportPath); path != "" {
		if err := report.WriteYAML(path, run); err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("report export failed")
		} else {
			s.logger.Info().Str("path", path).Msg("report written")
		}
	}
	if runErr != nil {
		return runErr
	}
	s.logger.Info().Dur("elapsed", time.Since(s.started)).Msg("halting")
	return nil
}

func (s *Service) runResponder(ctx context.Context, t bus.Transport) error {
	resp, err := exchange.NewResponder(s.cfg.Exchange, t, s.registry)
	if err != nil {
		return err
	}
	stopAdmin := s.startAdmin(ctx, resp)
	defer stopAdmin()

	if err := resp.Run(ctx, s.phases); err != nil {
		return err
	}
	s.logger.Info().Int("served", resp.Served()).Int("rejected", resp.Rejected()).Msg("halting")
	return nil
}

// startAdmin serves the admin surface while the role runs. The returned
// func stops it.
func (s *Service) startAdmin(ctx context.Context, src server.StateSource) func() {
	addr := s.cfg.Node.Admin.Addr
	if addr == "" {
		return func() {}
	}
	adminCtx, cancel := context.WithCancel(ctx)
	admin := server.Appear(s.cfg.Node.Name, addr, s.cfg.Node.Admin.CorsOrigins, src, s.registry)
	admin.Scale = s.cfg.Node.LatencyScale()
	if token := s.cfg.Node.Admin.Token; token != "" {
		admin.Auth = auth.StaticToken{Token: token}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := admin.Serve(adminCtx); err != nil {
			s.logger.Error().Err(err).Msg("admin server stopped")
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
