package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/config"
	"github.com/danmuck/canlat/internal/logging"
	"github.com/danmuck/canlat/internal/node"
	"github.com/danmuck/canlat/internal/transform"
	"github.com/rs/zerolog/log"
)

type options struct {
	rounds  int
	warmUp  int
	phases  string
	rsaBits string
	scale   string
	report  string
	samples bool
	verify  bool
	admin   string
	timeout time.Duration
}

func main() {
	opts := parseFlags()
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "benchctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.IntVar(&opts.rounds, "rounds", 100, "kept rounds per phase")
	flag.IntVar(&opts.warmUp, "warm-up", 1, "discarded rounds per phase")
	flag.StringVar(&opts.phases, "phases", "", "comma separated transforms (default: full sequence)")
	flag.StringVar(&opts.rsaBits, "rsa", "2048", "comma separated RSA modulus sizes to generate, empty for none")
	flag.StringVar(&opts.scale, "scale", "us", "mean presentation unit: us|ms")
	flag.StringVar(&opts.report, "report", "", "YAML report output path")
	flag.BoolVar(&opts.samples, "samples", false, "include per-round samples in the YAML report")
	flag.BoolVar(&opts.verify, "verify", true, "compare each reply with the plaintext")
	flag.StringVar(&opts.admin, "admin", "", "admin listen address for the initiator")
	flag.DurationVar(&opts.timeout, "reply-timeout", 5*time.Second, "initiator reply timeout")
	flag.Parse()
	return opts
}

// run drives both roles over an in-memory bus in one process.
func run(ctx context.Context, opts options) error {
	keys := transform.DefaultKeys()
	bits, err := parseBits(opts.rsaBits)
	if err != nil {
		return err
	}
	if len(bits) > 0 {
		log.Info().Ints("bits", bits).Msg("generating rsa keys")
		generated, err := transform.GenerateRSAKeys(bits...)
		if err != nil {
			return err
		}
		for _, b := range bits {
			keys.AddRSA(generated[b])
		}
	}

	phases, err := parsePhases(opts.phases)
	if err != nil {
		return err
	}
	warmUp := opts.warmUp
	base := config.NodeConfig{
		Scale:         opts.scale,
		Rounds:        opts.rounds,
		WarmUp:        &warmUp,
		ReportSamples: opts.samples,
		Transport:     config.TransportConfig{Kind: config.TransportPipe},
		Phases:        phases,
	}

	initCfg := base
	initCfg.Role = config.RoleInitiator
	initCfg.ReportPath = opts.report
	initCfg.Admin.Addr = opts.admin
	initCfg = initCfg.WithDefaults()
	respCfg := base
	respCfg.Role = config.RoleResponder
	respCfg = respCfg.WithDefaults()

	initEx := initCfg.ExchangeConfig()
	initEx.VerifyReply = opts.verify
	initEx.ReplyTimeout = opts.timeout

	a, b := bus.Pipe(bus.DefaultPipeDepth)
	initSvc, err := node.NewService(node.ServiceConfig{
		Node:     initCfg,
		Exchange: initEx,
		Keys:     &keys,
		Open:     func() (bus.Transport, error) { return a, nil },
	})
	if err != nil {
		return err
	}
	respSvc, err := node.NewService(node.ServiceConfig{
		Node:     respCfg,
		Exchange: respCfg.ExchangeConfig(),
		Keys:     &keys,
		Open:     func() (bus.Transport, error) { return b, nil },
	})
	if err != nil {
		return err
	}

	respCtx, cancelResp := context.WithCancel(ctx)
	defer cancelResp()
	respErr := make(chan error, 1)
	go func() { respErr <- respSvc.RunContext(respCtx) }()

	if err := initSvc.RunContext(ctx); err != nil {
		cancelResp()
		<-respErr
		return err
	}
	return <-respErr
}

func parseBits(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse rsa size %q: %w", part, err)
		}
		switch b {
		case 2048, 3072, 4096:
		default:
			return nil, fmt.Errorf("unsupported rsa size %d", b)
		}
		out = append(out, b)
	}
	return out, nil
}

// parsePhases infers each transform's mode: identity echoes, digests are
// verified, everything else is decrypted.
func parsePhases(raw string) ([]config.PhaseConfig, error) {
	var out []config.PhaseConfig
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := transform.ValidateName(name); err != nil {
			return nil, err
		}
		mode := "decrypt"
		switch {
		case name == "identity":
			mode = "echo"
		case name == "md5" || strings.HasPrefix(name, "sha"):
			mode = "mac"
		}
		out = append(out, config.PhaseConfig{Transform: name, Mode: mode})
	}
	return out, nil
}
