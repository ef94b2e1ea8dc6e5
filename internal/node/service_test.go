package node

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/config"
	"github.com/danmuck/canlat/internal/report"
	"github.com/danmuck/canlat/internal/testutil/testlog"
)

func nodeConfig(role string, phases []config.PhaseConfig) config.NodeConfig {
	warmUp := 1
	return config.NodeConfig{
		Role:      role,
		Rounds:    3,
		WarmUp:    &warmUp,
		Transport: config.TransportConfig{Kind: config.TransportPipe},
		Phases:    phases,
	}.WithDefaults()
}

func pipeOpener(end *bus.PipeEnd) bus.OpenFunc {
	return func() (bus.Transport, error) { return end, nil }
}

func TestInitiatorAndResponderOverPipe(t *testing.T) {
	testlog.Start(t)

	phases := []config.PhaseConfig{
		{Transform: "identity", Mode: "echo"},
		{Transform: "aes-128", Mode: "decrypt"},
		{Transform: "sha224", Mode: "mac"},
	}
	initCfg := nodeConfig(config.RoleInitiator, phases)
	initCfg.ReportPath = filepath.Join(t.TempDir(), "run.yaml")
	respCfg := nodeConfig(config.RoleResponder, phases)

	a, b := bus.Pipe(bus.DefaultPipeDepth)
	var out bytes.Buffer
	initSvc, err := NewService(ServiceConfig{Node: initCfg, Exchange: initCfg.ExchangeConfig(), Open: pipeOpener(a), Out: &out})
	if err != nil {
		t.Fatalf("initiator service: %v", err)
	}
	respSvc, err := NewService(ServiceConfig{Node: respCfg, Exchange: respCfg.ExchangeConfig(), Open: pipeOpener(b)})
	if err != nil {
		t.Fatalf("responder service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	respErr := make(chan error, 1)
	go func() { respErr <- respSvc.RunContext(ctx) }()

	if err := initSvc.RunContext(ctx); err != nil {
		t.Fatalf("initiator run: %v", err)
	}
	if err := <-respErr; err != nil {
		t.Fatalf("responder run: %v", err)
	}

	for _, want := range []string{"identity", "aes-128", "sha224"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report missing %s:\n%s", want, out.String())
		}
	}
	run, err := report.LoadYAML(initCfg.ReportPath)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if len(run.Phases) != 3 || run.Phases[2].Samples != 3 || run.Phases[2].Discarded != 1 {
		t.Fatalf("unexpected exported run: %+v", run.Phases)
	}
}

func TestNewServiceSkipsUnavailablePhases(t *testing.T) {
	testlog.Start(t)

	cfg := nodeConfig(config.RoleInitiator, nil)
	a, _ := bus.Pipe(1)
	svc, err := NewService(ServiceConfig{Node: cfg, Exchange: cfg.ExchangeConfig(), Open: pipeOpener(a)})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	for _, p := range svc.Phases() {
		if strings.HasPrefix(p.Transform, "rsa-") {
			t.Fatalf("rsa phase %s kept without key material", p.Name)
		}
	}
	if len(svc.Phases()) != 9 {
		t.Fatalf("expected 9 runnable default phases, got %d", len(svc.Phases()))
	}
}

func TestNewServiceNoRunnablePhases(t *testing.T) {
	testlog.Start(t)

	cfg := nodeConfig(config.RoleResponder, []config.PhaseConfig{{Transform: "rsa-4096", Mode: "decrypt"}})
	_, b := bus.Pipe(1)
	if _, err := NewService(ServiceConfig{Node: cfg, Exchange: cfg.ExchangeConfig(), Open: pipeOpener(b)}); !errors.Is(err, ErrNoPhases) {
		t.Fatalf("expected ErrNoPhases, got %v", err)
	}
}

func TestNewServiceRejectsPipeWithoutOpener(t *testing.T) {
	testlog.Start(t)

	for _, role := range []string{config.RoleInitiator, config.RoleResponder} {
		cfg := nodeConfig(role, nil)
		if _, err := NewService(ServiceConfig{Node: cfg, Exchange: cfg.ExchangeConfig()}); !errors.Is(err, ErrNoOpener) {
			t.Fatalf("%s: expected ErrNoOpener, got %v", role, err)
		}
	}
}

func TestRunContextStopsDuringBringUp(t *testing.T) {
	testlog.Start(t)

	cfg := nodeConfig(config.RoleResponder, nil)
	svc, err := NewService(ServiceConfig{
		Node:     cfg,
		Exchange: cfg.ExchangeConfig(),
		Open: func() (bus.Transport, error) {
			return nil, errors.New("controller not ready")
		},
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := svc.RunContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected bring-up to stop with ctx, got %v", err)
	}
}
