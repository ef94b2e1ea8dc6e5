package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/transform"
)

func TestLoadServiceConfigExample(t *testing.T) {
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.Name != "responder.lab" {
		t.Fatalf("unexpected name: %q", cfg.Node.Name)
	}
	if cfg.Exchange.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected request timeout: %v", cfg.Exchange.RequestTimeout)
	}
	if cfg.Exchange.FragmentTimeout != 500*time.Millisecond {
		t.Fatalf("unexpected fragment timeout: %v", cfg.Exchange.FragmentTimeout)
	}
	if cfg.Exchange.SendTimeout != time.Second {
		t.Fatalf("expected default send timeout, got %v", cfg.Exchange.SendTimeout)
	}
	f := cfg.Node.ReceiveFilter()
	if !f.Accepts(0x100) || f.Accepts(0x101) {
		t.Fatalf("responder filter should accept only the request id")
	}
	keys, err := cfg.Node.LoadKeys()
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	derived, err := transform.DeriveKeys([]byte("lab-bench-secret"), []byte("canlat"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(keys.AES128, derived.AES128) {
		t.Fatalf("expected derived aes-128 key")
	}
}

func TestLoadServiceConfigCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
role = "responder"
[transport]
kind = "pipe"
[run]
capacity = 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Exchange.Capacity != 4 {
		t.Fatalf("unexpected capacity: %d", cfg.Exchange.Capacity)
	}
	if cfg.Exchange.RequestTimeout != 0 {
		t.Fatalf("expected unbounded request wait, got %v", cfg.Exchange.RequestTimeout)
	}
	if cfg.Exchange.Capacity > bus.MaxPayload {
		t.Fatalf("capacity beyond frame payload")
	}
}

func TestLoadServiceConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
role = "responder"
[transport]
kind = "pipe"
[run]
fragment_timeout = "later"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
