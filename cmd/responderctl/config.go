package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/canlat/internal/config"
	"github.com/danmuck/canlat/internal/node"
)

type fileConfig struct {
	Run fileRun `toml:"run"`
}

type fileRun struct {
	SendTimeout     string `toml:"send_timeout"`
	RequestTimeout  string `toml:"request_timeout"`
	FragmentTimeout string `toml:"fragment_timeout"`
	PollInterval    string `toml:"poll_interval"`
	Capacity        int    `toml:"capacity"`
}

func loadServiceConfig(path string) (node.ServiceConfig, error) {
	nodeCfg, err := config.LoadNodeConfig(path)
	if err != nil {
		return node.ServiceConfig{}, err
	}
	if nodeCfg.Role != config.RoleResponder {
		return node.ServiceConfig{}, fmt.Errorf("responderctl needs role %q, got %q", config.RoleResponder, nodeCfg.Role)
	}
	cfg := nodeCfg.ExchangeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return node.ServiceConfig{}, fmt.Errorf("load responder run config: %w", err)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{key: "send_timeout", raw: raw.Run.SendTimeout, dst: &cfg.SendTimeout},
		{key: "request_timeout", raw: raw.Run.RequestTimeout, dst: &cfg.RequestTimeout},
		{key: "fragment_timeout", raw: raw.Run.FragmentTimeout, dst: &cfg.FragmentTimeout},
		{key: "poll_interval", raw: raw.Run.PollInterval, dst: &cfg.PollInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined("run", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return node.ServiceConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("run", "capacity") {
		cfg.Capacity = raw.Run.Capacity
	}

	return node.ServiceConfig{Node: nodeCfg, Exchange: cfg}, nil
}
