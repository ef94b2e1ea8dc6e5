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
	SendTimeout  string `toml:"send_timeout"`
	ReplyTimeout string `toml:"reply_timeout"`
	PollInterval string `toml:"poll_interval"`
	VerifyReply  bool   `toml:"verify_reply"`
	Capacity     int    `toml:"capacity"`
}

func loadServiceConfig(path string) (node.ServiceConfig, error) {
	nodeCfg, err := config.LoadNodeConfig(path)
	if err != nil {
		return node.ServiceConfig{}, err
	}
	if nodeCfg.Role != config.RoleInitiator {
		return node.ServiceConfig{}, fmt.Errorf("initiatorctl needs role %q, got %q", config.RoleInitiator, nodeCfg.Role)
	}
	cfg := nodeCfg.ExchangeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return node.ServiceConfig{}, fmt.Errorf("load initiator run config: %w", err)
	}

	if meta.IsDefined("run", "send_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Run.SendTimeout))
		if err != nil {
			return node.ServiceConfig{}, fmt.Errorf("parse send_timeout: %w", err)
		}
		cfg.SendTimeout = d
	}

	if meta.IsDefined("run", "reply_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Run.ReplyTimeout))
		if err != nil {
			return node.ServiceConfig{}, fmt.Errorf("parse reply_timeout: %w", err)
		}
		cfg.ReplyTimeout = d
	}

	if meta.IsDefined("run", "poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Run.PollInterval))
		if err != nil {
			return node.ServiceConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}

	if meta.IsDefined("run", "verify_reply") {
		cfg.VerifyReply = raw.Run.VerifyReply
	}

	if meta.IsDefined("run", "capacity") {
		cfg.Capacity = raw.Run.Capacity
	}

	return node.ServiceConfig{Node: nodeCfg, Exchange: cfg}, nil
}
