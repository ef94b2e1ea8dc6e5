package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/exchange"
	"github.com/danmuck/canlat/internal/latency"
	"github.com/danmuck/canlat/internal/transform"
)

// ExchangePhases returns the configured phase list, or the default
// sequence when the file lists none.
func (c NodeConfig) ExchangePhases() ([]exchange.Phase, error) {
	warmUp := exchange.DefaultWarmUp
	if c.WarmUp != nil {
		warmUp = *c.WarmUp
	}
	if len(c.Phases) == 0 {
		return exchange.DefaultPhases(c.Rounds, warmUp), nil
	}
	phases := make([]exchange.Phase, 0, len(c.Phases))
	for _, entry := range c.Phases {
		mode, err := exchange.ParseMode(entry.Mode)
		if err != nil {
			return nil, err
		}
		p := exchange.Phase{
			Name:      entry.Name,
			Transform: entry.Transform,
			Mode:      mode,
			Rounds:    entry.Rounds,
			WarmUp:    warmUp,
		}
		if p.Rounds == 0 {
			p.Rounds = c.Rounds
		}
		if entry.WarmUp != nil {
			p.WarmUp = *entry.WarmUp
		}
		phases = append(phases, p)
	}
	return phases, nil
}

// ExchangeConfig maps ids and round counts onto the exchange defaults.
func (c NodeConfig) ExchangeConfig() exchange.Config {
	cfg := exchange.DefaultConfig()
	cfg.Node = c.Name
	cfg.RequestID = c.IDs.Request
	cfg.ReplyID = c.IDs.Reply
	cfg.Rounds = c.Rounds
	if c.WarmUp != nil {
		cfg.WarmUp = *c.WarmUp
	}
	return cfg
}

// ReceiveFilter accepts only the id this node's role listens on.
func (c NodeConfig) ReceiveFilter() bus.Filter {
	if !c.Transport.Filter {
		return bus.Filter{}
	}
	if c.Role == RoleInitiator {
		return bus.ExactFilter(c.IDs.Reply, c.IDs.Extended)
	}
	return bus.ExactFilter(c.IDs.Request, c.IDs.Extended)
}

func (c NodeConfig) LatencyScale() latency.Scale {
	scale, err := latency.ParseScale(c.Scale)
	if err != nil {
		return latency.ScaleMicros
	}
	return scale
}

// LoadKeys resolves key material: defaults, then a derived secret, then
// explicit hex keys, then RSA key files.
func (c NodeConfig) LoadKeys() (transform.Keys, error) {
	keys := transform.DefaultKeys()
	if strings.TrimSpace(c.Keys.Secret) != "" {
		derived, err := transform.DeriveKeys([]byte(c.Keys.Secret), []byte(c.Keys.Salt))
		if err != nil {
			return transform.Keys{}, err
		}
		keys = derived
	}
	if c.Keys.AES128 != "" {
		k, err := transform.ParseHexKey(c.Keys.AES128, 16)
		if err != nil {
			return transform.Keys{}, fmt.Errorf("aes128: %w", err)
		}
		keys.AES128 = k
	}
	if c.Keys.AES256 != "" {
		k, err := transform.ParseHexKey(c.Keys.AES256, 32)
		if err != nil {
			return transform.Keys{}, fmt.Errorf("aes256: %w", err)
		}
		keys.AES256 = k
	}
	for _, file := range c.Keys.RSAFiles {
		priv, pub, err := transform.LoadRSAKeyFile(c.Path(file))
		if err != nil {
			return transform.Keys{}, err
		}
		if priv != nil {
			keys.AddRSA(priv)
			continue
		}
		keys.AddRSAPublic(pub)
	}
	return keys, nil
}
