package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/canlat/internal/bus"
	"github.com/danmuck/canlat/internal/exchange"
	"github.com/danmuck/canlat/internal/latency"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidNodeConfig = errors.New("config: invalid node config")

const (
	RoleInitiator = "initiator"
	RoleResponder = "responder"

	TransportUDP  = "udp"
	TransportPipe = "pipe"
)

// NodeConfig is one benchmark node's file configuration. The [run] table
// is read separately by the node binaries.
type NodeConfig struct {
	Role          string          `toml:"role"`
	Name          string          `toml:"name"`
	Scale         string          `toml:"scale"`
	ReportPath    string          `toml:"report_path"`
	ReportSamples bool            `toml:"report_samples"`
	Rounds        int             `toml:"rounds"`
	WarmUp        *int            `toml:"warm_up"`
	Transport     TransportConfig `toml:"transport"`
	IDs           IDConfig        `toml:"ids"`
	Keys          KeyConfig       `toml:"keys"`
	Admin         AdminConfig     `toml:"admin"`
	Phases        []PhaseConfig   `toml:"phases"`

	dir string
}

type TransportConfig struct {
	Kind          string `toml:"kind"`
	Listen        string `toml:"listen"`
	Peer          string `toml:"peer"`
	Filter        bool   `toml:"filter"`
	RetryInterval string `toml:"retry_interval"`
}

type IDConfig struct {
	Request  uint32 `toml:"request"`
	Reply    uint32 `toml:"reply"`
	Extended bool   `toml:"extended"`
}

type KeyConfig struct {
	AES128   string   `toml:"aes128"`
	AES256   string   `toml:"aes256"`
	Secret   string   `toml:"secret"`
	Salt     string   `toml:"salt"`
	RSAFiles []string `toml:"rsa_files"`
}

type AdminConfig struct {
	Addr        string   `toml:"addr"`
	Token       string   `toml:"token"`
	CorsOrigins []string `toml:"cors_origins"`
}

type PhaseConfig struct {
	Name      string `toml:"name"`
	Transform string `toml:"transform"`
	Mode      string `toml:"mode"`
	Rounds    int    `toml:"rounds"`
	WarmUp    *int   `toml:"warm_up"`
}

func LoadNodeConfig(path string) (NodeConfig, error) {
	var cfg NodeConfig
	if err := loadToml(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	cfg.dir = filepath.Dir(path)
	cfg = cfg.WithDefaults()
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// WithDefaults fills the name, ids, scale, transport and round counts.
func (c NodeConfig) WithDefaults() NodeConfig {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	if c.Name == "" {
		c.Name = c.Role
	}
	if c.Scale == "" {
		c.Scale = string(latency.ScaleMicros)
	}
	if c.Rounds <= 0 {
		c.Rounds = exchange.DefaultRounds
	}
	if c.WarmUp == nil {
		w := exchange.DefaultWarmUp
		c.WarmUp = &w
	}
	if c.IDs.Request == 0 {
		c.IDs.Request = exchange.DefaultRequestID
	}
	if c.IDs.Reply == 0 {
		c.IDs.Reply = exchange.DefaultReplyID
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportUDP
	}
	if c.Transport.RetryInterval == "" {
		c.Transport.RetryInterval = "100ms"
	}
	return c
}

func ValidateNodeConfig(cfg NodeConfig) error {
	switch cfg.Role {
	case RoleInitiator, RoleResponder:
	default:
		return fmt.Errorf("%w: role must be %s or %s, got %q", ErrInvalidNodeConfig, RoleInitiator, RoleResponder, cfg.Role)
	}
	if _, err := latency.ParseScale(cfg.Scale); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNodeConfig, err)
	}
	if cfg.WarmUp != nil && *cfg.WarmUp < 0 {
		return fmt.Errorf("%w: warm_up must not be negative", ErrInvalidNodeConfig)
	}
	if err := ValidateTransport(cfg.Transport); err != nil {
		return fmt.Errorf("%w: transport: %v", ErrInvalidNodeConfig, err)
	}
	if err := ValidateIDs(cfg.IDs); err != nil {
		return fmt.Errorf("%w: ids: %v", ErrInvalidNodeConfig, err)
	}
	if strings.TrimSpace(cfg.Keys.Salt) != "" && strings.TrimSpace(cfg.Keys.Secret) == "" {
		return fmt.Errorf("%w: keys: salt set without secret", ErrInvalidNodeConfig)
	}
	for i, p := range cfg.Phases {
		if err := ValidatePhaseEntry(p); err != nil {
			return fmt.Errorf("%w: phase[%d]: %v", ErrInvalidNodeConfig, i, err)
		}
	}
	return nil
}

func ValidateTransport(cfg TransportConfig) error {
	switch cfg.Kind {
	case TransportPipe:
	case TransportUDP:
		if strings.TrimSpace(cfg.Listen) == "" {
			return fmt.Errorf("listen is required")
		}
		if strings.TrimSpace(cfg.Peer) == "" {
			return fmt.Errorf("peer is required")
		}
	default:
		return fmt.Errorf("unknown kind %q", cfg.Kind)
	}
	if d, err := time.ParseDuration(cfg.RetryInterval); err != nil || d <= 0 {
		return fmt.Errorf("retry_interval %q is not a positive duration", cfg.RetryInterval)
	}
	return nil
}

func ValidateIDs(cfg IDConfig) error {
	limit := bus.StandardMask
	if cfg.Extended {
		limit = bus.ExtendedMask
	}
	if cfg.Request > limit || cfg.Reply > limit {
		return fmt.Errorf("id outside %#x", limit)
	}
	if cfg.Request == cfg.Reply {
		return fmt.Errorf("request and reply share id %#x", cfg.Request)
	}
	return nil
}

func ValidatePhaseEntry(p PhaseConfig) error {
	if strings.TrimSpace(p.Transform) == "" {
		return fmt.Errorf("transform is required")
	}
	if _, err := exchange.ParseMode(p.Mode); err != nil {
		return err
	}
	if p.Rounds < 0 {
		return fmt.Errorf("rounds must not be negative")
	}
	if p.WarmUp != nil && *p.WarmUp < 0 {
		return fmt.Errorf("warm_up must not be negative")
	}
	return nil
}

// RetryDelay is the parsed bring-up retry interval.
func (c TransportConfig) RetryDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryInterval)
	if err != nil || d <= 0 {
		return bus.DefaultRetryConfig().InitialDelay
	}
	return d
}

// Path resolves p against the directory the config was loaded from.
func (c NodeConfig) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
