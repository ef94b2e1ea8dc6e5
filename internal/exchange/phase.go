package exchange

import (
	"fmt"
	"strings"

	"github.com/danmuck/canlat/internal/transform"
)

// Mode selects what the responder does with a round's artifact.
type Mode string

const (
	// ModeEcho sends the plaintext and expects it echoed.
	ModeEcho Mode = "echo"
	// ModeDecrypt sends the artifact; the responder inverts it and replies
	// with the recovered plaintext.
	ModeDecrypt Mode = "decrypt"
	// ModeMAC sends the plaintext then the digest; the responder recomputes
	// and replies with the plaintext, or IntegrityErrorPayload on mismatch.
	ModeMAC Mode = "mac"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeEcho, ModeDecrypt, ModeMAC:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidPhase, raw)
	}
}

// Phase is one transform under test, run Rounds+WarmUp times.
type Phase struct {
	Name      string
	Transform string
	Mode      Mode
	Rounds    int
	WarmUp    int
}

// DefaultPhases is the full benchmark sequence from plaintext to RSA-4096.
func DefaultPhases(rounds, warmUp int) []Phase {
	entries := []struct {
		transform string
		mode      Mode
	}{
		{"identity", ModeEcho},
		{"aes-128", ModeDecrypt},
		{"aes-256", ModeDecrypt},
		{"md5", ModeMAC},
		{"sha1", ModeMAC},
		{"sha224", ModeMAC},
		{"sha256", ModeMAC},
		{"sha384", ModeMAC},
		{"sha512", ModeMAC},
		{"rsa-2048", ModeDecrypt},
		{"rsa-3072", ModeDecrypt},
		{"rsa-4096", ModeDecrypt},
	}
	out := make([]Phase, 0, len(entries))
	for _, e := range entries {
		out = append(out, Phase{
			Name:      e.transform,
			Transform: e.transform,
			Mode:      e.mode,
			Rounds:    rounds,
			WarmUp:    warmUp,
		})
	}
	return out
}

// WithDefaults names the phase after its transform and takes Rounds from
// cfg when unset. WarmUp is used as given.
func (p Phase) WithDefaults(cfg Config) Phase {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.Transform
	}
	if p.Rounds <= 0 {
		p.Rounds = cfg.Rounds
	}
	return p
}

func (p Phase) Validate(reg *transform.Registry) error {
	_, err := p.Resolve(reg)
	return err
}

// Resolve checks p against the registry and returns its transform.
func (p Phase) Resolve(reg *transform.Registry) (transform.Transform, error) {
	if p.Rounds <= 0 || p.WarmUp < 0 {
		return nil, fmt.Errorf("%w: %s rounds=%d warm_up=%d", ErrInvalidPhase, p.Name, p.Rounds, p.WarmUp)
	}
	t, ok := reg.Resolve(p.Transform)
	if !ok {
		return nil, fmt.Errorf("%w: %s uses unknown transform %q", ErrInvalidPhase, p.Name, p.Transform)
	}
	switch p.Mode {
	case ModeEcho:
		if t.Kind() != transform.Plaintext {
			return nil, fmt.Errorf("%w: %s echo needs a plaintext transform, got %s", ErrInvalidPhase, p.Name, t.Kind())
		}
	case ModeDecrypt:
		if _, ok := t.(transform.Invertible); !ok {
			return nil, fmt.Errorf("%w: %s decrypt needs an invertible transform", ErrInvalidPhase, p.Name)
		}
	case ModeMAC:
		if !t.Kind().IsDigest() {
			return nil, fmt.Errorf("%w: %s mac needs a digest transform, got %s", ErrInvalidPhase, p.Name, t.Kind())
		}
	default:
		return nil, fmt.Errorf("%w: %s has mode %q", ErrInvalidPhase, p.Name, p.Mode)
	}
	return t, nil
}

// Role names which end of the exchange a node plays.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Available splits phases into those role can run with reg and those it
// cannot, such as RSA phases without key material. The initiator runs every
// transform forward; the responder only does so in mac mode.
func Available(phases []Phase, reg *transform.Registry, role Role) (runnable, skipped []Phase) {
	for _, p := range phases {
		t, ok := reg.Resolve(p.Transform)
		if ok && (role == RoleResponder && p.Mode != ModeMAC || transform.CanForward(t)) {
			runnable = append(runnable, p)
			continue
		}
		skipped = append(skipped, p)
	}
	return runnable, skipped
}
