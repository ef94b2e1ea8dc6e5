package transform

import (
	"errors"
	"fmt"
)

var (
	ErrInputLength   = errors.New("transform: invalid input length")
	ErrKeyLength     = errors.New("transform: invalid key length")
	ErrKeyMissing    = errors.New("transform: key material missing")
	ErrNotInvertible = errors.New("transform: not invertible")
)

// Transform maps a fixed-size input to a fixed-size artifact.
type Transform interface {
	Name() string
	Kind() Kind
	InputLen() int
	OutputLen() int
	Forward(in []byte) ([]byte, error)
}

// Invertible transforms can recover their input from the artifact.
type Invertible interface {
	Transform
	Inverse(artifact []byte) ([]byte, error)
}

// CanForward reports whether t holds the key material Forward needs.
// Transforms without a keyed forward half always can.
func CanForward(t Transform) bool {
	if f, ok := t.(interface{ CanForward() bool }); ok {
		return f.CanForward()
	}
	return true
}

// Apply runs t forward and wraps the result as a validated artifact.
func Apply(t Transform, in []byte) (Artifact, error) {
	out, err := t.Forward(in)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s forward: %w", t.Name(), err)
	}
	a := Artifact{Kind: t.Kind(), Bytes: out}
	if err := a.Validate(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// Invert runs the inverse of t if it has one.
func Invert(t Transform, artifact []byte) ([]byte, error) {
	inv, ok := t.(Invertible)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInvertible, t.Name())
	}
	out, err := inv.Inverse(artifact)
	if err != nil {
		return nil, fmt.Errorf("%s inverse: %w", t.Name(), err)
	}
	return out, nil
}

func checkLen(in []byte, want int) error {
	if len(in) != want {
		return fmt.Errorf("%w: got %d want %d", ErrInputLength, len(in), want)
	}
	return nil
}

type identity struct {
	size int
}

// Identity passes size bytes through unchanged.
func Identity(size int) Invertible {
	return identity{size: size}
}

func (identity) Name() string     { return "identity" }
func (identity) Kind() Kind       { return Plaintext }
func (i identity) InputLen() int  { return i.size }
func (i identity) OutputLen() int { return i.size }

func (i identity) Forward(in []byte) ([]byte, error) {
	if err := checkLen(in, i.size); err != nil {
		return nil, err
	}
	return append([]byte(nil), in...), nil
}

func (i identity) Inverse(in []byte) ([]byte, error) {
	return i.Forward(in)
}
