package transform

import (
	"crypto/rsa"
	"fmt"
	"math/big"
)

type rsaRaw struct {
	name  string
	kind  Kind
	pub   *rsa.PublicKey
	priv  *rsa.PrivateKey
	inLen int
}

// NewRSA builds the textbook RSA pair used by the signing rounds: Forward
// raises the input to the private exponent, Inverse to the public one.
// No padding is applied. priv may be nil on a node that only verifies.
func NewRSA(pub *rsa.PublicKey, priv *rsa.PrivateKey, inLen int) (Invertible, error) {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	if pub == nil {
		return nil, fmt.Errorf("%w: rsa public key", ErrKeyMissing)
	}
	var kind Kind
	switch pub.N.BitLen() {
	case 2048:
		kind = CipherRSA2048
	case 3072:
		kind = CipherRSA3072
	case 4096:
		kind = CipherRSA4096
	default:
		return nil, fmt.Errorf("%w: rsa modulus %d bits", ErrKeyLength, pub.N.BitLen())
	}
	if inLen <= 0 || inLen >= pub.Size() {
		return nil, fmt.Errorf("%w: %d", ErrInputLength, inLen)
	}
	return &rsaRaw{
		name:  fmt.Sprintf("rsa-%d", pub.N.BitLen()),
		kind:  kind,
		pub:   pub,
		priv:  priv,
		inLen: inLen,
	}, nil
}

func (r *rsaRaw) Name() string   { return r.name }
func (r *rsaRaw) Kind() Kind     { return r.kind }
func (r *rsaRaw) InputLen() int  { return r.inLen }
func (r *rsaRaw) OutputLen() int { return r.pub.Size() }

func (r *rsaRaw) CanForward() bool { return r.priv != nil }

func (r *rsaRaw) Forward(in []byte) ([]byte, error) {
	if r.priv == nil {
		return nil, fmt.Errorf("%w: %s private key", ErrKeyMissing, r.name)
	}
	if err := checkLen(in, r.inLen); err != nil {
		return nil, err
	}
	m := new(big.Int).SetBytes(in)
	c := new(big.Int).Exp(m, r.priv.D, r.pub.N)
	return c.FillBytes(make([]byte, r.OutputLen())), nil
}

func (r *rsaRaw) Inverse(artifact []byte) ([]byte, error) {
	if err := checkLen(artifact, r.OutputLen()); err != nil {
		return nil, err
	}
	c := new(big.Int).SetBytes(artifact)
	if c.Cmp(r.pub.N) >= 0 {
		return nil, fmt.Errorf("%w: %s ciphertext out of range", ErrInputLength, r.name)
	}
	m := new(big.Int).Exp(c, big.NewInt(int64(r.pub.E)), r.pub.N)
	if m.BitLen() > r.inLen*8 {
		return nil, fmt.Errorf("%w: %s recovered value exceeds %d bytes", ErrInputLength, r.name, r.inLen)
	}
	return m.FillBytes(make([]byte, r.inLen)), nil
}
