package transform

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

type aesECB struct {
	name  string
	kind  Kind
	block cipher.Block
	inLen int
}

// NewAESECB encrypts inLen bytes, zero-padded to whole blocks, block by
// block under key. A 16-byte key selects AES-128, 32 bytes AES-256.
func NewAESECB(key []byte, inLen int) (Invertible, error) {
	var kind Kind
	var name string
	switch len(key) {
	case 16:
		kind, name = CipherAES128, "aes-128"
	case 32:
		kind, name = CipherAES256, "aes-256"
	default:
		return nil, fmt.Errorf("%w: aes key %d bytes", ErrKeyLength, len(key))
	}
	if inLen <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInputLength, inLen)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	t := &aesECB{name: name, kind: kind, block: block, inLen: inLen}
	if t.OutputLen() != kind.DeclaredLength() {
		return nil, fmt.Errorf("%w: %s output %d bytes", ErrArtifactLength, name, t.OutputLen())
	}
	return t, nil
}

func (t *aesECB) Name() string  { return t.name }
func (t *aesECB) Kind() Kind    { return t.kind }
func (t *aesECB) InputLen() int { return t.inLen }

func (t *aesECB) OutputLen() int {
	bs := t.block.BlockSize()
	return (t.inLen + bs - 1) / bs * bs
}

func (t *aesECB) Forward(in []byte) ([]byte, error) {
	if err := checkLen(in, t.inLen); err != nil {
		return nil, err
	}
	out := make([]byte, t.OutputLen())
	copy(out, in)
	bs := t.block.BlockSize()
	for off := 0; off < len(out); off += bs {
		t.block.Encrypt(out[off:off+bs], out[off:off+bs])
	}
	return out, nil
}

func (t *aesECB) Inverse(artifact []byte) ([]byte, error) {
	if err := checkLen(artifact, t.OutputLen()); err != nil {
		return nil, err
	}
	buf := make([]byte, len(artifact))
	bs := t.block.BlockSize()
	for off := 0; off < len(buf); off += bs {
		t.block.Decrypt(buf[off:off+bs], artifact[off:off+bs])
	}
	return buf[:t.inLen], nil
}
