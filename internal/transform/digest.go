package transform

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

var digestFuncs = map[Kind]struct {
	name string
	new  func() hash.Hash
}{
	DigestMD5:    {"md5", md5.New},
	DigestSHA1:   {"sha1", sha1.New},
	DigestSHA224: {"sha224", sha256.New224},
	DigestSHA256: {"sha256", sha256.New},
	DigestSHA384: {"sha384", sha512.New384},
	DigestSHA512: {"sha512", sha512.New},
}

type digest struct {
	name  string
	kind  Kind
	new   func() hash.Hash
	inLen int
}

// NewDigest hashes inLen bytes with the algorithm kind names.
func NewDigest(kind Kind, inLen int) (Transform, error) {
	fn, ok := digestFuncs[kind]
	if !ok {
		return nil, fmt.Errorf("transform: %s is not a digest kind", kind)
	}
	if inLen <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInputLength, inLen)
	}
	return &digest{name: fn.name, kind: kind, new: fn.new, inLen: inLen}, nil
}

func (d *digest) Name() string   { return d.name }
func (d *digest) Kind() Kind     { return d.kind }
func (d *digest) InputLen() int  { return d.inLen }
func (d *digest) OutputLen() int { return d.new().Size() }

func (d *digest) Forward(in []byte) ([]byte, error) {
	if err := checkLen(in, d.inLen); err != nil {
		return nil, err
	}
	h := d.new()
	h.Write(in)
	return h.Sum(nil), nil
}
