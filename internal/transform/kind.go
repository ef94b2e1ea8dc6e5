package transform

import (
	"errors"
	"fmt"
)

var ErrArtifactLength = errors.New("transform: artifact length mismatch")

// Kind identifies the shape of a transform output.
type Kind int

const (
	Plaintext Kind = iota
	CipherAES128
	CipherAES256
	DigestMD5
	DigestSHA1
	DigestSHA224
	DigestSHA256
	DigestSHA384
	DigestSHA512
	CipherRSA2048
	CipherRSA3072
	CipherRSA4096
)

var kindInfo = map[Kind]struct {
	name   string
	length int
}{
	Plaintext:     {"plaintext", 8},
	CipherAES128:  {"cipher.aes128", 16},
	CipherAES256:  {"cipher.aes256", 16},
	DigestMD5:     {"digest.md5", 16},
	DigestSHA1:    {"digest.sha1", 20},
	DigestSHA224:  {"digest.sha224", 28},
	DigestSHA256:  {"digest.sha256", 32},
	DigestSHA384:  {"digest.sha384", 48},
	DigestSHA512:  {"digest.sha512", 64},
	CipherRSA2048: {"cipher.rsa2048", 256},
	CipherRSA3072: {"cipher.rsa3072", 384},
	CipherRSA4096: {"cipher.rsa4096", 512},
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindInfo))
	for k := Plaintext; k <= CipherRSA4096; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DeclaredLength is the fixed artifact size both peers assume for k.
// It is never transmitted. Unknown kinds return 0.
func (k Kind) DeclaredLength() int {
	return kindInfo[k].length
}

func (k Kind) IsDigest() bool {
	return k >= DigestMD5 && k <= DigestSHA512
}

// Artifact is one transform output ready for fragmentation.
type Artifact struct {
	Kind  Kind
	Bytes []byte
}

func (a Artifact) Validate() error {
	if want := a.Kind.DeclaredLength(); len(a.Bytes) != want {
		return fmt.Errorf("%w: %s has %d bytes, want %d", ErrArtifactLength, a.Kind, len(a.Bytes), want)
	}
	return nil
}
