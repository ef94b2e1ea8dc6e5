package transform

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoAES128 = "canlat aes-128"
	hkdfInfoAES256 = "canlat aes-256"
)

var ErrInvalidKeyFile = errors.New("transform: invalid key file")

// Keys is the out-of-band key material shared by both nodes.
type Keys struct {
	AES128 []byte
	AES256 []byte
	// RSA holds private keys by modulus size on the signing node.
	RSA map[int]*rsa.PrivateKey
	// RSAPublic holds public keys by modulus size on the verifying node.
	RSAPublic map[int]*rsa.PublicKey
}

// DefaultKeys returns the FIPS-197 appendix C test keys.
func DefaultKeys() Keys {
	k := Keys{
		AES128: make([]byte, 16),
		AES256: make([]byte, 32),
	}
	for i := range k.AES128 {
		k.AES128[i] = byte(i)
	}
	for i := range k.AES256 {
		k.AES256[i] = byte(i)
	}
	return k
}

// DeriveKeys expands a shared secret into both AES keys with HKDF-SHA256.
func DeriveKeys(secret, salt []byte) (Keys, error) {
	if len(secret) == 0 {
		return Keys{}, fmt.Errorf("%w: empty secret", ErrKeyMissing)
	}
	k128, err := deriveKey(secret, salt, hkdfInfoAES128, 16)
	if err != nil {
		return Keys{}, err
	}
	k256, err := deriveKey(secret, salt, hkdfInfoAES256, 32)
	if err != nil {
		return Keys{}, err
	}
	return Keys{AES128: k128, AES256: k256}, nil
}

func deriveKey(secret, salt []byte, info string, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("transform: hkdf read: %w", err)
	}
	return out, nil
}

// ParseHexKey decodes a hex key of exactly size bytes.
func ParseHexKey(raw string, size int) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLength, err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("%w: got %d bytes want %d", ErrKeyLength, len(key), size)
	}
	return key, nil
}

func (k *Keys) AddRSA(priv *rsa.PrivateKey) {
	if k.RSA == nil {
		k.RSA = make(map[int]*rsa.PrivateKey)
	}
	k.RSA[priv.N.BitLen()] = priv
	k.AddRSAPublic(&priv.PublicKey)
}

func (k *Keys) AddRSAPublic(pub *rsa.PublicKey) {
	if k.RSAPublic == nil {
		k.RSAPublic = make(map[int]*rsa.PublicKey)
	}
	k.RSAPublic[pub.N.BitLen()] = pub
}

// GenerateRSAKeys creates one private key per requested modulus size.
func GenerateRSAKeys(bits ...int) (map[int]*rsa.PrivateKey, error) {
	out := make(map[int]*rsa.PrivateKey, len(bits))
	for _, b := range bits {
		key, err := rsa.GenerateKey(rand.Reader, b)
		if err != nil {
			return nil, fmt.Errorf("transform: generate rsa-%d: %w", b, err)
		}
		out[b] = key
	}
	return out, nil
}

// LoadRSAKeyFile reads a PEM file holding either a private key (PKCS#1 or
// PKCS#8) or a public key (PKCS#1 or PKIX). priv is nil for public files.
func LoadRSAKeyFile(path string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("key load failed (%s): %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, fmt.Errorf("%w: %s has no pem block", ErrInvalidKeyFile, path)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeyFile, path, err)
		}
		return priv, &priv.PublicKey, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeyFile, path, err)
		}
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is not an rsa key", ErrInvalidKeyFile, path)
		}
		return priv, &priv.PublicKey, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeyFile, path, err)
		}
		return nil, pub, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidKeyFile, path, err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is not an rsa key", ErrInvalidKeyFile, path)
		}
		return nil, pub, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s has pem type %q", ErrInvalidKeyFile, path, block.Type)
	}
}

func WriteRSAKeyFile(path string, priv *rsa.PrivateKey) error {
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}

func WriteRSAPublicKeyFile(path string, pub *rsa.PublicKey) error {
	block := &pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(pub)}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o644)
}
